package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Index      IndexConfig
	Ledger     LedgerConfig
	Reconciler ReconcilerConfig
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// StoreConfig holds content-addressable store client settings
type StoreConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RatePerSecond  float64
	RateBurst      int
}

// IndexConfig holds the durable History Index settings
type IndexConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// LedgerConfig holds ledger-level settings
type LedgerConfig struct {
	WelcomeAmount    decimal.Decimal
	MaxAppendRetries int
	CatalogFile      string
}

// ReconcilerConfig holds pending-write retry daemon settings
type ReconcilerConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	MaxAttempts     int
}
