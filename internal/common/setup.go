package common

import (
	"context"
	"log"
	"strings"

	"neurosync-rewards-go/internal/api"
	"neurosync-rewards-go/internal/cas"
	"neurosync-rewards-go/internal/index"
	"neurosync-rewards-go/internal/ledger"
	"neurosync-rewards-go/internal/models"
	"neurosync-rewards-go/internal/reconcile"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	}
}

// Services bundles the wired ledger stack shared by the daemons and CLIs.
type Services struct {
	Index  *index.SQLiteIndex
	Ledger *ledger.Service
	Cache  *reconcile.Cache
	API    *api.LedgerService
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the full stack: durable History Index, content
// store client, catalog, ledger engine, reconciliation cache and the API
// facade. With no STORE_BASE_URL configured the in-memory object store is
// used, which only makes sense for local development.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	historyIndex, err := index.NewSQLiteIndex(ctx, cfg.Index)
	if err != nil {
		return nil, err
	}

	var objects cas.ObjectStore
	if cfg.Store.BaseURL != "" {
		client, err := cas.NewClient(cfg.Store)
		if err != nil {
			historyIndex.Close()
			return nil, err
		}
		objects = client
	} else {
		zap.L().Warn("No content store configured, using in-memory store (development only)")
		objects = cas.NewMemoryStore()
	}

	catalog, err := LoadCatalog(cfg.Ledger.CatalogFile)
	if err != nil {
		historyIndex.Close()
		return nil, err
	}
	zap.L().Info("Loaded redemption catalog",
		zap.String("file", cfg.Ledger.CatalogFile),
		zap.Int("items", len(catalog)))

	ledgerService, err := ledger.NewService(ledger.Config{
		Objects:          objects,
		Index:            historyIndex,
		Journal:          historyIndex,
		Catalog:          catalog,
		WelcomeAmount:    cfg.Ledger.WelcomeAmount,
		MaxAppendRetries: cfg.Ledger.MaxAppendRetries,
	})
	if err != nil {
		historyIndex.Close()
		return nil, err
	}

	cache := reconcile.NewCache(ledgerService, historyIndex, cfg.Ledger.WelcomeAmount)

	return &Services{
		Index:  historyIndex,
		Ledger: ledgerService,
		Cache:  cache,
		API:    api.NewLedgerService(ledgerService, historyIndex, cache, catalog),
	}, nil
}

func (cs *Services) Close() {
	if cs.Index != nil {
		cs.Index.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
