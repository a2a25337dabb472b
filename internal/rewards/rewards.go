package rewards

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Activity tags accepted by the reward issuer. Activity-specific rules live
// here at the caller level; the ledger itself only checks that amounts are
// positive.
const (
	ReasonDailyCheckIn   = "daily-checkin"
	ReasonQuizCompletion = "quiz-completion"
	ReasonDailySpin      = "daily-spin"
	ReasonCrisisCheckIn  = "crisis-checkin"
)

// KnownReason reports whether reason is a recognized activity tag.
func KnownReason(reason string) bool {
	switch reason {
	case ReasonDailyCheckIn, ReasonQuizCompletion, ReasonDailySpin, ReasonCrisisCheckIn:
		return true
	}
	return false
}

// Fixed reward amounts.
var (
	CheckInAmount       = decimal.NewFromInt(5)
	CrisisCheckInAmount = decimal.NewFromInt(10)
)

const (
	// QuizQuestionCount is the size of the fixed question set. Quiz state
	// (current question, running score) is client-local and not part of the
	// ledger.
	QuizQuestionCount    = 5
	quizPointsPerCorrect = 2

	// wheelSegments is the number of equal segments on the spin wheel,
	// rewarding 1 through wheelSegments units.
	wheelSegments = 10
)

// QuizAmount returns the reward for a completed quiz: 2 units per correct
// answer out of the fixed 5-question set.
func QuizAmount(correct int) (decimal.Decimal, error) {
	if correct < 0 || correct > QuizQuestionCount {
		return decimal.Zero, fmt.Errorf("correct answers must be between 0 and %d, got %d", QuizQuestionCount, correct)
	}
	return decimal.NewFromInt(int64(correct * quizPointsPerCorrect)), nil
}

// Spin draws the reward magnitude for a wheel spin: a uniform draw over the
// ten equal segments, rewarding 1 to 10 units.
func Spin(rng *rand.Rand) decimal.Decimal {
	return decimal.NewFromInt(int64(rng.Intn(wheelSegments)) + 1)
}

// Tracker enforces per-identity activity windows: one spin per rolling
// 24-hour window and one check-in per calendar day (UTC). Process-local by
// design; losing it on restart can only under-reward, never corrupt the
// ledger.
type Tracker struct {
	mu          sync.Mutex
	lastSpin    map[string]time.Time
	lastCheckIn map[string]time.Time
	now         func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		lastSpin:    make(map[string]time.Time),
		lastCheckIn: make(map[string]time.Time),
		now:         time.Now,
	}
}

// TrySpin atomically checks the rolling 24-hour window and records the spin.
// Returns false when the identity has already spun within the window.
func (t *Tracker) TrySpin(identity string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	if last, ok := t.lastSpin[identity]; ok && now.Sub(last) < 24*time.Hour {
		return false
	}
	t.lastSpin[identity] = now
	return true
}

// ResetSpin releases a window recorded by TrySpin. Called when the reward
// that motivated the spin could not be issued, so the failed attempt does not
// cost the user their daily spin.
func (t *Tracker) ResetSpin(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastSpin, identity)
}

// ResetCheckIn releases a window recorded by TryCheckIn.
func (t *Tracker) ResetCheckIn(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastCheckIn, identity)
}

// TryCheckIn atomically checks the calendar-day cap and records the check-in.
func (t *Tracker) TryCheckIn(identity string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	if last, ok := t.lastCheckIn[identity]; ok {
		ly, lm, ld := last.Date()
		ny, nm, nd := now.Date()
		if ly == ny && lm == nm && ld == nd {
			return false
		}
	}
	t.lastCheckIn[identity] = now
	return true
}
