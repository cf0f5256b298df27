package upgrade

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultDelay is the fixed interval between scheduling an upgrade and the
// earliest moment it may execute.
const DefaultDelay = 3 * 24 * time.Hour

var (
	ErrZeroAddress      = errors.New("upgrade timelock: zero address not allowed")
	ErrNothingScheduled = errors.New("upgrade timelock: no upgrade scheduled")
	ErrAlreadyScheduled = errors.New("upgrade timelock: upgrade already scheduled")
	ErrTimelockActive   = errors.New("upgrade timelock: delay has not elapsed")
	ErrImplMismatch     = errors.New("upgrade timelock: implementation does not match scheduled")
)

// Timelock gates module upgrades behind a fixed delay. The executed
// implementation must exactly match the scheduled one. Every module that
// supports upgrades composes one of these rather than re-implementing the
// schedule/cancel/execute cycle.
type Timelock struct {
	mu          sync.Mutex
	impl        common.Address
	scheduledAt time.Time
	exists      bool
	delay       time.Duration
	nowFn       func() time.Time
	logger      *slog.Logger
}

func NewTimelock() *Timelock {
	return &Timelock{delay: DefaultDelay, nowFn: time.Now, logger: slog.Default()}
}

// SetDelay overrides the fixed delay. Non-positive values are ignored.
func (t *Timelock) SetDelay(delay time.Duration) {
	if t == nil || delay <= 0 {
		return
	}
	t.mu.Lock()
	t.delay = delay
	t.mu.Unlock()
}

func (t *Timelock) SetNowFunc(now func() time.Time) {
	if t == nil || now == nil {
		return
	}
	t.mu.Lock()
	t.nowFn = now
	t.mu.Unlock()
}

func (t *Timelock) SetLogger(logger *slog.Logger) {
	if t == nil || logger == nil {
		return
	}
	t.logger = logger
}

// Schedule records the implementation a future Execute call must match.
func (t *Timelock) Schedule(impl common.Address) error {
	if t == nil {
		return ErrNothingScheduled
	}
	if impl == (common.Address{}) {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exists {
		return fmt.Errorf("%w: %s", ErrAlreadyScheduled, t.impl.Hex())
	}
	t.impl = impl
	t.scheduledAt = t.nowFn()
	t.exists = true
	t.logger.Info("upgrade scheduled", "implementation", impl.Hex(), "executable_at",
		t.scheduledAt.Add(t.delay).UTC().Format(time.RFC3339))
	return nil
}

// Cancel discards the pending upgrade.
func (t *Timelock) Cancel() error {
	if t == nil {
		return ErrNothingScheduled
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.exists {
		return ErrNothingScheduled
	}
	t.logger.Info("upgrade cancelled", "implementation", t.impl.Hex())
	t.impl = common.Address{}
	t.scheduledAt = time.Time{}
	t.exists = false
	return nil
}

// Execute consumes the pending upgrade once the delay has elapsed. The
// provided implementation must equal the scheduled one byte for byte.
func (t *Timelock) Execute(impl common.Address) error {
	if t == nil {
		return ErrNothingScheduled
	}
	if impl == (common.Address{}) {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.exists {
		return ErrNothingScheduled
	}
	if impl != t.impl {
		return fmt.Errorf("%w: scheduled %s, got %s", ErrImplMismatch, t.impl.Hex(), impl.Hex())
	}
	if remaining := t.remainingLocked(); remaining > 0 {
		return fmt.Errorf("%w: %s remaining", ErrTimelockActive, remaining)
	}
	t.logger.Info("upgrade executed", "implementation", impl.Hex())
	t.impl = common.Address{}
	t.scheduledAt = time.Time{}
	t.exists = false
	return nil
}

// Remaining reports how long until the pending upgrade becomes executable.
// It returns zero when the delay has elapsed or nothing is scheduled.
func (t *Timelock) Remaining() time.Duration {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.exists {
		return 0
	}
	return t.remainingLocked()
}

// Pending returns the scheduled implementation, if any.
func (t *Timelock) Pending() (common.Address, bool) {
	if t == nil {
		return common.Address{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.impl, t.exists
}

func (t *Timelock) remainingLocked() time.Duration {
	deadline := t.scheduledAt.Add(t.delay)
	remaining := deadline.Sub(t.nowFn())
	if remaining < 0 {
		return 0
	}
	return remaining
}
