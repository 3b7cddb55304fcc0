package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// fireTimeout bounds the context handed to the fire callback so a stuck
// generation or send cannot pin a goroutine forever.
const fireTimeout = 2 * time.Minute

// FireFunc runs when a follow-up window elapses without cancellation. It must
// re-read the contact's persisted state before acting: cancellation may land
// concurrently with the fire, and the state re-read is what makes the losing
// side a no-op. It must never panic.
type FireFunc func(ctx context.Context, address string)

type followUpTimer struct {
	timer     *time.Timer
	armedAt   time.Time
	expiresAt time.Time
	// gen distinguishes this arming from any replacement armed for the same
	// address, so a stale fire cannot remove or duplicate its successor.
	gen uint64
}

// FollowUpScheduler keeps at most one live timer per normalized address.
// Arming replaces, cancelling removes, and expiry invokes the fire callback
// exactly once per surviving timer. The timer table is owned exclusively by
// this type; all access goes through Arm, Cancel and the internal fire path.
type FollowUpScheduler struct {
	logger *zap.Logger
	delay  time.Duration
	fire   FireFunc

	mu      sync.Mutex
	timers  map[string]*followUpTimer
	nextGen uint64
	stopped bool
}

// New creates a scheduler that fires after the fixed delay.
func New(logger *zap.Logger, delay time.Duration, fire FireFunc) *FollowUpScheduler {
	return &FollowUpScheduler{
		logger: logger,
		delay:  delay,
		fire:   fire,
		timers: make(map[string]*followUpTimer),
	}
}

// Arm schedules (or re-schedules) the follow-up timer for an address. A
// pre-existing timer for the same address is silently dropped: last call wins.
func (s *FollowUpScheduler) Arm(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}

	if prev, ok := s.timers[address]; ok {
		prev.timer.Stop()
		s.logger.Warn("replacing already-armed follow-up timer",
			zap.String("address", address),
			zap.Time("previous_expiry", prev.expiresAt))
	}

	s.nextGen++
	gen := s.nextGen
	now := time.Now()

	s.timers[address] = &followUpTimer{
		timer: time.AfterFunc(s.delay, func() {
			s.onExpiry(address, gen)
		}),
		armedAt:   now,
		expiresAt: now.Add(s.delay),
		gen:       gen,
	}

	s.logger.Info("follow-up timer armed",
		zap.String("address", address),
		zap.Duration("delay", s.delay))

	return nil
}

// Cancel removes the live timer for an address, if any. Cancelling an address
// with no timer is success, not an error; the return value only reports
// whether a timer existed.
func (s *FollowUpScheduler) Cancel(address string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.timers[address]
	if !ok {
		s.logger.Debug("cancel requested for address with no timer",
			zap.String("address", address))
		return false
	}

	entry.timer.Stop()
	delete(s.timers, address)

	s.logger.Info("follow-up timer cancelled", zap.String("address", address))
	return true
}

// Scheduled reports whether a timer is currently armed for the address.
func (s *FollowUpScheduler) Scheduled(address string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.timers[address]
	return ok
}

// Active returns the number of live timers.
func (s *FollowUpScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.timers)
}

// Stop cancels every live timer and rejects further arming. Idempotent.
// Fire callbacks already past the table check are allowed to finish; their
// state re-read keeps them from acting on anything a reply settled first.
func (s *FollowUpScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true

	for address, entry := range s.timers {
		entry.timer.Stop()
		delete(s.timers, address)
	}

	s.logger.Info("follow-up scheduler stopped")
}

// onExpiry is the timer callback. It removes the table entry first, so that
// by the time the fire callback runs, Cancel for this address is a harmless
// no-op — the mirror image of a cancellation landing first, which stops the
// timer and makes this callback never run at all.
func (s *FollowUpScheduler) onExpiry(address string, gen uint64) {
	s.mu.Lock()
	entry, ok := s.timers[address]
	if !ok || entry.gen != gen {
		// Cancelled, or replaced by a newer arming, between expiry and now.
		s.mu.Unlock()
		s.logger.Info("follow-up timer fired after cancellation or replacement, skipping",
			zap.String("address", address))
		return
	}
	delete(s.timers, address)
	stopped := s.stopped
	s.mu.Unlock()

	if stopped {
		return
	}

	s.logger.Info("follow-up window elapsed", zap.String("address", address))

	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	s.fire(ctx, address)
}
