package dedupe

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// CompleteFunc is the one-shot continuation returned by a New [Outcome]. It
// captures the signal id, the coordinator's ProcessorID, TTL, and
// Persistence handle; it is safe to invoke from any goroutine, but only the
// first invocation takes effect - subsequent calls return
// [ErrAlreadyCompleted].
type CompleteFunc[A any] func(ctx context.Context, value A) error

// Outcome is the result of [Coordinator.TryStart]: either New, meaning the
// caller must run the protected effect and invoke Complete with its result,
// or a Duplicate, carrying a prior run's memoized value - in which case the
// caller must not run the effect.
type Outcome[A any] struct {
	isNew    bool
	value    A
	complete CompleteFunc[A]
}

// IsNew reports whether the caller is the runner for this signal.
func (o Outcome[A]) IsNew() bool { return o.isNew }

// Value returns the memoized value and true for a Duplicate outcome, or the
// zero value and false for a New one.
func (o Outcome[A]) Value() (A, bool) {
	if o.isNew {
		var zero A
		return zero, false
	}
	return o.value, true
}

// Complete invokes the completion continuation of a New outcome. It returns
// [ErrAlreadyCompleted] if called on a Duplicate outcome, or more than once.
func (o Outcome[A]) Complete(ctx context.Context, value A) error {
	if !o.isNew || o.complete == nil {
		return ErrAlreadyCompleted
	}
	return o.complete(ctx, value)
}

// Coordinator composes a [Persistence] backend, a [Config], and a
// [PollStrategy] into the deduplication protocol: [Coordinator.TryStart],
// [Coordinator.Once], and [Coordinator.Invalidate]. It is a plain value -
// constructing multiple Coordinators with different configurations against
// the same backend is supported, e.g. to dedupe the same signals separately
// per ProcessorID. Coordinator holds no mutable state beyond what
// golang.org/x/sync/singleflight uses to collapse concurrent in-process Once
// calls for the same signal; it is safe for concurrent use.
type Coordinator[Id comparable, ProcessorId comparable, A any] struct {
	persistence Persistence[Id, ProcessorId, A]
	config      Config[ProcessorId]
	logger      Logger
	keyFunc     func(Id) string
	group       singleflight.Group
}

// Option configures a Coordinator constructed by [New].
type Option[Id comparable, ProcessorId comparable, A any] func(*Coordinator[Id, ProcessorId, A])

// WithLogger attaches a [Logger] used for debug/info/warn observability
// hooks throughout the protocol. The default discards all output. A nil
// logger is ignored.
func WithLogger[Id comparable, ProcessorId comparable, A any](logger Logger) Option[Id, ProcessorId, A] {
	return func(c *Coordinator[Id, ProcessorId, A]) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithKeyFunc overrides how Id values are rendered as the key used by
// golang.org/x/sync/singleflight to collapse concurrent in-process
// [Coordinator.Once] calls for the same signal. Defaults to fmt.Sprint(id).
// A nil keyFunc is ignored.
func WithKeyFunc[Id comparable, ProcessorId comparable, A any](keyFunc func(Id) string) Option[Id, ProcessorId, A] {
	return func(c *Coordinator[Id, ProcessorId, A]) {
		if keyFunc != nil {
			c.keyFunc = keyFunc
		}
	}
}

// New constructs a Coordinator against the given Persistence backend and
// Config. Panics if persistence is nil, or cfg.PollStrategy isn't a value
// produced by [PollLinear] or [PollBackoff].
func New[Id comparable, ProcessorId comparable, A any](persistence Persistence[Id, ProcessorId, A], cfg Config[ProcessorId], opts ...Option[Id, ProcessorId, A]) *Coordinator[Id, ProcessorId, A] {
	if persistence == nil {
		panic("dedupe: nil persistence")
	}
	cfg.PollStrategy.mustValid()

	c := &Coordinator[Id, ProcessorId, A]{
		persistence: persistence,
		config:      cfg,
		logger:      nopLogger{},
		keyFunc:     func(id Id) string { return fmt.Sprint(id) },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TryStart atomically attempts to claim processing of a signal, the
// low-level entry point to the protocol. Most callers should use
// [Coordinator.Once] instead.
//
// TryStart may block, waiting on a concurrently Running duplicate (see
// [Coordinator.pollForCompletion]); it respects ctx cancellation while
// waiting.
func (c *Coordinator[Id, ProcessorId, A]) TryStart(ctx context.Context, id Id) (Outcome[A], error) {
	if ctx == nil {
		panic("dedupe: nil context")
	}

	now := time.Now()
	rec, err := c.persistence.Claim(ctx, id, c.config.ProcessorID, now)
	if err != nil {
		return Outcome[A]{}, wrapBackendErr("try_start", err)
	}
	if rec == nil {
		c.logger.Info("new process - no previous record found", F("id", id))
		return c.newOutcome(id), nil
	}

	status := rec.Status(now, c.config.MaxProcessingTime)
	switch status.Kind {
	case StatusCompleted:
		c.logger.Info("process already completed - returning memoized value", F("id", id))
		return Outcome[A]{value: status.Memoized}, nil
	case StatusExpired:
		c.logger.Info("previous process expired - allowing retry", F("id", id))
		return c.newOutcome(id), nil
	case StatusTimeout:
		c.logger.Warn("previous process timed out - allowing retry", F("id", id))
		return c.newOutcome(id), nil
	case StatusRunning:
		c.logger.Debug("process is currently running - will poll", F("id", id))
		return c.pollForCompletion(ctx, id)
	default: // StatusNotStarted; shouldn't occur when a record was returned
		c.logger.Info("unexpected not-started status with a record present - treating as new", F("id", id))
		return c.newOutcome(id), nil
	}
}

// Once runs f for a signal and returns its result; across all cooperating
// processes configured with the same ProcessorID, f runs to completion at
// most once per signal within the record's lifetime. Duplicates -
// including concurrent in-process callers, which are additionally collapsed
// via golang.org/x/sync/singleflight - receive the memoized result instead
// of invoking f.
//
// If f returns an error, it propagates unchanged, and Complete is not
// called: the claim remains Running until MaxProcessingTime elapses, after
// which another caller may take over. Once does not invalidate on failure,
// by design - the protected effect may have partially landed, and recovery
// is left to the timeout.
//
// Collapsing concurrent callers via singleflight means they share not only
// the result but also the context of whichever caller's f actually ran: if
// that specific context is canceled, every collapsed caller observes the
// cancellation, even those whose own context is still live. Callers that
// cannot tolerate this should pass distinct Id values, or use
// [Coordinator.TryStart] directly.
func (c *Coordinator[Id, ProcessorId, A]) Once(ctx context.Context, id Id, f func(context.Context) (A, error)) (A, error) {
	if ctx == nil {
		panic("dedupe: nil context")
	}
	if f == nil {
		panic("dedupe: nil f")
	}

	v, err, _ := c.group.Do(c.keyFunc(id), func() (any, error) {
		outcome, err := c.TryStart(ctx, id)
		if err != nil {
			return nil, err
		}
		if !outcome.IsNew() {
			value, _ := outcome.Value()
			return value, nil
		}

		result, err := f(ctx)
		if err != nil {
			return nil, err
		}
		if err := outcome.Complete(ctx, result); err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		var zero A
		return zero, err
	}
	return v.(A), nil
}

// Invalidate unconditionally removes the (id, ProcessorID) record. A
// subsequent TryStart for id returns New, and a subsequent Once runs f again.
func (c *Coordinator[Id, ProcessorId, A]) Invalidate(ctx context.Context, id Id) error {
	if ctx == nil {
		panic("dedupe: nil context")
	}
	if err := c.persistence.Invalidate(ctx, id, c.config.ProcessorID); err != nil {
		return wrapBackendErr("invalidate", err)
	}
	return nil
}

// newOutcome builds a New Outcome, capturing a completion continuation that
// may be invoked at most once.
func (c *Coordinator[Id, ProcessorId, A]) newOutcome(id Id) Outcome[A] {
	var used atomic.Bool
	processorID := c.config.ProcessorID
	ttl := c.config.TTL
	persistence := c.persistence

	return Outcome[A]{
		isNew: true,
		complete: func(ctx context.Context, value A) error {
			if ctx == nil {
				panic("dedupe: nil context")
			}
			if !used.CompareAndSwap(false, true) {
				return ErrAlreadyCompleted
			}
			now := time.Now()
			if err := persistence.Complete(ctx, id, processorID, now, ttl, value); err != nil {
				return wrapBackendErr("complete", err)
			}
			return nil
		},
	}
}

// pollForCompletion is the wait-for-peer loop, entered only when TryStart
// observes a concurrent claimant as Running. It re-issues Claim rather than
// a bare read on each iteration: the backend contract already guarantees a
// single-round-trip observation, so reusing Claim keeps the protocol narrow,
// at the cost of conflating observation with claim intent - a distinct read
// primitive could be substituted without changing behavior.
func (c *Coordinator[Id, ProcessorId, A]) pollForCompletion(ctx context.Context, id Id) (Outcome[A], error) {
	strategy := c.config.PollStrategy
	maxPollDuration := strategy.MaxDuration()
	processorID := c.config.ProcessorID
	start := time.Now()

	for attempt := 0; ; attempt++ {
		delay := strategy.delayForAttempt(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Outcome[A]{}, ctx.Err()
		case <-timer.C:
		}

		if time.Since(start) >= maxPollDuration {
			c.logger.Warn("polling exceeded max duration - taking over", F("id", id))
			return c.newOutcome(id), nil
		}

		now := time.Now()
		rec, err := c.persistence.Claim(ctx, id, processorID, now)
		if err != nil {
			return Outcome[A]{}, wrapBackendErr("poll", err)
		}
		if rec == nil {
			c.logger.Info("record disappeared mid-poll - taking over", F("id", id))
			return c.newOutcome(id), nil
		}

		status := rec.Status(now, c.config.MaxProcessingTime)
		switch status.Kind {
		case StatusCompleted:
			c.logger.Info("process completed during polling", F("id", id))
			return Outcome[A]{value: status.Memoized}, nil
		case StatusExpired, StatusTimeout:
			c.logger.Info("process expired/timed out during polling - taking over", F("id", id))
			return c.newOutcome(id), nil
		case StatusRunning:
			c.logger.Debug("process still running, continuing to poll", F("id", id), F("attempt", attempt+1))
			continue
		default: // StatusNotStarted
			return c.newOutcome(id), nil
		}
	}
}
