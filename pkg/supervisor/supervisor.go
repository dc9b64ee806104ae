// Package supervisor implements the TM Supervisor (C5): it runs the
// Topology Master as a bounded-retry task on a dedicated executor,
// independent of the Allocation Coordinator and Worker State Machine.
//
// It is grounded on the teacher's pkg/reconciler retry-and-log loop
// (reconcile on a schedule, log failures, keep going), generalized from "run
// forever on a ticker" to "run, and if it returns and we're not killed,
// relaunch up to a bounded number of times."
package supervisor

import (
	"context"
	"strconv"
	"sync"

	"github.com/LK4D4/joincontext"
	"github.com/heron-streaming/tam/pkg/events"
	"github.com/heron-streaming/tam/pkg/metrics"
	"github.com/rs/zerolog"
)

// DefaultMaxRetries is the retry counter's initial value, per §4.5.
const DefaultMaxRetries = 3

// RunFunc runs the Topology Master executor synchronously until it exits
// or ctx is cancelled.
type RunFunc func(ctx context.Context) error

// Notify reports a lifecycle event to the caller, e.g. the Lifecycle
// Controller's broker-backed publish method. A nil Notify is valid; the
// supervisor runs headless.
type Notify func(typ events.EventType, msg string, meta map[string]string)

// Supervisor is the C5 TM Supervisor.
type Supervisor struct {
	run        RunFunc
	logger     zerolog.Logger
	notify     Notify
	maxRetries int

	mu         sync.Mutex
	started    bool
	killed     bool
	retries    int
	killCancel context.CancelFunc
	done       chan struct{}
}

// New builds a Supervisor that runs run when Launch is called, with the
// retry counter initialised to maxRetries (DefaultMaxRetries if <= 0).
// notify may be nil.
func New(run RunFunc, logger zerolog.Logger, maxRetries int, notify Notify) *Supervisor {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Supervisor{
		run:        run,
		logger:     logger.With().Str("component", "tm-supervisor").Logger(),
		notify:     notify,
		maxRetries: maxRetries,
		retries:    maxRetries,
		done:       make(chan struct{}),
	}
}

// Launch submits the run task to the dedicated executor. ctx is the
// caller's own lifetime context (e.g. process shutdown); the task is
// cancelled when either ctx or a subsequent Kill fires, whichever is
// first. Launch is a no-op if already launched.
func (s *Supervisor) Launch(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	killCtx, killCancel := context.WithCancel(context.Background())
	s.killCancel = killCancel
	s.mu.Unlock()

	go s.loop(ctx, killCtx)
}

func (s *Supervisor) loop(callerCtx context.Context, killCtx context.Context) {
	defer close(s.done)

	for {
		metrics.TMRunning.Set(1)
		taskCtx, cancel := joincontext.Join(callerCtx, killCtx)
		err := s.run(taskCtx)
		cancel()
		metrics.TMRunning.Set(0)

		s.mu.Lock()
		if s.killed {
			s.mu.Unlock()
			s.logger.Info().Msg("topology killed, TM supervisor exiting")
			return
		}
		s.retries--
		retries := s.retries
		s.mu.Unlock()

		if err != nil {
			s.logger.Error().Err(err).Msg("topology master task returned with error")
		} else {
			s.logger.Warn().Msg("topology master task returned")
		}

		if retries <= 0 {
			s.logger.Error().Int("max_retries", s.maxRetries).Msg("topology master exhausted retries, giving up")
			if s.notify != nil {
				s.notify(events.EventTMExhausted, "topology master exhausted retries", nil)
			}
			return
		}

		metrics.TMRestartsTotal.Inc()
		s.logger.Info().Int("retries_remaining", retries).Msg("relaunching topology master")
		if s.notify != nil {
			s.notify(events.EventTMRestarted, "topology master relaunched", map[string]string{"retries_remaining": strconv.Itoa(retries)})
		}
	}
}

// Kill sets the kill flag, cancels the in-flight task, and prevents any
// further relaunch. It is idempotent: a second call is a no-op.
func (s *Supervisor) Kill() {
	s.mu.Lock()
	if s.killed {
		s.mu.Unlock()
		return
	}
	s.killed = true
	cancel := s.killCancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	metrics.TMRunning.Set(0)
}

// Done returns a channel closed once the supervisor's loop has exited,
// either because it was killed or because it exhausted its retries. It is
// nil-safe to select on before Launch is ever called only insofar as the
// channel is never closed in that case; callers that need to observe
// completion should always call Launch first.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}
