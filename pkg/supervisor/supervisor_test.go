package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/heron-streaming/tam/pkg/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func waitDone(t *testing.T, s *Supervisor) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(waitFor):
		t.Fatal("supervisor did not finish in time")
	}
}

func TestLaunchExhaustsRetriesThenStops(t *testing.T) {
	runs := make(chan struct{}, 10)
	s := New(func(ctx context.Context) error {
		runs <- struct{}{}
		return errors.New("tm crashed")
	}, zerolog.Nop(), 3, nil)

	s.Launch(context.Background())
	waitDone(t, s)

	assert.Len(t, runs, 3, "initial run plus two relaunches, then retries hit zero")
}

func TestKillStopsRelaunchAfterCurrentRunReturns(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	runs := make(chan struct{}, 10)

	s := New(func(ctx context.Context) error {
		runs <- struct{}{}
		close(started)
		<-release
		return nil
	}, zerolog.Nop(), 3, nil)

	s.Launch(context.Background())

	select {
	case <-started:
	case <-time.After(waitFor):
		t.Fatal("task never started")
	}

	s.Kill()
	close(release)
	waitDone(t, s)

	assert.Len(t, runs, 1, "killed before the first run returned, so no relaunch")
}

func TestKillCancelsInFlightTaskContext(t *testing.T) {
	cancelled := make(chan struct{})
	s := New(func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}, zerolog.Nop(), 3, nil)

	s.Launch(context.Background())
	s.Kill()

	select {
	case <-cancelled:
	case <-time.After(waitFor):
		t.Fatal("task context was never cancelled by Kill")
	}
	waitDone(t, s)
}

func TestLaunchIsIdempotent(t *testing.T) {
	runs := make(chan struct{}, 10)
	s := New(func(ctx context.Context) error {
		runs <- struct{}{}
		return nil
	}, zerolog.Nop(), 1, nil)

	s.Launch(context.Background())
	s.Launch(context.Background())
	waitDone(t, s)

	assert.Len(t, runs, 1)
}

func TestCallerContextCancellationPropagatesToTask(t *testing.T) {
	cancelled := make(chan struct{})
	var once sync.Once
	callerCtx, callerCancel := context.WithCancel(context.Background())

	// Caller cancellation is not a kill, so the supervisor may relaunch the
	// task (with an already-cancelled context) before Kill below; close the
	// channel only on the first run.
	s := New(func(ctx context.Context) error {
		<-ctx.Done()
		once.Do(func() { close(cancelled) })
		return ctx.Err()
	}, zerolog.Nop(), 3, nil)

	s.Launch(callerCtx)
	callerCancel()

	select {
	case <-cancelled:
	case <-time.After(waitFor):
		t.Fatal("task context was never cancelled by caller ctx")
	}

	s.Kill()
	waitDone(t, s)
}

func TestDefaultMaxRetriesAppliedWhenNonPositive(t *testing.T) {
	runs := make(chan struct{}, 10)
	s := New(func(ctx context.Context) error {
		runs <- struct{}{}
		return errors.New("boom")
	}, zerolog.Nop(), 0, nil)

	require.Equal(t, DefaultMaxRetries, s.maxRetries)

	s.Launch(context.Background())
	waitDone(t, s)
	assert.Len(t, runs, DefaultMaxRetries)
}

func TestNotifyReportsRestartsThenExhaustion(t *testing.T) {
	var mu sync.Mutex
	var seen []events.EventType

	s := New(func(ctx context.Context) error {
		return errors.New("tm crashed")
	}, zerolog.Nop(), 2, func(typ events.EventType, msg string, meta map[string]string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, typ)
	})

	s.Launch(context.Background())
	waitDone(t, s)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []events.EventType{events.EventTMRestarted, events.EventTMExhausted}, seen)
}
