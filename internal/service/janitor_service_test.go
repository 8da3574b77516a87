package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dat-nglt/cusc-schedule/pkg/jobs"
)

type stubTokenJanitor struct {
	blacklistCalls []time.Time
	refreshCalls   []time.Time
	failBlacklist  bool
}

func (s *stubTokenJanitor) PurgeExpiredBlacklist(_ context.Context, now time.Time) (int64, error) {
	s.blacklistCalls = append(s.blacklistCalls, now)
	if s.failBlacklist {
		return 0, errors.New("db down")
	}
	return 2, nil
}

func (s *stubTokenJanitor) PurgeStaleRefreshTokens(_ context.Context, now time.Time) (int64, error) {
	s.refreshCalls = append(s.refreshCalls, now)
	return 1, nil
}

type stubExpirer struct {
	calls []time.Time
}

func (s *stubExpirer) ExpireStale(_ context.Context, today time.Time) (int64, error) {
	s.calls = append(s.calls, today)
	return 3, nil
}

func newTestJanitor(tokens *stubTokenJanitor, requests *stubExpirer, queue jobDispatcher) *JanitorService {
	svc := NewJanitorService(tokens, requests, queue, nil, nil, time.Minute)
	svc.now = func() time.Time { return time.Date(2024, 9, 10, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestJanitorRunOnceExecutesEveryJob(t *testing.T) {
	tokens := &stubTokenJanitor{}
	requests := &stubExpirer{}
	svc := newTestJanitor(tokens, requests, nil)

	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Len(t, tokens.blacklistCalls, 1)
	assert.Len(t, tokens.refreshCalls, 1)
	require.Len(t, requests.calls, 1)
	assert.Equal(t, time.Date(2024, 9, 10, 8, 0, 0, 0, time.UTC), requests.calls[0])
}

func TestJanitorRunOnceJoinsErrors(t *testing.T) {
	tokens := &stubTokenJanitor{failBlacklist: true}
	requests := &stubExpirer{}
	svc := newTestJanitor(tokens, requests, nil)

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobPurgeBlacklist)
	// later jobs still run after a failure
	assert.Len(t, tokens.refreshCalls, 1)
	assert.Len(t, requests.calls, 1)
}

func TestJanitorHandleRejectsUnknownType(t *testing.T) {
	svc := newTestJanitor(&stubTokenJanitor{}, &stubExpirer{}, nil)
	err := svc.Handle(context.Background(), jobs.Job{Type: "unknown"})
	assert.Error(t, err)
}

func TestJanitorRegisterRoutesThroughMux(t *testing.T) {
	tokens := &stubTokenJanitor{}
	requests := &stubExpirer{}
	svc := newTestJanitor(tokens, requests, nil)

	mux := jobs.NewMux()
	svc.Register(mux)

	require.NoError(t, mux.Dispatch(context.Background(), jobs.Job{Type: JobExpireChangeRequests}))
	assert.Len(t, requests.calls, 1)
	assert.Empty(t, tokens.blacklistCalls)
}

func TestJanitorScheduleEnqueuesRound(t *testing.T) {
	queue := &recordingDispatcher{}
	svc := newTestJanitor(&stubTokenJanitor{}, &stubExpirer{}, queue)

	svc.Schedule()
	require.Len(t, queue.jobs, len(janitorJobs))
	for i, job := range queue.jobs {
		assert.Equal(t, janitorJobs[i], job.Type)
	}
}

func TestJanitorScheduleToleratesStoppedQueue(t *testing.T) {
	queue := &recordingDispatcher{err: jobs.ErrQueueStopped}
	svc := newTestJanitor(&stubTokenJanitor{}, &stubExpirer{}, queue)

	assert.NotPanics(t, svc.Schedule)
}

func TestJanitorRunStopsOnCancel(t *testing.T) {
	queue := &recordingDispatcher{}
	svc := newTestJanitor(&stubTokenJanitor{}, &stubExpirer{}, queue)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
