package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/iamasit07/colorguess/backend/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGames struct {
	ids    []int64
	cutoff time.Time
	err    error
}

func (f *fakeGames) ActiveGameIDs(_ context.Context, startedBefore time.Time) ([]int64, error) {
	f.cutoff = startedBefore
	return f.ids, f.err
}

type fakeAbandoner struct {
	mu      sync.Mutex
	expired map[int64]bool
	fail    map[int64]error
	calls   []int64
}

func (f *fakeAbandoner) Abandon(_ context.Context, gameID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, gameID)
	if err := f.fail[gameID]; err != nil {
		return false, err
	}
	return f.expired[gameID], nil
}

func TestRunOnce(t *testing.T) {
	games := &fakeGames{ids: []int64{1, 2, 3, 4}}
	abandoner := &fakeAbandoner{
		expired: map[int64]bool{1: true, 3: true, 4: true},
		fail:    map[int64]error{4: domain.ErrGameBusy},
	}
	clock := quartz.NewMock(t)
	now := clock.Now()

	w := NewWorker(games, abandoner, time.Hour, clock, zerolog.Nop())

	closed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, closed)
	assert.Equal(t, []int64{1, 2, 3, 4}, abandoner.calls)
	assert.Equal(t, now.Add(-time.Hour), games.cutoff)
}

func TestRunOnceListError(t *testing.T) {
	games := &fakeGames{err: errors.New("db down")}
	w := NewWorker(games, &fakeAbandoner{}, time.Hour, quartz.NewMock(t), zerolog.Nop())

	_, err := w.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestStartStopsWithContext(t *testing.T) {
	abandoner := &fakeAbandoner{expired: map[int64]bool{7: true}}
	clock := quartz.NewMock(t)
	w := NewWorker(&fakeGames{ids: []int64{7}}, abandoner, 0, clock, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx, time.Minute)
		close(done)
	}()

	// One pass runs at start, the next on the first tick.
	assert.Eventually(t, func() bool {
		clock.Advance(time.Minute)
		abandoner.mu.Lock()
		defer abandoner.mu.Unlock()
		return len(abandoner.calls) >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
