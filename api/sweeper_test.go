package api

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/heatx/energy-engine/allocation"
)

func TestSessionRegistry_SweepEvictsIdle(t *testing.T) {
	// GIVEN: Two sessions, one touched recently
	clock := &testClock{now: fixedNow}
	reg := NewSessionRegistry(clock)
	stale := reg.Create(allocation.DefaultWeights)
	fresh := reg.Create(allocation.DefaultWeights)

	clock.Advance(20 * time.Minute)
	_, err := reg.Get(fresh.ID)
	require.NoError(t, err)
	clock.Advance(15 * time.Minute)

	// WHEN: Sweeping with a 30 minute TTL
	evicted := reg.Sweep(30 * time.Minute)

	// THEN: Only the stale one is gone
	assert.Equal(t, []string{stale.ID}, evicted)
	assert.Equal(t, 1, reg.Len())
	_, err = reg.Get(stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRegistry_DoKeepsSessionAlive(t *testing.T) {
	// GIVEN: A session edited every 10 minutes for 40 minutes
	clock := &testClock{now: fixedNow}
	reg := NewSessionRegistry(clock)
	sess := reg.Create(allocation.DefaultWeights)

	for i := 0; i < 4; i++ {
		clock.Advance(10 * time.Minute)
		require.NoError(t, sess.Do(func(e *allocation.Engine) error {
			return e.SetWeight(allocation.Industries, 30+i)
		}))
	}

	// WHEN: Sweeping with a 30 minute TTL
	evicted := reg.Sweep(30 * time.Minute)

	// THEN: The session is still live
	assert.Empty(t, evicted)
	_, err := reg.Get(sess.ID)
	assert.NoError(t, err)
}

func TestSessionRegistry_SweepDoesNotBlockOnBusySession(t *testing.T) {
	// GIVEN: A stale session whose engine is held by a long-running Do
	clock := &testClock{now: fixedNow}
	reg := NewSessionRegistry(clock)
	busy := reg.Create(allocation.DefaultWeights)

	entered := make(chan struct{})
	release := make(chan struct{})
	doneDo := make(chan struct{})
	go func() {
		defer close(doneDo)
		_ = busy.Do(func(e *allocation.Engine) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered
	clock.Advance(time.Hour)

	swept := make(chan []string, 1)
	go func() { swept <- reg.Sweep(30 * time.Minute) }()

	// WHEN: Other callers use the registry while the sweep waits
	created := make(chan *Session, 1)
	go func() { created <- reg.Create(allocation.DefaultWeights) }()

	// THEN: Create and Get are not held up
	var fresh *Session
	select {
	case fresh = <-created:
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("Create blocked behind a busy session during sweep")
	}
	_, err := reg.Get(fresh.ID)
	require.NoError(t, err)

	// AND: The sweep completes once the engine is released
	close(release)
	<-doneDo
	select {
	case evicted := <-swept:
		assert.Equal(t, []string{busy.ID}, evicted)
	case <-time.After(2 * time.Second):
		t.Fatal("sweep never finished")
	}
}

func TestSessionRegistry_EnginesUseRegistryClock(t *testing.T) {
	clock := &testClock{now: fixedNow}
	reg := NewSessionRegistry(clock)
	sess := reg.Create(allocation.DefaultWeights)

	var report allocation.Report
	require.NoError(t, sess.Do(func(e *allocation.Engine) error {
		var err error
		report, err = e.Finalize()
		return err
	}))
	assert.Equal(t, fixedNow, report.GeneratedAt)
}

func TestSessionSweeper_RunOnce(t *testing.T) {
	clock := &testClock{now: fixedNow}
	reg := NewSessionRegistry(clock)
	reg.Create(allocation.DefaultWeights)

	sweeper := NewSessionSweeper(reg, time.Minute, "@every 1m", zerolog.Nop())
	assert.Equal(t, 0, sweeper.RunOnce())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, sweeper.RunOnce())
	assert.Equal(t, 0, reg.Len())
}

func TestSessionSweeper_StartStopNoLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	reg := NewSessionRegistry(nil)
	sweeper := NewSessionSweeper(reg, time.Minute, "@every 1h", zerolog.Nop())

	require.NoError(t, sweeper.Start())
	require.NoError(t, sweeper.Start(), "second start is a no-op")
	sweeper.Stop()
	sweeper.Stop()
}

func TestSessionSweeper_InvalidSchedule(t *testing.T) {
	sweeper := NewSessionSweeper(NewSessionRegistry(nil), time.Minute, "every now and then", zerolog.Nop())
	assert.Error(t, sweeper.Start())
}
