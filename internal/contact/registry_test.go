package contact

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryOpenGetRelease(t *testing.T) {
	r := NewRegistry(&countingSender{}, time.Minute, 0, nil)
	defer r.Close()

	f := r.Open()
	require.NotEmpty(t, f.ID())

	got, err := r.Get(f.ID())
	require.NoError(t, err)
	assert.Same(t, f, got)

	r.Release(f.ID())
	_, err = r.Get(f.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, f.Closed())
}

func TestRegistrySweepEvictsIdleForms(t *testing.T) {
	r := NewRegistry(&countingSender{}, time.Minute, 0, nil)
	defer r.Close()

	idle := r.Open()
	busy := r.Open()
	require.NoError(t, busy.Begin(ann))

	n := r.Sweep(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 1, n)
	assert.True(t, idle.Closed())
	assert.False(t, busy.Closed())
	assert.Equal(t, 1, r.Len())

	assert.Zero(t, r.Sweep(time.Now()))
}

func TestRegistryRunClosesFormsOnCancel(t *testing.T) {
	r := NewRegistry(&countingSender{}, time.Minute, 0, nil)
	f := r.Open()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- r.Run(ctx, 10*time.Millisecond) }()

	cancel()
	require.NoError(t, <-done)
	assert.True(t, f.Closed())
	assert.Zero(t, r.Len())
}

func TestRegistryDraftAllocatesOnAcquire(t *testing.T) {
	r := NewRegistry(&countingSender{}, time.Minute, 0, nil)
	defer r.Close()

	for i := 0; i < 10; i++ {
		r.Draft()
	}
	assert.Zero(t, r.Len())

	draft := r.Draft()
	v, err := r.Peek(draft.ID)
	require.NoError(t, err)
	assert.Equal(t, Idle, v.Phase)
	assert.Equal(t, draft.ID, v.ID)
	assert.Zero(t, r.Len())

	_, err = r.Peek("bogus")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Acquire("bogus")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, r.Len())

	f, err := r.Acquire(draft.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, f.ID())
	again, err := r.Acquire(draft.ID)
	require.NoError(t, err)
	assert.Same(t, f, again)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryEvictsOldestIdleWhenFull(t *testing.T) {
	r := NewRegistry(&countingSender{}, time.Hour, 2, nil)
	defer r.Close()

	busy := r.Open()
	require.NoError(t, busy.Begin(ann))
	old := r.Open()
	time.Sleep(time.Millisecond)

	fresh := r.Open()
	assert.True(t, old.Closed())
	assert.False(t, busy.Closed())
	assert.Equal(t, 2, r.Len())

	next, err := r.Acquire(uuid.NewString())
	require.NoError(t, err)
	assert.True(t, fresh.Closed())
	require.NoError(t, next.Begin(ann))

	_, err = r.Acquire(uuid.NewString())
	assert.ErrorIs(t, err, ErrFull)
	assert.Equal(t, 2, r.Len())
	assert.False(t, busy.Closed())
	assert.False(t, next.Closed())
}
