package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingRunner struct {
	entered chan struct{}
	release chan struct{}
	calls   int
}

func (b *blockingRunner) Run(context.Context) Report {
	b.calls++
	if b.entered != nil {
		b.entered <- struct{}{}
		<-b.release
	}
	return Report{Created: b.calls}
}

func TestCoordinatorRunOnceStoresLast(t *testing.T) {
	c := NewCoordinator(context.Background(), &blockingRunner{})

	_, ok := c.Last()
	assert.False(t, ok)

	rep, ran := c.RunOnce()
	require.True(t, ran)
	assert.Equal(t, 1, rep.Created)

	last, ok := c.Last()
	require.True(t, ok)
	assert.Equal(t, 1, last.Created)
	assert.False(t, c.Running())
}

func TestCoordinatorRejectsOverlap(t *testing.T) {
	r := &blockingRunner{entered: make(chan struct{}), release: make(chan struct{})}
	c := NewCoordinator(context.Background(), r)

	require.True(t, c.Trigger())
	<-r.entered

	assert.True(t, c.Running())
	assert.False(t, c.Trigger())
	_, ran := c.RunOnce()
	assert.False(t, ran)

	close(r.release)
	c.Wait()

	assert.False(t, c.Running())
	assert.Equal(t, 1, r.calls)
	last, ok := c.Last()
	require.True(t, ok)
	assert.Equal(t, 1, last.Created)
}
