package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closer struct{ closed bool }

func (c *closer) Close() error {
	c.closed = true
	return nil
}

func TestShutdown_ReverseOrder(t *testing.T) {
	m := New(time.Second, nil)
	var order []string
	m.Register("first", func(context.Context) error { order = append(order, "first"); return nil })
	m.Register("second", func(context.Context) error { order = append(order, "second"); return errors.New("boom") })
	c := &closer{}
	m.Register("closer", CloseResource(c))

	err := m.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second: boom")
	assert.Equal(t, []string{"second", "first"}, order)
	assert.True(t, c.closed)

	assert.NoError(t, m.Shutdown(), "second call is a no-op")
	assert.Len(t, order, 2)
}

func TestWait_ContextCancel(t *testing.T) {
	m := New(time.Second, nil)
	ran := false
	m.Register("hook", func(context.Context) error { ran = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, m.Wait(ctx))
	assert.True(t, ran)
}

func TestShutdown_HookSeesDeadline(t *testing.T) {
	m := New(50*time.Millisecond, nil)
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	err := m.Shutdown()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
