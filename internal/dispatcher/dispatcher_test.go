package dispatcher

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.add("DEBUG", msg, keysAndValues)
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.add("INFO", msg, keysAndValues)
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.add("ERROR", msg, keysAndValues)
}

func (l *testLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, kv))
}

func (l *testLogger) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("unit_created", func(e Event) (any, error) {
		return e.Payload.(int) * 2, nil
	})

	result, err := d.Dispatch(Event{Kind: "unit_created", Payload: 21})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestDispatcher_StampsTimestamp(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got time.Time
	d.Register("step", func(e Event) (any, error) {
		got = e.Timestamp
		return nil, nil
	})

	_, err := d.Dispatch(Event{Kind: "step"})
	require.NoError(t, err)
	assert.False(t, got.IsZero())

	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = d.Dispatch(Event{Kind: "step", Timestamp: fixed})
	require.NoError(t, err)
	assert.Equal(t, fixed, got)
}

func TestDispatcher_UnknownKind(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Kind: "nope"})
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.ErrorContains(t, err, "nope")
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var count atomic.Int32
	d.Register("engagement", func(e Event) (any, error) {
		count.Add(1)
		return nil, nil
	}, Buffered(10))

	for i := 0; i < 5; i++ {
		result, err := d.Dispatch(Event{Kind: "engagement"})
		require.NoError(t, err)
		assert.Equal(t, "queued", result)
	}

	assert.Eventually(t, func() bool { return count.Load() == 5 }, time.Second, 5*time.Millisecond)
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 1)
	block := make(chan struct{})
	d.Register("full", func(e Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(2))
	defer close(block)

	_, err := d.Dispatch(Event{Kind: "full"})
	require.NoError(t, err)
	<-started // first event is being processed

	_, err = d.Dispatch(Event{Kind: "full"})
	require.NoError(t, err)
	_, err = d.Dispatch(Event{Kind: "full"})
	require.NoError(t, err)

	_, err = d.Dispatch(Event{Kind: "full"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 1)
	block := make(chan struct{})
	d.Register("blocking", func(e Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	_, _ = d.Dispatch(Event{Kind: "blocking"})
	<-started
	_, _ = d.Dispatch(Event{Kind: "blocking"})

	done := make(chan struct{})
	go func() {
		_, _ = d.Dispatch(Event{Kind: "blocking"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("dispatch did not unblock")
	}
}

func TestDispatcher_CloseDrainsQueue(t *testing.T) {
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)

	var handled []int
	d.Register("state", func(e Event) (any, error) {
		time.Sleep(time.Millisecond)
		handled = append(handled, e.Payload.(int))
		return nil, nil
	}, Buffered(100), Blocking())

	for i := 0; i < 20; i++ {
		_, err := d.Dispatch(Event{Kind: "state", Payload: i})
		require.NoError(t, err)
	}
	d.Close()

	require.Len(t, handled, 20)
	for i, v := range handled {
		assert.Equal(t, i, v, "events are handled in order")
	}

	_, err = d.Dispatch(Event{Kind: "state", Payload: 99})
	assert.ErrorIs(t, err, ErrClosed)

	// closing twice is a no-op
	d.Close()
}

func TestDispatcher_BufferedHandlerErrorIsLogged(t *testing.T) {
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)

	d.Register("bad", func(e Event) (any, error) {
		return nil, errors.New("disk full")
	}, Buffered(1))

	_, err = d.Dispatch(Event{Kind: "bad"})
	require.NoError(t, err)
	d.Close()

	msgs := logger.all()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "ERROR: buffered event failed")
	assert.Contains(t, msgs[0], "disk full")
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("logged", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	_, err := d.Dispatch(Event{Kind: "logged"})
	require.NoError(t, err)

	msgs := logger.all()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "handling event")
	assert.Contains(t, msgs[1], "event complete")
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("failing", func(e Event) (any, error) {
		return nil, errors.New("boom")
	}, Logged())

	_, err := d.Dispatch(Event{Kind: "failing"})
	assert.EqualError(t, err, "boom")

	msgs := logger.all()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1], "ERROR: event failed")
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	assert.False(t, d.HasHandler("x"))
	d.Register("x", func(e Event) (any, error) { return nil, nil })
	assert.True(t, d.HasHandler("x"))
}
