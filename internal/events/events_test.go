package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apexline/simcore/pkg/protocol"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}

	d, err := NewDispatcher(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestQueue_PushDrain(t *testing.T) {
	q := NewQueue[Event]()
	if !q.Empty() {
		t.Error("expected empty queue")
	}

	q.Push(RosterJoined{UserID: 1, Name: "a"})
	q.Push(RosterLeft{UserID: 1}, RaceStarted{})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}

	items := q.Drain()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if _, ok := items[0].(RosterJoined); !ok {
		t.Errorf("expected RosterJoined first, got %T", items[0])
	}
	if !q.Empty() {
		t.Error("expected empty queue after drain")
	}
}

func TestQueue_PopEmptyReturnsZero(t *testing.T) {
	q := NewQueue[Event]()
	if ev := q.Pop(); ev != nil {
		t.Errorf("expected nil event, got %v", ev)
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := NewQueue[int]()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(n)
			}
		}(i)
	}
	wg.Wait()
	if q.Len() != 1000 {
		t.Errorf("expected 1000 items, got %d", q.Len())
	}
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got protocol.Message
	d.Register(protocol.KindPing, func(m protocol.Message) error {
		got = m
		return nil
	})

	err := d.Dispatch(protocol.Ping{Timestamp: 99})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	ping, ok := got.(protocol.Ping)
	if !ok {
		t.Fatalf("expected Ping, got %T", got)
	}
	if ping.Timestamp != 99 {
		t.Errorf("expected timestamp 99, got %d", ping.Timestamp)
	}
}

func TestDispatcher_UnknownKind(t *testing.T) {
	d, _ := newTestDispatcher(t)

	if err := d.Dispatch(protocol.StartRace{}); err == nil {
		t.Error("expected error for unregistered kind")
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register(protocol.KindUpdate, func(m protocol.Message) error {
		processed.Add(1)
		wg.Done()
		return nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		if err := d.Dispatch(protocol.Update{}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for buffered handler")
	}

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	d.Register(protocol.KindUpdate, func(m protocol.Message) error {
		<-block
		return nil
	}, Buffered(1))

	// First fills the worker, second fills the buffer, third must drop.
	_ = d.Dispatch(protocol.Update{})
	_ = d.Dispatch(protocol.Update{})

	var dropErr error
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if dropErr = d.Dispatch(protocol.Update{}); dropErr != nil {
			break
		}
	}
	close(block)

	if dropErr == nil {
		t.Error("expected queue-full error")
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(protocol.KindPong, func(m protocol.Message) error {
		return nil
	}, Logged())

	if err := d.Dispatch(protocol.Pong{Timestamp: 1}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.messages) == 0 {
		t.Error("expected debug log entries")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(protocol.KindConnect, func(m protocol.Message) error { return nil })

	if !d.HasHandler(protocol.KindConnect) {
		t.Error("expected handler for Connect")
	}
	if d.HasHandler(protocol.KindRaceStarted) {
		t.Error("expected no handler for RaceStarted")
	}
}
