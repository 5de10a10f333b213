package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGateway struct {
	mu    sync.Mutex
	sent  []Message
	err   error
	block chan struct{}
}

func (g *recordingGateway) Send(ctx context.Context, msg Message) error {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, msg)
	return g.err
}

func (g *recordingGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherDeliversAll(t *testing.T) {
	gw := &recordingGateway{}
	d := NewDispatcher(gw, discardLogger(), DispatcherOptions{Workers: 3, QueueSize: 16})

	for i := range 10 {
		d.Notify(Message{Event: EventBorrowRequested, To: Contact{UserID: int64(i)}})
	}
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 10, gw.count())
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	gw := &recordingGateway{block: make(chan struct{})}
	d := NewDispatcher(gw, discardLogger(), DispatcherOptions{Workers: 1, QueueSize: 1})

	// One message is held by the worker, one sits in the queue, the rest
	// are dropped. Notify must never block.
	done := make(chan struct{})
	go func() {
		for range 5 {
			d.Notify(Message{Event: EventLoanOverdue})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a full queue")
	}

	close(gw.block)
	require.NoError(t, d.Close(context.Background()))
	assert.LessOrEqual(t, gw.count(), 2)
	assert.GreaterOrEqual(t, gw.count(), 1)
}

func TestDispatcherSwallowsGatewayErrors(t *testing.T) {
	gw := &recordingGateway{err: errors.New("smtp down")}
	d := NewDispatcher(gw, discardLogger(), DispatcherOptions{})

	d.Notify(Message{Event: EventBorrowApproved})
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 1, gw.count())
}

func TestDispatcherNotifyAfterClose(t *testing.T) {
	gw := &recordingGateway{}
	d := NewDispatcher(gw, discardLogger(), DispatcherOptions{})
	require.NoError(t, d.Close(context.Background()))

	assert.NotPanics(t, func() { d.Notify(Message{Event: EventBorrowApproved}) })
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 0, gw.count())
}

func TestDispatcherCloseHonoursContext(t *testing.T) {
	gw := &recordingGateway{block: make(chan struct{})}
	d := NewDispatcher(gw, discardLogger(), DispatcherOptions{Workers: 1})
	d.Notify(Message{Event: EventBorrowApproved})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

	close(gw.block)
}

func TestLogGateway(t *testing.T) {
	gw := LogGateway{Log: discardLogger()}
	err := gw.Send(context.Background(), Message{Event: EventItemReturned, Payload: map[string]string{"item": "Drill"}})
	assert.NoError(t, err)
}

func TestLogGatewayRedactsResponseLink(t *testing.T) {
	var buf bytes.Buffer
	gw := LogGateway{Log: slog.New(slog.NewTextHandler(&buf, nil))}

	err := gw.Send(context.Background(), Message{
		Event: EventBorrowRequested,
		To:    Contact{UserID: 7, Email: "lender@example.org", Phone: "+38640111222"},
		Payload: map[string]string{
			"item":          "Drill",
			"response_link": "http://localhost:8080/api/respond/0123456789abcdef",
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "item=Drill")
	assert.Contains(t, out, "response_link=[redacted]")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.NotContains(t, out, "lender@example.org")
	assert.NotContains(t, out, "+38640111222")
}
