package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingHandler records every message and port it has been given.
type countingHandler struct {
	mu      sync.Mutex
	port    *Port
	ports   int
	handled []Message
	got     chan Message
}

func (h *countingHandler) SetPort(p *Port) {
	h.mu.Lock()
	h.port = p
	h.ports++
	h.mu.Unlock()
}

func (h *countingHandler) Handle(msg Message) {
	h.mu.Lock()
	h.handled = append(h.handled, msg)
	p := h.port
	h.mu.Unlock()
	_ = p.Post(SummarizeDone{Summary: "echo:" + msg.(ChatQuery).Text})
	h.got <- msg
}

func TestPortBinderKeepsOneHandler(t *testing.T) {
	b := newTestBus(t)
	bg := b.Open(BackgroundContext)
	cli := b.Open("cli")

	created := 0
	var handler *countingHandler
	binder := NewPortBinder(func(p *Port) PortHandler {
		created++
		handler = &countingHandler{got: make(chan Message, 4)}
		handler.SetPort(p)
		return handler
	})
	bg.OnConnect("pagesum_engine", binder.Bind)

	first, err := cli.Connect(BackgroundContext, "pagesum_engine")
	require.NoError(t, err)
	replies1 := make(chan Message, 2)
	first.OnMessage(func(m Message) { replies1 <- m })
	require.NoError(t, first.Post(ChatQuery{Text: "one"}))

	select {
	case m := <-replies1:
		assert.Equal(t, "echo:one", m.(SummarizeDone).Summary)
	case <-time.After(time.Second):
		t.Fatal("no reply on first port")
	}

	second, err := cli.Connect(BackgroundContext, "pagesum_engine")
	require.NoError(t, err)
	replies2 := make(chan Message, 2)
	second.OnMessage(func(m Message) { replies2 <- m })
	require.NoError(t, second.Post(ChatQuery{Text: "two"}))

	select {
	case m := <-replies2:
		assert.Equal(t, "echo:two", m.(SummarizeDone).Summary)
	case <-time.After(time.Second):
		t.Fatal("no reply on second port")
	}

	assert.Equal(t, 1, created)
	handler.mu.Lock()
	assert.Equal(t, 2, handler.ports)
	assert.Len(t, handler.handled, 2)
	handler.mu.Unlock()
}

func TestPortDisconnect(t *testing.T) {
	b := newTestBus(t)
	bg := b.Open(BackgroundContext)
	cli := b.Open("cli")

	gone := make(chan struct{})
	bg.OnConnect("pagesum_engine", func(p *Port) {
		p.OnDisconnect(func() { close(gone) })
	})

	p, err := cli.Connect(BackgroundContext, "pagesum_engine")
	require.NoError(t, err)
	p.Disconnect()

	select {
	case <-gone:
	case <-time.After(time.Second):
		t.Fatal("disconnect not observed")
	}
	assert.ErrorIs(t, p.Post(GetStatus{}), ErrPortClosed)
}

func TestConnectWithoutListener(t *testing.T) {
	b := newTestBus(t)
	cli := b.Open("cli")
	b.Open(BackgroundContext)

	_, err := cli.Connect(BackgroundContext, "pagesum_engine")
	assert.ErrorIs(t, err, ErrNoListener)

	_, err = cli.Connect("missing", "pagesum_engine")
	assert.ErrorIs(t, err, ErrNoListener)
}
