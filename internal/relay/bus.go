package relay

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Well-known endpoint names.
const (
	PageContext       = "page"
	BackgroundContext = "background"
	PopupContext      = "popup"
)

// Handler receives a message sent from another endpoint. Returning true
// keeps the request open so the responder may be called later.
type Handler func(msg Message, from string, r Responder) bool

// Responder answers a request. Only the first reply across all receivers
// is delivered; later ones are ignored.
type Responder interface {
	Reply(Reply)
}

// Bus connects named endpoints. Every endpoint handles its inbox on a
// single goroutine.
type Bus struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	log       zerolog.Logger
}

func NewBus() *Bus {
	return &Bus{
		endpoints: make(map[string]*Endpoint),
		log:       log.With().Str("component", "relay").Logger(),
	}
}

// Open creates and starts a named endpoint. It panics if the name is
// already open.
func (b *Bus) Open(name string) *Endpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.endpoints[name]; dup {
		panic(fmt.Sprintf("relay: endpoint %q already open", name))
	}
	e := &Endpoint{
		name:      name,
		bus:       b,
		handlers:  make(map[uint64]Handler),
		onConnect: make(map[string]func(*Port)),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		log:       b.log.With().Str("endpoint", name).Logger(),
	}
	b.endpoints[name] = e
	go e.loop()
	return e
}

// Endpoint returns an open endpoint by name.
func (b *Bus) Endpoint(name string) (*Endpoint, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.endpoints[name]
	return e, ok
}

// Names lists the open endpoints.
func (b *Bus) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.endpoints))
	for n := range b.endpoints {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close shuts every endpoint down.
func (b *Bus) Close() {
	b.mu.RLock()
	eps := make([]*Endpoint, 0, len(b.endpoints))
	for _, e := range b.endpoints {
		eps = append(eps, e)
	}
	b.mu.RUnlock()
	for _, e := range eps {
		e.Close()
	}
}

func (b *Bus) remove(e *Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.endpoints[e.name] == e {
		delete(b.endpoints, e.name)
	}
}

// receivers returns every endpoint except from that has at least one
// message handler.
func (b *Bus) receivers(from string) []*Endpoint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*Endpoint
	for name, e := range b.endpoints {
		if name != from && e.listening() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

type task struct {
	run  func()
	drop func()
}

// Endpoint is one execution context attached to a Bus.
type Endpoint struct {
	name string
	bus  *Bus
	log  zerolog.Logger

	mu        sync.Mutex
	handlers  map[uint64]Handler
	nextID    uint64
	onConnect map[string]func(*Port)
	queue     []task
	closed    bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (e *Endpoint) Name() string { return e.name }

// Done is closed once the endpoint has shut down.
func (e *Endpoint) Done() <-chan struct{} { return e.done }

// OnMessage registers a handler and returns a function removing it.
func (e *Endpoint) OnMessage(h Handler) (remove func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.handlers[id] = h
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.handlers, id)
		e.mu.Unlock()
	}
}

func (e *Endpoint) listening() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed && len(e.handlers) > 0
}

func (e *Endpoint) snapshot() []Handler {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]uint64, 0, len(e.handlers))
	for id := range e.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Handler, len(ids))
	for i, id := range ids {
		out[i] = e.handlers[id]
	}
	return out
}

// Send delivers msg to every other listening endpoint without waiting
// for a reply.
func (e *Endpoint) Send(msg Message) error {
	if e.isClosed() {
		return ErrClosed
	}
	targets := e.bus.receivers(e.name)
	if len(targets) == 0 {
		e.log.Debug().Str("type", string(msg.Kind())).Msg("No listener for message")
		return ErrNoListener
	}
	for _, t := range targets {
		t.deliver(msg, e.name, nil)
	}
	return nil
}

// Request delivers msg like Send and waits for the first reply.
func (e *Endpoint) Request(ctx context.Context, msg Message) (Reply, error) {
	if e.isClosed() {
		return Reply{}, ErrClosed
	}
	targets := e.bus.receivers(e.name)
	if len(targets) == 0 {
		return Reply{}, ErrNoListener
	}
	p := newPending(len(targets))
	for _, t := range targets {
		t.deliver(msg, e.name, p)
	}
	select {
	case <-p.done:
		if p.replied {
			return p.reply, nil
		}
		return Reply{}, ErrNoResponse
	case <-ctx.Done():
		p.abandon()
		return Reply{}, fmt.Errorf("%w: %v", ErrNoResponse, ctx.Err())
	}
}

func (e *Endpoint) deliver(msg Message, from string, p *pending) {
	e.enqueue(task{
		run: func() {
			keepOpen := false
			r := responder{p: p}
			for _, h := range e.snapshot() {
				if e.safeCall(msg, from, h, r) {
					keepOpen = true
				}
			}
			if !keepOpen && p != nil {
				p.release()
			}
		},
		drop: func() {
			if p != nil {
				p.release()
			}
		},
	})
}

func (e *Endpoint) safeCall(msg Message, from string, h Handler, r Responder) (keep bool) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error().Interface("panic", rec).Str("type", string(msg.Kind())).Msg("Message handler panicked")
			keep = false
		}
	}()
	return h(msg, from, r)
}

func (e *Endpoint) enqueue(t task) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		if t.drop != nil {
			t.drop()
		}
		return false
	}
	e.queue = append(e.queue, t)
	e.mu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

func (e *Endpoint) loop() {
	for {
		select {
		case <-e.done:
			return
		case <-e.wake:
		}
		for {
			e.mu.Lock()
			if e.closed || len(e.queue) == 0 {
				e.mu.Unlock()
				break
			}
			t := e.queue[0]
			e.queue[0] = task{}
			e.queue = e.queue[1:]
			e.mu.Unlock()
			t.run()
		}
	}
}

func (e *Endpoint) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Close stops the endpoint. Queued messages are dropped; pending requests
// waiting on this endpoint see ErrNoResponse.
func (e *Endpoint) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		dropped := e.queue
		e.queue = nil
		e.handlers = make(map[uint64]Handler)
		e.mu.Unlock()
		close(e.done)
		e.bus.remove(e)
		for _, t := range dropped {
			if t.drop != nil {
				t.drop()
			}
		}
		e.log.Debug().Int("dropped", len(dropped)).Msg("Endpoint closed")
	})
}

// pending tracks one in-flight request across its receivers.
type pending struct {
	mu      sync.Mutex
	open    int
	replied bool
	settled bool
	reply   Reply
	done    chan struct{}
}

func newPending(receivers int) *pending {
	return &pending{open: receivers, done: make(chan struct{})}
}

func (p *pending) respond(r Reply) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settled {
		return
	}
	p.replied = true
	p.settled = true
	p.reply = r
	close(p.done)
}

func (p *pending) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settled {
		return
	}
	p.open--
	if p.open <= 0 {
		p.settled = true
		close(p.done)
	}
}

func (p *pending) abandon() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.settled {
		p.settled = true
		close(p.done)
	}
}

type responder struct{ p *pending }

func (r responder) Reply(reply Reply) {
	if r.p != nil {
		r.p.respond(reply)
	}
}
