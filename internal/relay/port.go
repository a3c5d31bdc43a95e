package relay

import (
	"fmt"
	"sync"
)

// Port is one side of a long-lived connection between two endpoints.
// Messages posted on one side are handled on the other side's goroutine,
// in order.
type Port struct {
	name  string
	owner *Endpoint
	peer  *Port

	mu           sync.Mutex
	handlers     []func(Message)
	onDisconnect []func()
	closed       bool
}

func (p *Port) Name() string { return p.name }

// Remote is the name of the endpoint at the other end.
func (p *Port) Remote() string { return p.peer.owner.name }

// OnMessage registers a handler for messages arriving on this side.
func (p *Port) OnMessage(fn func(Message)) {
	p.mu.Lock()
	p.handlers = append(p.handlers, fn)
	p.mu.Unlock()
}

// OnDisconnect registers fn to run when the other side disconnects.
func (p *Port) OnDisconnect(fn func()) {
	p.mu.Lock()
	p.onDisconnect = append(p.onDisconnect, fn)
	p.mu.Unlock()
}

// Post sends msg to the other side.
func (p *Port) Post(msg Message) error {
	if p.isClosed() {
		return ErrPortClosed
	}
	peer := p.peer
	ok := peer.owner.enqueue(task{run: func() {
		if peer.isClosed() {
			return
		}
		peer.mu.Lock()
		hs := append([]func(Message){}, peer.handlers...)
		peer.mu.Unlock()
		for _, h := range hs {
			h(msg)
		}
	}})
	if !ok {
		return ErrPortClosed
	}
	return nil
}

// Disconnect closes both sides; the other side's OnDisconnect handlers run.
func (p *Port) Disconnect() {
	if !p.markClosed() {
		return
	}
	peer := p.peer
	peer.owner.enqueue(task{run: func() {
		if !peer.markClosed() {
			return
		}
		peer.mu.Lock()
		fns := append([]func(){}, peer.onDisconnect...)
		peer.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}})
}

func (p *Port) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Port) markClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.closed = true
	return true
}

// OnConnect registers the handler for incoming connections with the given
// port name. A later registration replaces an earlier one.
func (e *Endpoint) OnConnect(name string, fn func(*Port)) {
	e.mu.Lock()
	e.onConnect[name] = fn
	e.mu.Unlock()
}

// Connect opens a port to the target endpoint.
func (e *Endpoint) Connect(target, name string) (*Port, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}
	t, ok := e.bus.Endpoint(target)
	if !ok {
		return nil, fmt.Errorf("connect %s/%s: %w", target, name, ErrNoListener)
	}
	t.mu.Lock()
	fn := t.onConnect[name]
	t.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("connect %s/%s: %w", target, name, ErrNoListener)
	}

	local := &Port{name: name, owner: e}
	remote := &Port{name: name, owner: t}
	local.peer, remote.peer = remote, local

	if !t.enqueue(task{run: func() { fn(remote) }}) {
		return nil, fmt.Errorf("connect %s/%s: %w", target, name, ErrClosed)
	}
	return local, nil
}

// PortHandler serves every connection made to one port name.
type PortHandler interface {
	SetPort(p *Port)
	Handle(msg Message)
}

// PortBinder keeps a single PortHandler alive across reconnects. The first
// connection creates it; later ones only swap its port.
type PortBinder struct {
	mu      sync.Mutex
	handler PortHandler
	create  func(*Port) PortHandler
}

func NewPortBinder(create func(*Port) PortHandler) *PortBinder {
	return &PortBinder{create: create}
}

// Bind is meant to be passed to Endpoint.OnConnect.
func (b *PortBinder) Bind(p *Port) {
	b.mu.Lock()
	if b.handler == nil {
		b.handler = b.create(p)
	} else {
		b.handler.SetPort(p)
	}
	b.mu.Unlock()
	p.OnMessage(func(msg Message) {
		if h := b.Handler(); h != nil {
			h.Handle(msg)
		}
	})
}

// Handler returns the bound handler, or nil before the first connection.
func (b *PortBinder) Handler() PortHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handler
}
