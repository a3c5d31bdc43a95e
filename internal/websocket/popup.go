package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/vrsandeep/pagesum-go/internal/relay"
)

// requestTimeout bounds how long a popup request waits for a reply.
const requestTimeout = 30 * time.Second

// inFrame is what browser popups send.
type inFrame struct {
	ID      string          `json:"id,omitempty"`
	Message json.RawMessage `json:"message"`
}

// outFrame is either a pushed message or the reply to a request.
type outFrame struct {
	Message json.RawMessage `json:"message,omitempty"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Reply   *relay.Reply    `json:"reply,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Popup makes the connected browser views act as the popup context. The
// endpoint only listens while at least one view is connected, so other
// contexts see ErrNoListener when no popup is open.
type Popup struct {
	hub *Hub
	ep  *relay.Endpoint
	ctx context.Context

	mu     sync.Mutex
	remove func()
}

// NewPopup wires hub to ep. Call before hub.Run.
func NewPopup(ctx context.Context, hub *Hub, ep *relay.Endpoint) *Popup {
	p := &Popup{hub: hub, ep: ep, ctx: ctx}
	hub.onFrame = p.handleFrame
	hub.onCount = p.setListening
	return p
}

// Listening reports whether the popup endpoint currently has a handler.
func (p *Popup) Listening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remove != nil
}

func (p *Popup) setListening(clients int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case clients > 0 && p.remove == nil:
		p.remove = p.ep.OnMessage(p.forward)
	case clients == 0 && p.remove != nil:
		p.remove()
		p.remove = nil
	}
}

// forward pushes every relay message to all views. Requests are not
// answered here; replies come from views through handleFrame.
func (p *Popup) forward(msg relay.Message, _ string, _ relay.Responder) bool {
	data, err := relay.Encode(msg)
	if err != nil {
		p.hub.log.Error().Err(err).Str("type", string(msg.Kind())).Msg("Failed to encode message")
		return false
	}
	p.hub.BroadcastJSON(outFrame{Message: data})
	return false
}

func (p *Popup) handleFrame(c *Client, data []byte) {
	var frame inFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		p.replyError(c, "", err)
		return
	}
	msg, err := relay.Decode(frame.Message)
	if err != nil {
		p.replyError(c, frame.ID, err)
		return
	}

	if frame.ID == "" {
		if err := p.ep.Send(msg); err != nil {
			p.hub.log.Debug().Err(err).Str("type", string(msg.Kind())).Msg("Popup message not delivered")
		}
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(p.ctx, requestTimeout)
		defer cancel()
		reply, err := p.ep.Request(ctx, msg)
		if err != nil {
			p.replyError(c, frame.ID, err)
			return
		}
		p.send(c, outFrame{ReplyTo: frame.ID, Reply: &reply})
	}()
}

func (p *Popup) replyError(c *Client, id string, err error) {
	if errors.Is(err, relay.ErrNoListener) {
		p.hub.log.Debug().Err(err).Msg("Popup request had no listener")
	}
	p.send(c, outFrame{ReplyTo: id, Error: err.Error()})
}

func (p *Popup) send(c *Client, f outFrame) {
	data, err := json.Marshal(f)
	if err != nil {
		p.hub.log.Error().Err(err).Msg("Failed to marshal frame")
		return
	}
	if !c.Send(data) {
		p.hub.log.Debug().Str("client", c.ID()).Msg("Dropped frame for slow or closed client")
	}
}
