package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsandeep/pagesum-go/internal/relay"
)

type frame struct {
	Message map[string]any `json:"message"`
	ReplyTo string         `json:"replyTo"`
	Reply   *relay.Reply   `json:"reply"`
	Error   string         `json:"error"`
}

func setupPopup(t *testing.T) (*relay.Endpoint, *Popup, *httptest.Server) {
	t.Helper()
	bus := relay.NewBus()
	t.Cleanup(bus.Close)
	bg := bus.Open(relay.BackgroundContext)

	hub := NewHub()
	popup := NewPopup(context.Background(), hub, bus.Open(relay.PopupContext))
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	t.Cleanup(srv.Close)
	return bg, popup, srv
}

func dial(t *testing.T, srv *httptest.Server) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *gws.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestPopupListensOnlyWhileConnected(t *testing.T) {
	bg, popup, srv := setupPopup(t)

	assert.ErrorIs(t, bg.Send(relay.UpdatePopup{}), relay.ErrNoListener)

	conn := dial(t, srv)
	require.Eventually(t, popup.Listening, time.Second, 5*time.Millisecond)

	require.NoError(t, bg.Send(relay.SummarizeChunk{Answer: "Hello", UpdatedAt: time.Now()}))
	f := readFrame(t, conn)
	assert.Equal(t, "SUMMARIZE_CHUNK", f.Message["type"])
	assert.Equal(t, "Hello", f.Message["answer"])

	conn.Close()
	require.Eventually(t, func() bool { return !popup.Listening() }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, bg.Send(relay.UpdatePopup{}), relay.ErrNoListener)
}

func TestPopupRequestReply(t *testing.T) {
	bg, popup, srv := setupPopup(t)
	bg.OnMessage(func(msg relay.Message, from string, r relay.Responder) bool {
		if _, ok := msg.(relay.GetStatus); ok && from == relay.PopupContext {
			r.Reply(relay.Reply{Status: relay.StatusSuccess, Message: "Model ready"})
		}
		return false
	})

	conn := dial(t, srv)
	require.Eventually(t, popup.Listening, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte(`{"id":"req-1","message":{"type":"GET_STATUS"}}`)))
	f := readFrame(t, conn)
	assert.Equal(t, "req-1", f.ReplyTo)
	require.NotNil(t, f.Reply)
	assert.Equal(t, "Model ready", f.Reply.Message)
}

func TestPopupRejectsBadFrames(t *testing.T) {
	_, popup, srv := setupPopup(t)
	conn := dial(t, srv)
	require.Eventually(t, popup.Listening, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte(`{"id":"x","message":{"type":"NOPE"}}`)))
	f := readFrame(t, conn)
	assert.Equal(t, "x", f.ReplyTo)
	assert.Contains(t, f.Error, relay.ErrUnknownKind.Error())

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte(`not json`)))
	f = readFrame(t, conn)
	assert.NotEmpty(t, f.Error)
}

func TestPopupSendWithoutID(t *testing.T) {
	bg, popup, srv := setupPopup(t)
	got := make(chan relay.Message, 1)
	bg.OnMessage(func(msg relay.Message, _ string, _ relay.Responder) bool {
		got <- msg
		return false
	})
	conn := dial(t, srv)
	require.Eventually(t, popup.Listening, time.Second, 5*time.Millisecond)

	payload, _ := json.Marshal(map[string]any{"message": map[string]string{"type": "CHAT_QUERY", "text": "why?"}})
	require.NoError(t, conn.WriteMessage(gws.TextMessage, payload))
	select {
	case msg := <-got:
		assert.Equal(t, relay.ChatQuery{Text: "why?"}, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("background did not receive CHAT_QUERY")
	}
}
