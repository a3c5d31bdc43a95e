package presenter

import (
	"errors"
	"html"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vrsandeep/pagesum-go/internal/models"
)

var ErrNothingToCopy = errors.New("no answer to copy")

// RenderHTML escapes answer for display and turns newlines into <br>.
func RenderHTML(answer string) string {
	return strings.ReplaceAll(html.EscapeString(answer), "\n", "<br>")
}

// ViewState is a snapshot of the answer panel.
type ViewState struct {
	Answer    string              `json:"answer"`
	HTML      string              `json:"html"`
	UpdatedAt time.Time           `json:"updatedAt"`
	Progress  models.LoadProgress `json:"progress"`
	Busy      bool                `json:"busy"`
	Error     string              `json:"error,omitempty"`
}

// copyAction is the single bound copy handler.
type copyAction struct {
	text string
}

// View is the answer panel. Each update rebinds the one copy action to
// the latest answer.
type View struct {
	mu    sync.RWMutex
	state ViewState

	action    atomic.Pointer[copyAction]
	clipboard Clipboard
	now       func() time.Time
}

func NewView(cb Clipboard) *View {
	return &View{clipboard: cb, now: time.Now}
}

func (v *View) Update(answer string) {
	v.mu.Lock()
	v.state.Answer = answer
	v.state.HTML = RenderHTML(answer)
	v.state.UpdatedAt = v.now()
	v.state.Error = ""
	v.mu.Unlock()
	v.action.Store(&copyAction{text: answer})
}

func (v *View) Done(summary string) {
	v.Update(summary)
}

// ShowError displays msg while keeping any partial answer.
func (v *View) ShowError(msg string) {
	v.mu.Lock()
	v.state.Error = msg
	v.state.UpdatedAt = v.now()
	v.mu.Unlock()
}

func (v *View) SetBusy(busy bool) {
	v.mu.Lock()
	v.state.Busy = busy
	v.mu.Unlock()
}

func (v *View) SetProgress(p models.LoadProgress) {
	v.mu.Lock()
	v.state.Progress = p
	v.mu.Unlock()
}

func (v *View) Snapshot() ViewState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Copy writes the currently bound answer to the clipboard.
func (v *View) Copy() error {
	a := v.action.Load()
	if a == nil || a.text == "" {
		return ErrNothingToCopy
	}
	if v.clipboard == nil {
		return errors.New("no clipboard available")
	}
	return v.clipboard.WriteAll(a.text)
}
