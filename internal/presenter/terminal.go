package presenter

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/vrsandeep/pagesum-go/internal/models"
)

var (
	answerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))
	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))
)

// Terminal streams the answer to a writer as it grows.
type Terminal struct {
	out       io.Writer
	clipboard Clipboard
	autoCopy  bool

	mu      sync.Mutex
	printed int
	last    string
}

// NewTerminal writes to out. With autoCopy the final summary is also
// placed on the clipboard.
func NewTerminal(out io.Writer, cb Clipboard, autoCopy bool) *Terminal {
	return &Terminal{out: out, clipboard: cb, autoCopy: autoCopy}
}

// Update prints only what was appended since the previous update.
func (t *Terminal) Update(answer string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.printed > len(answer) || !strings.HasPrefix(answer, t.last[:t.printed]) {
		fmt.Fprintln(t.out)
		t.printed = 0
	}
	fmt.Fprint(t.out, answerStyle.Render(answer[t.printed:]))
	t.printed = len(answer)
	t.last = answer
}

func (t *Terminal) Done(summary string) {
	t.Update(summary)
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, doneStyle.Render("✓ Summary complete"))
	if t.autoCopy && t.clipboard != nil {
		if err := t.clipboard.WriteAll(summary); err != nil {
			fmt.Fprintln(t.out, errorStyle.Render("Could not copy to clipboard: "+err.Error()))
		} else {
			fmt.Fprintln(t.out, progressStyle.Render("Copied to clipboard"))
		}
	}
}

func (t *Terminal) ShowError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.printed > 0 {
		fmt.Fprintln(t.out)
	}
	fmt.Fprintln(t.out, errorStyle.Render("✗ "+msg))
}

func (t *Terminal) SetBusy(bool) {}

func (t *Terminal) SetProgress(p models.LoadProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	line := fmt.Sprintf("[%3.0f%%] %s", p.Fraction*100, p.Text)
	fmt.Fprintln(t.out, progressStyle.Render(line))
}
