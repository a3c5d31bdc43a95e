// Package presenter renders summarization progress to the popup views,
// the relay and the terminal.
package presenter

import (
	"github.com/atotto/clipboard"

	"github.com/vrsandeep/pagesum-go/internal/models"
)

// Presenter receives every state change of a summarization run. Update
// always carries the full answer accumulated so far.
type Presenter interface {
	Update(answer string)
	Done(summary string)
	ShowError(msg string)
	SetBusy(busy bool)
	SetProgress(p models.LoadProgress)
}

// Clipboard is where copy actions write.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard uses the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// Multi fans every call out to several presenters.
type Multi []Presenter

func (m Multi) Update(answer string) {
	for _, p := range m {
		p.Update(answer)
	}
}

func (m Multi) Done(summary string) {
	for _, p := range m {
		p.Done(summary)
	}
}

func (m Multi) ShowError(msg string) {
	for _, p := range m {
		p.ShowError(msg)
	}
}

func (m Multi) SetBusy(busy bool) {
	for _, p := range m {
		p.SetBusy(busy)
	}
}

func (m Multi) SetProgress(pr models.LoadProgress) {
	for _, p := range m {
		p.SetProgress(pr)
	}
}

// Discard ignores everything.
type Discard struct{}

func (Discard) Update(string)                   {}
func (Discard) Done(string)                     {}
func (Discard) ShowError(string)                {}
func (Discard) SetBusy(bool)                    {}
func (Discard) SetProgress(models.LoadProgress) {}
