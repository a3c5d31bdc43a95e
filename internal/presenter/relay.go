package presenter

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/pagesum-go/internal/models"
	"github.com/vrsandeep/pagesum-go/internal/relay"
)

// SendFunc delivers a message; both Endpoint.Send and Port.Post fit.
type SendFunc func(relay.Message) error

// RelayPresenter publishes state changes as relay messages. Popups come
// and go, so a missing listener is not an error.
type RelayPresenter struct {
	send SendFunc
	now  func() time.Time
	log  zerolog.Logger
}

func NewRelayPresenter(send SendFunc) *RelayPresenter {
	return &RelayPresenter{
		send: send,
		now:  time.Now,
		log:  log.With().Str("component", "presenter").Logger(),
	}
}

func (r *RelayPresenter) publish(msg relay.Message) {
	if err := r.send(msg); err != nil {
		if errors.Is(err, relay.ErrNoListener) || errors.Is(err, relay.ErrPortClosed) {
			r.log.Debug().Str("type", string(msg.Kind())).Msg("Nobody listening for update")
			return
		}
		r.log.Warn().Err(err).Str("type", string(msg.Kind())).Msg("Failed to publish update")
	}
}

func (r *RelayPresenter) Update(answer string) {
	r.publish(relay.SummarizeChunk{Answer: answer, UpdatedAt: r.now()})
}

func (r *RelayPresenter) Done(summary string) {
	r.publish(relay.SummarizeDone{Summary: summary})
}

func (r *RelayPresenter) ShowError(msg string) {
	r.publish(relay.SummarizeError{Message: msg})
}

// SetBusy has no wire message; views derive it from the others.
func (r *RelayPresenter) SetBusy(bool) {}

func (r *RelayPresenter) SetProgress(p models.LoadProgress) {
	r.publish(relay.LLMProgress{Data: p})
}
