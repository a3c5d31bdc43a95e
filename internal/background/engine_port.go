package background

import (
	"sync"

	"github.com/vrsandeep/pagesum-go/internal/models"
	"github.com/vrsandeep/pagesum-go/internal/presenter"
	"github.com/vrsandeep/pagesum-go/internal/relay"
	"github.com/vrsandeep/pagesum-go/internal/summarize"
)

// engineSession serves the engine port. One session outlives reconnects:
// a new connection only swaps the port, the conversation stays.
type engineSession struct {
	svc  *Service
	ctrl *summarize.Controller

	mu   sync.Mutex
	port *relay.Port
}

func newEngineSession(svc *Service, p *relay.Port) *engineSession {
	es := &engineSession{svc: svc, port: p}
	es.ctrl = svc.newController(presenter.NewRelayPresenter(es.post))
	svc.log.Debug().Str("remote", p.Remote()).Msg("Engine port connected")
	return es
}

func (es *engineSession) SetPort(p *relay.Port) {
	es.mu.Lock()
	es.port = p
	es.mu.Unlock()
	es.svc.log.Debug().Str("remote", p.Remote()).Msg("Engine port rebound")
}

func (es *engineSession) post(msg relay.Message) error {
	es.mu.Lock()
	p := es.port
	es.mu.Unlock()
	return p.Post(msg)
}

func (es *engineSession) publish(msg relay.Message) {
	_ = es.post(msg)
}

func (es *engineSession) progress(p models.LoadProgress) {
	es.publish(relay.LLMProgress{Data: p})
}

func (es *engineSession) Handle(msg relay.Message) {
	switch m := msg.(type) {
	case relay.InitLLM:
		go es.svc.initialize(m.ModelID, es.progress, es.publish)
	case relay.TerminateLLM:
		go func() {
			if err := es.svc.deps.Engine.Terminate(es.svc.ctx); err != nil {
				es.publish(relay.LLMStatus{Data: relay.LLMFailed, Error: err.Error()})
				return
			}
			es.publish(relay.LLMStatus{Data: relay.LLMTerminated})
		}()
	case relay.ContentExtracted:
		go es.summarize(m.Content())
	case relay.PageContent:
		go es.summarize(pageContent(m))
	case relay.SummarizeText:
		body := m.Text
		go es.summarize(models.ExtractedContent{Body: &body, Kind: models.KindArticle})
	case relay.ChatQuery:
		go es.ask(m.Text)
	default:
		es.svc.log.Debug().Str("type", string(msg.Kind())).Msg("Ignoring message on engine port")
	}
}

func (es *engineSession) summarize(c models.ExtractedContent) {
	if err := es.svc.ensureEngine(es.progress, es.publish); err != nil {
		es.publish(relay.SummarizeError{Message: summarize.ErrorMessage})
		return
	}
	if err := es.ctrl.HandleContent(es.svc.ctx, c); err != nil {
		es.svc.log.Debug().Err(err).Msg("Port summary not produced")
	}
}

func (es *engineSession) ask(question string) {
	if err := es.svc.ensureEngine(es.progress, es.publish); err != nil {
		es.publish(relay.SummarizeError{Message: summarize.ErrorMessage})
		return
	}
	if err := es.ctrl.Ask(es.svc.ctx, question); err != nil {
		es.svc.log.Debug().Err(err).Msg("Port chat turn not produced")
	}
}
