// Package background is the long-lived context: it owns the engine and the
// summarization controller and answers requests from the page and popup
// contexts.
package background

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/pagesum-go/internal/engine"
	"github.com/vrsandeep/pagesum-go/internal/models"
	"github.com/vrsandeep/pagesum-go/internal/presenter"
	"github.com/vrsandeep/pagesum-go/internal/relay"
	"github.com/vrsandeep/pagesum-go/internal/sink"
	"github.com/vrsandeep/pagesum-go/internal/summarize"
)

// EnginePort is the port name streaming clients connect to.
const EnginePort = "pagesum_engine"

// pageTimeout bounds the wait for the page context to accept a request.
const pageTimeout = 5 * time.Second

const PageUnreachableMessage = "Error: Could not reach the page. Please reload it and try again."

// HistoryLister lists recently summarized pages.
type HistoryLister interface {
	RecentHistory(limit int) ([]models.HistoryEntry, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Engine      engine.Adapter
	Options     summarize.Options
	ModelID     string
	Recorder    summarize.Recorder
	Sink        sink.Sink
	History     HistoryLister
	RecentLimit int
	// Clipboard receives the answer panel's copy action.
	Clipboard   presenter.Clipboard
}

// Service binds the background endpoint.
type Service struct {
	ep      *relay.Endpoint
	deps    Deps
	view    presenter.Multi
	panel   *presenter.View
	ctrl    *summarize.Controller
	binder  *relay.PortBinder
	log     zerolog.Logger
	ctx     context.Context
	removes []func()
}

func New(ep *relay.Endpoint, deps Deps) *Service {
	if deps.Sink == nil {
		deps.Sink = sink.Nop{}
	}
	s := &Service{
		ep:    ep,
		deps:  deps,
		panel: presenter.NewView(deps.Clipboard),
		log:   log.With().Str("component", "background").Logger(),
		ctx:   context.Background(),
	}
	s.view = presenter.Multi{presenter.NewRelayPresenter(ep.Send), s.panel}
	s.ctrl = s.newController(s.view)
	s.binder = relay.NewPortBinder(func(p *relay.Port) relay.PortHandler {
		return newEngineSession(s, p)
	})
	return s
}

func (s *Service) newController(view presenter.Presenter) *summarize.Controller {
	opts := []summarize.Option{summarize.WithSink(s.deps.Sink)}
	if s.deps.Recorder != nil {
		opts = append(opts, summarize.WithRecorder(s.deps.Recorder))
	}
	return summarize.New(s.deps.Engine, view, s.deps.Options, opts...)
}

// Start registers the message and port handlers. Work started by messages
// runs under ctx.
func (s *Service) Start(ctx context.Context) {
	s.ctx = ctx
	s.removes = append(s.removes, s.ep.OnMessage(s.handle))
	s.ep.OnConnect(EnginePort, s.binder.Bind)
	s.log.Info().Str("endpoint", s.ep.Name()).Msg("Background service started")
}

// Stop removes the message handler.
func (s *Service) Stop() {
	for _, remove := range s.removes {
		remove()
	}
	s.removes = nil
}

// Controller is the controller serving the popup.
func (s *Service) Controller() *summarize.Controller { return s.ctrl }

func (s *Service) Engine() engine.Adapter { return s.deps.Engine }

// controllers returns the popup controller and, once a client has
// connected, the engine port's.
func (s *Service) controllers() []*summarize.Controller {
	ctrls := []*summarize.Controller{s.ctrl}
	if es, ok := s.binder.Handler().(*engineSession); ok {
		ctrls = append(ctrls, es.ctrl)
	}
	return ctrls
}

// Busy reports whether the engine is loading or any controller is
// producing an answer.
func (s *Service) Busy() bool {
	if l, ok := s.deps.Engine.(loader); ok && l.Loading() {
		return true
	}
	for _, c := range s.controllers() {
		if c.Busy() {
			return true
		}
	}
	return false
}

// LastActivity is the most recent activity of any controller.
func (s *Service) LastActivity() time.Time {
	var last time.Time
	for _, c := range s.controllers() {
		if t := c.LastActivity(); t.After(last) {
			last = t
		}
	}
	return last
}

// Panel is the answer panel fed by the popup controller.
func (s *Service) Panel() *presenter.View { return s.panel }

func (s *Service) handle(msg relay.Message, from string, r relay.Responder) bool {
	switch m := msg.(type) {
	case relay.InitLLM:
		go func() {
			if err := s.initialize(m.ModelID, s.view.SetProgress, s.publish); err != nil {
				r.Reply(relay.Reply{Status: relay.StatusError, Message: err.Error()})
				return
			}
			r.Reply(relay.Reply{Status: relay.StatusSuccess})
		}()
		return true

	case relay.SummarizeText:
		go func() {
			if err := s.ensureEngine(s.view.SetProgress, s.publish); err != nil {
				r.Reply(relay.Reply{Status: relay.StatusError, Message: err.Error()})
				return
			}
			summary, err := s.ctrl.SummarizeText(s.ctx, m.Text)
			if err != nil {
				r.Reply(relay.Reply{Status: relay.StatusError, Message: err.Error()})
				return
			}
			r.Reply(relay.Reply{Status: relay.StatusSuccess, Summary: summary})
		}()
		return true

	case relay.TerminateLLM:
		go func() {
			if err := s.Terminate(s.ctx); err != nil {
				r.Reply(relay.Reply{Status: relay.StatusError, Message: err.Error()})
				return
			}
			r.Reply(relay.Reply{Status: relay.StatusSuccess})
		}()
		return true

	case relay.GetStatus:
		r.Reply(s.Status())
		return false

	case relay.SummarizePage:
		if from == relay.PageContext {
			return false
		}
		if err := s.SummarizePage(m.URL); err != nil {
			r.Reply(relay.Reply{Status: relay.StatusError, Message: err.Error()})
			return false
		}
		r.Reply(relay.Reply{Status: relay.StatusSuccess, Message: "Summarizing"})
		return false

	case relay.ContentExtracted:
		go s.summarizeContent(m.Content())
		return false

	case relay.PageContent:
		go s.summarizeContent(pageContent(m))
		return false

	case relay.ChatQuery:
		go s.ask(m.Text)
		return false
	}
	return false
}

// SummarizePage starts a summary of url and asks the page context to
// extract it. It returns summarize.ErrBusy when a request is running.
func (s *Service) SummarizePage(url string) error {
	if err := s.ctrl.Begin(); err != nil {
		return err
	}
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, pageTimeout)
		defer cancel()
		reply, err := s.ep.Request(ctx, relay.SummarizePage{URL: url})
		if err == nil && !reply.OK() {
			err = errors.New(reply.Message)
		}
		if err != nil {
			s.log.Warn().Err(err).Str("url", url).Msg("Page context did not accept request")
			s.ctrl.Fail(PageUnreachableMessage)
		}
	}()
	return nil
}

// Terminate unloads the model and tells listeners about it.
func (s *Service) Terminate(ctx context.Context) error {
	if err := s.deps.Engine.Terminate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to terminate model")
		return err
	}
	s.publish(relay.LLMStatus{Data: relay.LLMTerminated})
	return nil
}

// Status is the GET_STATUS reply.
func (s *Service) Status() relay.Reply {
	reply := relay.Reply{Status: relay.StatusSuccess, Message: s.statusMessage()}
	if s.deps.History == nil {
		return reply
	}
	entries, err := s.deps.History.RecentHistory(s.deps.RecentLimit)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to load recent history")
		return reply
	}
	for _, e := range entries {
		reply.RecentItems = append(reply.RecentItems, models.RecentItem{URL: e.URL, Title: e.Title, Summary: e.Summary})
	}
	return reply
}

// loader is implemented by engines that can report a load in progress.
type loader interface {
	Loading() bool
}

func (s *Service) statusMessage() string {
	eng := s.deps.Engine
	l, canLoad := eng.(loader)
	switch {
	case s.ctrl.Busy():
		return "Summarizing"
	case canLoad && l.Loading():
		return "Loading model"
	case eng.Ready():
		return fmt.Sprintf("Model %s ready", eng.Model())
	default:
		return "Model not loaded"
	}
}

func (s *Service) summarizeContent(c models.ExtractedContent) {
	if err := s.ensureEngine(s.view.SetProgress, s.publish); err != nil {
		s.ctrl.Fail(summarize.ErrorMessage)
		return
	}
	if err := s.ctrl.HandleContent(s.ctx, c); err != nil {
		s.log.Debug().Err(err).Str("url", c.SourceURL).Msg("Summary not produced")
		return
	}
	s.publish(relay.UpdatePopup{})
}

func (s *Service) ask(question string) {
	if err := s.ensureEngine(s.view.SetProgress, s.publish); err != nil {
		s.view.ShowError(summarize.ErrorMessage)
		return
	}
	if err := s.ctrl.Ask(s.ctx, question); err != nil {
		if errors.Is(err, summarize.ErrBusy) {
			s.view.ShowError("A summary is already in progress.")
		}
		s.log.Debug().Err(err).Msg("Chat turn not produced")
	}
}

// ensureEngine loads the configured model when nothing is loaded yet.
func (s *Service) ensureEngine(progress engine.ProgressFunc, publish func(relay.Message)) error {
	if s.deps.Engine.Ready() {
		return nil
	}
	return s.initialize("", progress, publish)
}

func (s *Service) initialize(modelID string, progress engine.ProgressFunc, publish func(relay.Message)) error {
	if modelID == "" {
		modelID = s.deps.ModelID
	}
	publish(relay.LLMStatus{Data: relay.LLMLoading})
	if err := s.deps.Engine.Initialize(s.ctx, modelID, progress); err != nil {
		s.log.Error().Err(err).Str("model", modelID).Msg("Model initialization failed")
		publish(relay.LLMStatus{Data: relay.LLMFailed, Error: err.Error()})
		return err
	}
	publish(relay.LLMStatus{Data: relay.LLMReady})
	return nil
}

func (s *Service) publish(msg relay.Message) {
	if err := s.ep.Send(msg); err != nil && !errors.Is(err, relay.ErrNoListener) {
		s.log.Warn().Err(err).Str("type", string(msg.Kind())).Msg("Failed to publish")
	}
}

func pageContent(m relay.PageContent) models.ExtractedContent {
	if m.Content == "" {
		return models.ExtractedContent{Kind: models.KindNone}
	}
	body := m.Content
	return models.ExtractedContent{Body: &body, Kind: models.KindArticle}
}
