// Package sink forwards finished summaries to a history backend.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/pagesum-go/internal/config"
)

// Record is the body of a POST /add request.
type Record struct {
	Token   string `json:"token"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Summary string `json:"summary"`
}

// Sink accepts records without reporting back. Failures are logged only.
type Sink interface {
	Submit(r Record)
}

// Nop drops every record.
type Nop struct{}

func (Nop) Submit(Record) {}

// HTTP posts each record to the backend in its own goroutine.
type HTTP struct {
	url     string
	token   string
	timeout time.Duration
	client  *http.Client
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// New returns an HTTP sink when enabled, Nop otherwise.
func New(cfg config.SinkConfig) Sink {
	if !cfg.Enabled || cfg.URL == "" {
		return Nop{}
	}
	return NewHTTP(cfg)
}

func NewHTTP(cfg config.SinkConfig) *HTTP {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTP{
		url:     cfg.URL,
		token:   cfg.Token,
		timeout: timeout,
		client:  &http.Client{},
		log:     log.With().Str("component", "sink").Logger(),
	}
}

// Submit fills in the configured token when the record has none and sends
// it in the background.
func (s *HTTP) Submit(r Record) {
	if r.Token == "" {
		r.Token = s.token
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.Post(ctx, r); err != nil {
			s.log.Warn().Err(err).Str("url", r.URL).Msg("Failed to store summary in backend")
			return
		}
		s.log.Debug().Str("url", r.URL).Msg("Summary stored in backend")
	}()
}

// Wait blocks until every submitted record has been sent or has failed.
func (s *HTTP) Wait() { s.wg.Wait() }

// Post sends one record synchronously.
func (s *HTTP) Post(ctx context.Context, r Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("backend returned %s: %s", resp.Status, bytes.TrimSpace(body))
	}
	return nil
}
