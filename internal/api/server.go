// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/pagesum-go/internal/assets"
	"github.com/vrsandeep/pagesum-go/internal/core"
	"github.com/vrsandeep/pagesum-go/internal/store"
)

// Server holds the dependencies for our API.
type Server struct {
	app   *core.App
	store *store.Store
	log   zerolog.Logger
}

// Store returns the store instance.
func (s *Server) Store() *store.Store {
	return s.store
}

// NewServer creates a new Server instance.
func NewServer(app *core.App) *Server {
	return &Server{
		app:   app,
		store: app.Store(),
		log:   log.With().Str("component", "api").Logger(),
	}
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.log))
	r.Use(middleware.Recoverer)

	// The websocket outlives any request timeout.
	r.Get("/ws", s.app.WsHub().ServeWs)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/api", func(r chi.Router) {
			r.Get("/health", s.handleHealth)
			r.Get("/version", s.handleGetVersion)
			r.Get("/status", s.handleGetStatus)
			r.Post("/summarize", s.handleSummarize)
			r.Get("/answer", s.handleGetAnswer)
			r.Post("/answer/copy", s.handleCopyAnswer)
			r.Get("/history", s.handleRecentHistory)

			r.Get("/jobs/status", s.handleGetJobsStatus)
			r.Post("/jobs/run", s.handleRunJob)
		})

		// History backend used by the summary sink.
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/add", s.handleAddHistory)
		r.Post("/view", s.handleViewHistory)
	})

	// Frontend Routes
	webSubFS, err := fs.Sub(assets.WebFS, "web")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create web sub-filesystem")
	}

	// This handler serves a specific HTML file from the embedded FS.
	serveHTML := func(fileName string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			file, err := webSubFS.Open(fileName)
			if err != nil {
				http.NotFound(w, r)
				s.log.Error().Err(err).Str("file", fileName).Msg("Error serving embedded file")
				return
			}
			defer file.Close()
			http.ServeContent(w, r, fileName, time.Time{}, file.(io.ReadSeeker))
		}
	}

	r.Get("/", serveHTML("index.html"))
	r.Get("/popup", serveHTML("index.html"))

	return r
}
