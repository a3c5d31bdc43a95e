package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/pagesum-go/internal/api"
	"github.com/vrsandeep/pagesum-go/internal/core"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("pagesum daemon stopped")
	}
}

// run returns only after the app is closed, so the database and the
// model are released on every exit path.
func run() error {
	// Initialize the core application components
	app, err := core.New()
	if err != nil {
		return fmt.Errorf("fatal error during application setup: %w", err)
	}
	defer app.Close()
	app.Version = version

	if err := app.Start(); err != nil {
		return fmt.Errorf("could not start background components: %w", err)
	}

	// Setup the API server
	server := api.NewServer(app)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.Config().Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- Graceful Shutdown ---
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Str("version", version).Msg("Starting web server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("could not start server: %w", err)
	case <-quit:
	}
	log.Info().Msg("Shutting down server...")

	// Give existing connections a moment to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting.")
	return nil
}
