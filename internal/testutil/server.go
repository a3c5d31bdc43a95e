// Shared test server setup used by the API and CLI tests.

package testutil

import (
	"testing"

	"github.com/vrsandeep/pagesum-go/internal/api"
	"github.com/vrsandeep/pagesum-go/internal/config"
	"github.com/vrsandeep/pagesum-go/internal/core"
	"github.com/vrsandeep/pagesum-go/internal/engine"
	"github.com/vrsandeep/pagesum-go/internal/engine/enginetest"
)

// TestConfig returns the defaults with everything that touches the host
// (scripts watcher, browser, sink) turned off.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Scripts.Path = t.TempDir()
	cfg.Scripts.Watch = false
	cfg.Browser.Enabled = false
	cfg.Sink.Enabled = false
	return cfg
}

// SetupTestApp builds and starts a core.App on an in-memory database. A
// nil eng gets a ready scripted engine.
func SetupTestApp(t *testing.T, eng engine.Adapter) *core.App {
	t.Helper()
	if eng == nil {
		eng = enginetest.NewReady("summary")
	}
	app := core.Build(TestConfig(t), SetupTestDB(t), eng)
	app.Version = "test"
	if err := app.Start(); err != nil {
		t.Fatalf("Failed to start app: %v", err)
	}
	t.Cleanup(app.Close)
	return app
}

// SetupTestServer initializes a full core.App and api.Server for integration testing.
func SetupTestServer(t *testing.T, eng engine.Adapter) (*api.Server, *core.App) {
	t.Helper()
	app := SetupTestApp(t, eng)
	return api.NewServer(app), app
}
