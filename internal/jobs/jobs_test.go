package jobs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsandeep/pagesum-go/internal/background"
	"github.com/vrsandeep/pagesum-go/internal/engine/enginetest"
	"github.com/vrsandeep/pagesum-go/internal/jobs"
	"github.com/vrsandeep/pagesum-go/internal/relay"
)

func TestRunEngineIdleUnload(t *testing.T) {
	eng := enginetest.NewReady("x")
	app := newFakeContext(t, eng)
	jobs.RegisterAll(app.jobMgr)

	app.cfg.Model.IdleTimeout = time.Hour
	require.NoError(t, jobs.RunEngineIdleUnload(app))
	assert.True(t, eng.Ready(), "recently used model stays loaded")

	app.cfg.Model.IdleTimeout = time.Millisecond
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, jobs.RunEngineIdleUnload(app))
	assert.False(t, eng.Ready())
	assert.Equal(t, 1, eng.Terminated())

	require.NoError(t, jobs.RunEngineIdleUnload(app))
	assert.Equal(t, 1, eng.Terminated(), "nothing to unload")
}

func TestRunEngineIdleUnloadSkipsBusyController(t *testing.T) {
	eng := enginetest.NewReady("x")
	app := newFakeContext(t, eng)
	app.cfg.Model.IdleTimeout = time.Millisecond

	require.NoError(t, app.svc.Controller().Begin())
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, jobs.RunEngineIdleUnload(app))
	assert.True(t, eng.Ready())
}

func TestRunEngineIdleUnloadSkipsEnginePortStream(t *testing.T) {
	eng := enginetest.NewReady("x")
	eng.Gate = make(chan struct{})
	app := newFakeContext(t, eng)

	port, err := app.bus.Open("cli").Connect(relay.BackgroundContext, background.EnginePort)
	require.NoError(t, err)
	require.NoError(t, port.Post(relay.ChatQuery{Text: "still talking"}))
	require.Eventually(t, app.svc.Busy, time.Second, 5*time.Millisecond)

	app.cfg.Model.IdleTimeout = time.Millisecond
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, jobs.RunEngineIdleUnload(app))
	assert.True(t, eng.Ready(), "model stays loaded while a port client streams")

	close(eng.Gate)
	require.Eventually(t, func() bool { return !app.svc.Busy() }, time.Second, 5*time.Millisecond)
	assert.False(t, app.svc.Controller().Busy())

	app.cfg.Model.IdleTimeout = time.Hour
	require.NoError(t, jobs.RunEngineIdleUnload(app))
	assert.True(t, eng.Ready(), "port activity counts as recent use")
	assert.WithinDuration(t, time.Now(), app.svc.LastActivity(), time.Second)
}

func TestRunPruneHistory(t *testing.T) {
	app := newFakeContext(t, enginetest.New())
	jobs.RegisterAll(app.jobMgr)
	for _, u := range []string{"https://a", "https://b", "https://c"} {
		_, err := app.st.AddHistory(nil, u, "t", "body", "summary")
		require.NoError(t, err)
	}
	app.cfg.History.Keep = 1

	require.NoError(t, app.jobMgr.RunJob(jobs.HistoryPruneJob, app))
	status := waitIdle(t, app.jobMgr, jobs.HistoryPruneJob)
	assert.Equal(t, "success", status.Status)
	assert.Equal(t, "Removed 2 old entries.", status.Message)

	recent, err := app.st.RecentHistory(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "https://c", recent[0].URL)
}

func TestStartJobs(t *testing.T) {
	app := newFakeContext(t, enginetest.New())
	jobs.RegisterAll(app.jobMgr)
	s := jobs.StartJobs(app)
	defer s.Stop()
	assert.Len(t, s.Jobs(), 2)
}
