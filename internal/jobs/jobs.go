package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
)

const (
	EngineIdleUnloadJob = "engine-idle-unload"
	HistoryPruneJob     = "history-prune"
)

// idleCheckInterval is how often the idle unload job runs.
const idleCheckInterval = time.Minute

// RegisterAll registers the built-in jobs with jm.
func RegisterAll(jm *JobManager) {
	jm.Register(EngineIdleUnloadJob, "Unload idle model", RunEngineIdleUnload)
	jm.Register(HistoryPruneJob, "Prune summary history", RunPruneHistory)
}

// StartJobs starts the background job scheduler. The caller stops it.
func StartJobs(app JobContext) *gocron.Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	s.WaitForScheduleAll()

	if app.Config().Model.IdleTimeout > 0 {
		schedule(s, app, EngineIdleUnloadJob, idleCheckInterval)
	} else {
		log.Info().Msg("Model idle timeout is 0, idle unload is disabled.")
	}
	if app.Config().History.Keep > 0 {
		schedule(s, app, HistoryPruneJob, time.Hour)
	}

	log.Info().Msg("Starting background job scheduler...")
	s.StartAsync()
	return s
}

func schedule(s *gocron.Scheduler, app JobContext, id string, every time.Duration) {
	log.Info().Str("job", id).Dur("every", every).Msg("Scheduling job")
	_, err := s.Every(every).Do(func() {
		// Submit through the manager so scheduled and manual runs never overlap.
		if err := app.JobManager().RunJob(id, app); err != nil {
			log.Debug().Err(err).Str("job", id).Msg("Scheduled job could not start")
		}
	})
	if err != nil {
		log.Error().Err(err).Str("job", id).Msg("Error scheduling job")
	}
}

// RunEngineIdleUnload terminates the model when nothing has used it for
// model.idle_timeout.
func RunEngineIdleUnload(app JobContext) error {
	timeout := app.Config().Model.IdleTimeout
	svc := app.Background()
	switch {
	case timeout <= 0, !svc.Engine().Ready():
		report(app, EngineIdleUnloadJob, "Model not loaded.")
		return nil
	case svc.Busy():
		report(app, EngineIdleUnloadJob, "Model in use.")
		return nil
	}
	idle := time.Since(svc.LastActivity())
	if idle < timeout {
		report(app, EngineIdleUnloadJob, fmt.Sprintf("Model idle for %s.", idle.Round(time.Second)))
		return nil
	}
	if err := svc.Terminate(context.Background()); err != nil {
		return fmt.Errorf("failed to unload model: %w", err)
	}
	report(app, EngineIdleUnloadJob, fmt.Sprintf("Unloaded model after %s idle.", idle.Round(time.Second)))
	return nil
}

// RunPruneHistory keeps only the newest history.keep entries.
func RunPruneHistory(app JobContext) error {
	removed, err := app.Store().PruneHistory(app.Config().History.Keep)
	if err != nil {
		return err
	}
	report(app, HistoryPruneJob, fmt.Sprintf("Removed %d old entries.", removed))
	return nil
}

func report(app JobContext, id, msg string) {
	if jm := app.JobManager(); jm != nil {
		jm.Report(id, msg)
	}
}
