package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/pagesum-go/internal/background"
	"github.com/vrsandeep/pagesum-go/internal/config"
	"github.com/vrsandeep/pagesum-go/internal/store"
)

// JobContext provides the dependencies a job needs to run.
// The core.App struct implements this interface.
type JobContext interface {
	Config() *config.Config
	Store() *store.Store
	Background() *background.Service
	JobManager() *JobManager
}

type jobTask func(ctx JobContext) error

type JobStatus struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"` // "idle", "running", "success", "failed"
	Message   string    `json:"message"`
	StartTime time.Time `json:"start_time,omitempty"`
	EndTime   time.Time `json:"end_time,omitempty"`
}

// JobManager runs registered jobs one at a time and tracks their status.
type JobManager struct {
	mu      sync.Mutex
	jobs    map[string]jobTask
	status  map[string]*JobStatus
	running bool
	appCtx  JobContext
	log     zerolog.Logger
}

func NewManager(appCtx JobContext) *JobManager {
	return &JobManager{
		jobs:   make(map[string]jobTask),
		status: make(map[string]*JobStatus),
		appCtx: appCtx,
		log:    log.With().Str("component", "jobs").Logger(),
	}
}

func (jm *JobManager) Register(id, name string, task jobTask) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.jobs[id] = task
	jm.status[id] = &JobStatus{ID: id, Name: name, Status: "idle"}
}

// RunJob starts the job in the background. Only one job runs at a time.
func (jm *JobManager) RunJob(id string, ctx JobContext) error {
	jm.mu.Lock()
	if jm.running {
		jm.mu.Unlock()
		return fmt.Errorf("a job is already running")
	}
	task, ok := jm.jobs[id]
	if !ok {
		jm.mu.Unlock()
		return fmt.Errorf("job '%s' not found", id)
	}

	jm.running = true
	status := jm.status[id]
	status.Status = "running"
	status.StartTime = time.Now()
	status.EndTime = time.Time{}
	status.Message = "Job started..."
	jm.mu.Unlock()

	jm.log.Info().Str("job", id).Msg("Starting job")
	go func() {
		var err error
		defer func() {
			r := recover()
			jm.mu.Lock()
			status.EndTime = time.Now()
			switch {
			case r != nil:
				jm.log.Error().Str("job", id).Interface("panic", r).Msg("Job panicked")
				status.Status = "failed"
				status.Message = fmt.Sprintf("Job panicked: %v", r)
			case err != nil:
				jm.log.Error().Err(err).Str("job", id).Msg("Job failed")
				status.Status = "failed"
				status.Message = err.Error()
			default:
				status.Status = "success"
				if status.Message == "Job started..." {
					status.Message = "Job completed successfully."
				}
			}
			jm.running = false
			jm.mu.Unlock()
			jm.log.Info().Str("job", id).Str("status", status.Status).Msg("Finished job")
		}()

		err = task(ctx)
	}()
	return nil
}

// Report replaces the status message of a running job.
func (jm *JobManager) Report(id, message string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	if s, ok := jm.status[id]; ok {
		s.Message = message
	}
}

// GetStatus returns a snapshot of every job, ordered by ID.
func (jm *JobManager) GetStatus() []JobStatus {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	statuses := make([]JobStatus, 0, len(jm.status))
	for _, s := range jm.status {
		statuses = append(statuses, *s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses
}
