package matching

import (
	"context"
	"time"

	"github.com/imadgeboyega/kiekky-matchmaker/internal/common/logging"
)

// Task is a periodic maintenance job.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(context.Context) error
}

type Scheduler struct {
	tasks []Task
}

func NewScheduler(tasks ...Task) *Scheduler {
	return &Scheduler{tasks: tasks}
}

// Start launches every task on its own ticker until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, task := range s.tasks {
		go s.runEvery(ctx, task)
	}
}

func (s *Scheduler) runEvery(ctx context.Context, task Task) {
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := task.Run(ctx); err != nil {
				logging.Warn().Err(err).Str("task", task.Name).Msg("scheduled task failed")
			}
		case <-ctx.Done():
			return
		}
	}
}
