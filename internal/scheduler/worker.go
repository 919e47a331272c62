package scheduler

import (
	"context"
	"fmt"

	"prospect_intake_backend/platform/config"
	"prospect_intake_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// FollowupRunner executes one follow-up flow to completion.
type FollowupRunner interface {
	Run(ctx context.Context, requestID uuid.UUID, taskID string) error
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner FollowupRunner
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, runner FollowupRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		runner: runner,
		log:    log,
	}

	mux.HandleFunc(TaskProspectFollowup, w.handleProspectFollowup)

	return w, nil
}

func (w *Worker) handleProspectFollowup(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseProspectFollowupPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	requestID, err := uuid.Parse(payload.RequestID)
	if err != nil {
		return fmt.Errorf("%w: bad request id %q", asynq.SkipRetry, payload.RequestID)
	}

	w.log.Info("follow-up task started", "request_id", requestID, "task_id", payload.TaskID)
	return w.runner.Run(ctx, requestID, payload.TaskID)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
