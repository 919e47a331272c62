package scheduler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type schedulerConfig struct {
	redisURL string
	queue    string
}

func (c schedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c schedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c schedulerConfig) GetAsynqQueueName() string { return c.queue }
func (c schedulerConfig) GetAsynqConcurrency() int  { return 1 }

func TestScheduleProspectFollowup(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := schedulerConfig{redisURL: "redis://" + srv.Addr(), queue: "followups"}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	payload := ProspectFollowupPayload{
		RequestID: "0e8cfcd2-3f3e-46b8-a2a9-0f2e9b4c8d11",
		TaskID:    "task-1",
		Whatsapp:  "5524999887888",
	}
	if err := client.ScheduleProspectFollowup(context.Background(), payload); err != nil {
		t.Fatalf("ScheduleProspectFollowup: %v", err)
	}

	opt, err := redisClientOpt(cfg.redisURL, false)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	inspector := asynq.NewInspector(opt)
	defer func() {
		_ = inspector.Close()
	}()

	pending, err := inspector.ListPendingTasks("followups")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(pending))
	}
	if pending[0].Type != TaskProspectFollowup {
		t.Errorf("task type = %q, want %q", pending[0].Type, TaskProspectFollowup)
	}

	var got ProspectFollowupPayload
	if err := json.Unmarshal(pending[0].Payload, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got != payload {
		t.Errorf("payload = %+v, want %+v", got, payload)
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(schedulerConfig{}); err == nil {
		t.Fatal("expected error for empty redis url")
	}
}

func TestFollowupTaskRoundTrip(t *testing.T) {
	payload := ProspectFollowupPayload{RequestID: "abc", TaskID: "task-1", Whatsapp: "5524999887888"}
	task, err := NewProspectFollowupTask(payload)
	if err != nil {
		t.Fatalf("NewProspectFollowupTask: %v", err)
	}

	got, err := ParseProspectFollowupPayload(task)
	if err != nil {
		t.Fatalf("ParseProspectFollowupPayload: %v", err)
	}
	if got != payload {
		t.Errorf("payload = %+v, want %+v", got, payload)
	}
}
