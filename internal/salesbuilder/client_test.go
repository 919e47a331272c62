package salesbuilder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prospect_intake_backend/platform/logger"
)

type clientConfig struct {
	url string
}

func (c clientConfig) GetSalesBuilderURL() string           { return c.url }
func (c clientConfig) GetSalesBuilderTokenEnvVar() string   { return "SALES_BUILDER_API_KEY" }
func (c clientConfig) GetPollMaxAttempts() int              { return 3 }
func (c clientConfig) GetPollRetryDelay() time.Duration     { return time.Millisecond }
func (c clientConfig) GetPollRequestTimeout() time.Duration { return 2 * time.Second }

func TestStartTask(t *testing.T) {
	var gotAuth, gotPath string
	var gotInput KickoffInput

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotInput); err != nil {
			t.Errorf("decode kickoff body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"task_id":"abc-123"}`))
	}))
	defer srv.Close()

	client := NewClient(clientConfig{url: srv.URL}, StaticCredentials("secret"), logger.New("development"))
	taskID, err := client.StartTask(context.Background(), KickoffInput{
		Whatsapp:     "5524999887888",
		ProspectName: "Maria Silva",
		Company:      "Acme Ltda",
	})
	if err != nil {
		t.Fatalf("StartTask: %v", err)
	}

	if taskID != "abc-123" {
		t.Errorf("taskID = %q, want abc-123", taskID)
	}
	if gotPath != "/kickoff_task" {
		t.Errorf("path = %q, want /kickoff_task", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotInput.Whatsapp != "5524999887888" || gotInput.ProspectName != "Maria Silva" {
		t.Errorf("kickoff payload = %+v", gotInput)
	}
}

func TestStartTaskRejectsMissingTaskID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(clientConfig{url: srv.URL}, StaticCredentials(""), logger.New("development"))
	if _, err := client.StartTask(context.Background(), KickoffInput{}); err == nil {
		t.Fatal("expected error for response without task_id")
	}
}

func TestStartTaskUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(clientConfig{url: srv.URL}, StaticCredentials(""), logger.New("development"))
	if _, err := client.StartTask(context.Background(), KickoffInput{}); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestCheckStatusReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/abc-123" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"task_id": "abc-123",
			"state": "COMPLETED",
			"result": {
				"msg_resposta": ["primeira", "segunda"],
				"whatsapp_prospect": "5524999887888",
				"nome_prospect": "Maria"
			}
		}`))
	}))
	defer srv.Close()

	client := NewClient(clientConfig{url: srv.URL}, StaticCredentials("tok"), logger.New("development"))
	probe, err := client.CheckStatus(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}

	if probe.StatusCode != http.StatusOK {
		t.Errorf("status = %d", probe.StatusCode)
	}
	if probe.Task == nil || probe.Task.State != "COMPLETED" {
		t.Fatalf("task = %+v", probe.Task)
	}
	if len(probe.Task.Result.Messages) != 2 || probe.Task.Result.Messages[0] != "primeira" {
		t.Errorf("messages = %v", probe.Task.Result.Messages)
	}
	if len(probe.Raw) == 0 {
		t.Error("raw payload should be retained")
	}
}

func TestCheckStatusNon200IsNotAnError(t *testing.T) {
	for _, code := range []int{http.StatusAccepted, http.StatusForbidden, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(code)
		}))

		client := NewClient(clientConfig{url: srv.URL}, StaticCredentials("tok"), logger.New("development"))
		probe, err := client.CheckStatus(context.Background(), "abc-123")
		srv.Close()

		if err != nil {
			t.Fatalf("code %d: unexpected error %v", code, err)
		}
		if probe.StatusCode != code {
			t.Errorf("status = %d, want %d", probe.StatusCode, code)
		}
		if probe.Task != nil {
			t.Errorf("code %d: task should be nil", code)
		}
	}
}

func TestCheckStatusUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewClient(clientConfig{url: srv.URL}, StaticCredentials("tok"), logger.New("development"))
	if _, err := client.CheckStatus(context.Background(), "abc-123"); err == nil {
		t.Fatal("expected error for undecodable 200 body")
	}
}
