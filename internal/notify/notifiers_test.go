package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

type mockNotifier struct {
	name    string
	err     error
	calls   int32
	notices []Notice
}

func (m *mockNotifier) Notify(ctx context.Context, n Notice) error {
	atomic.AddInt32(&m.calls, 1)
	m.notices = append(m.notices, n)
	return m.err
}

func (m *mockNotifier) Name() string {
	return m.name
}

var pushRejected = Notice{
	Severity: SeverityCritical,
	Run:      "run-1",
	Repo:     "https://git.example.com/app.git#main",
	Title:    "rollback push rejected",
	Message:  "publish: vcs: push rejected",
	Fields:   map[string]string{"strategy": "diff", "target": "v1.2.0"},
}

func TestWebhook_Notify(t *testing.T) {
	var received WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := NewWebhook(server.URL).Notify(context.Background(), pushRejected); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received.Severity != "critical" {
		t.Errorf("expected severity 'critical', got %q", received.Severity)
	}
	if received.Run != "run-1" || received.Repo != pushRejected.Repo {
		t.Errorf("unexpected run/repo %q %q", received.Run, received.Repo)
	}
	if received.Fields["target"] != "v1.2.0" {
		t.Errorf("expected target field, got %v", received.Fields)
	}
}

func TestWebhook_NotifyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewWebhook(server.URL).Notify(context.Background(), pushRejected)
	if err == nil || !strings.Contains(err.Error(), "webhook returned 400") {
		t.Errorf("expected 400 error, got %v", err)
	}
}

func TestSlack_Notify(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := NewSlack(server.URL).Notify(context.Background(), pushRejected); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, _ := received["text"].(string)
	want := ":rotating_light: *[https://git.example.com/app.git#main]* rollback push rejected"
	if text != want {
		t.Errorf("expected text %q, got %q", want, text)
	}
	blocks, _ := received["blocks"].([]any)
	if len(blocks) != 2 {
		t.Errorf("expected section and context blocks, got %d", len(blocks))
	}
}

func TestSlack_NotifyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if err := NewSlack(server.URL).Notify(context.Background(), pushRejected); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestTerminal_Notify(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTerminal(&buf).Notify(context.Background(), pushRejected); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"[critical] rollback push rejected", "repo: https://git.example.com/app.git#main", "run: run-1", "strategy: diff", "target: v1.2.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Index(out, "strategy:") > strings.Index(out, "target:") {
		t.Error("expected fields in sorted order")
	}
}

func TestTerminal_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	if err := NewTerminal(&buf).Notify(ctx, pushRejected); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("expected nothing written after cancellation")
	}
}

func TestMulti_NotifiesAllAndJoinsErrors(t *testing.T) {
	ok := &mockNotifier{name: "ok"}
	bad := &mockNotifier{name: "bad", err: errors.New("unreachable")}
	other := &mockNotifier{name: "other"}

	err := NewMulti(ok, bad, other).Notify(context.Background(), pushRejected)
	if err == nil || !strings.Contains(err.Error(), "bad: unreachable") {
		t.Errorf("expected joined error naming the notifier, got %v", err)
	}
	if ok.calls != 1 || bad.calls != 1 || other.calls != 1 {
		t.Error("expected every notifier to be called once")
	}
}

func TestMulti_Empty(t *testing.T) {
	if err := NewMulti().Notify(context.Background(), pushRejected); err != nil {
		t.Errorf("unexpected error for empty multi: %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{name: "none", cfg: Config{}, want: ""},
		{name: "terminal", cfg: Config{Backends: []string{"terminal"}}, want: "terminal"},
		{name: "slack", cfg: Config{Backends: []string{"slack"}, SlackWebhook: "https://hooks.slack.com/services/x"}, want: "slack"},
		{name: "slack without url", cfg: Config{Backends: []string{"slack"}}, wantErr: true},
		{name: "webhook", cfg: Config{Backends: []string{"webhook"}, WebhookURL: "https://example.com/hook"}, want: "webhook"},
		{name: "webhook without url", cfg: Config{Backends: []string{"webhook"}}, wantErr: true},
		{name: "several", cfg: Config{Backends: []string{"terminal", "webhook"}, WebhookURL: "https://example.com/hook"}, want: "multi"},
		{name: "unknown", cfg: Config{Backends: []string{"pager"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := FromConfig(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want == "" {
				if n != nil {
					t.Errorf("expected no notifier, got %q", n.Name())
				}
				return
			}
			if n == nil || n.Name() != tt.want {
				t.Errorf("expected %q notifier, got %v", tt.want, n)
			}
		})
	}
}
