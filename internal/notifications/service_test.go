package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dubline/internal/config"
	"dubline/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRunFinished(context.Background(), notifications.RunSummary{RunID: "abc"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsRunSummaries(t *testing.T) {
	tests := []struct {
		name           string
		summary        notifications.RunSummary
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "complete",
			summary: notifications.RunSummary{
				RunID: "0123456789abcdef", Stage: "complete", Complete: true, Chunks: 12,
				OutputPath: "/media/talk.dub.mkv",
			},
			expectTitle:   "Dubline - Complete",
			expectMessage: "Run 01234567 complete: 12 chunks\nFile: /media/talk.dub.mkv",
			expectTags:    "dubline,complete",
		},
		{
			name: "complete with untranslated",
			summary: notifications.RunSummary{
				RunID: "run-1", Stage: "complete", Complete: true, Chunks: 4, Untranslated: 2,
			},
			expectTitle:   "Dubline - Complete",
			expectMessage: "Run run-1 complete: 4 chunks (2 untranslated)",
			expectTags:    "dubline,complete",
		},
		{
			name: "partial",
			summary: notifications.RunSummary{
				RunID: "run-2", Stage: "complete", Complete: true, Chunks: 10, Degraded: 3,
			},
			expectTitle:    "Dubline - Partial",
			expectMessage:  "Run run-2 finished with 3 of 10 chunks silent\nRerun with --retry-degraded once credentials recover",
			expectTags:     "dubline,partial,warning",
			expectPriority: "high",
		},
		{
			name: "failed",
			summary: notifications.RunSummary{
				RunID: "run-3", Stage: "synthesized", Err: errors.New("ffmpeg exited 1"),
			},
			expectTitle:    "Dubline - Failed",
			expectMessage:  "Run run-3 failed at synthesized: ffmpeg exited 1",
			expectTags:     "dubline,error,alert",
			expectPriority: "high",
		},
		{
			name: "interrupted",
			summary: notifications.RunSummary{
				RunID: "run-4", Stage: "translated", Canceled: true, Err: context.Canceled,
			},
			expectTitle:    "Dubline - Interrupted",
			expectMessage:  "Run run-4 interrupted at translated; rerun to resume",
			expectTags:     "dubline,interrupted",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, _ := io.ReadAll(r.Body)
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeoutSeconds = 5

			svc := notifications.NewService(&cfg)
			if err := svc.NotifyRunFinished(context.Background(), tc.summary); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic is reserved", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "topic is reserved") {
		t.Fatalf("expected 403 error with body, got %v", err)
	}
}
