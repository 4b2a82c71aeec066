package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mwhitby/debrief/internal/ledger"
	"github.com/mwhitby/debrief/internal/pipeline"
	"github.com/mwhitby/debrief/internal/source"
)

var ctx = context.Background()

func newSourceServer(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if resp, ok := responses[r.URL.Path]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}
		w.WriteHeader(404)
		w.Write([]byte(`{"error":"not found"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchMeetings_SingleMeeting(t *testing.T) {
	srv := newSourceServer(t, map[string]string{
		"/v2/get-documents": `{"docs":[{"id":"mtg-1","title":"Sprint Planning","created_at":"2025-06-02T10:00:00Z"}]}`,
		"/v1/get-document-transcript": `[{"source":"microphone","text":"Let us start."}]`,
	})

	src := source.NewClientWithToken(srv.URL, "test-token")

	meetings, err := fetchMeetings(ctx, src, 10, "mtg-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(meetings) != 1 {
		t.Fatalf("got %d meetings, want 1", len(meetings))
	}
	if meetings[0].Title != "Sprint Planning" {
		t.Errorf("Title = %q, want %q", meetings[0].Title, "Sprint Planning")
	}
	if len(meetings[0].Transcript) != 1 || meetings[0].Transcript[0].Speaker != "Me" {
		t.Errorf("Transcript = %+v, want one turn from Me", meetings[0].Transcript)
	}
}

func TestFetchMeetings_Recent(t *testing.T) {
	srv := newSourceServer(t, map[string]string{
		"/v2/get-documents": `{"docs":[{"id":"mtg-1","title":"A","created_at":"2025-06-02T10:00:00Z"}]}`,
		"/v1/get-document-transcript": `[]`,
	})

	src := source.NewClientWithToken(srv.URL, "test-token")

	meetings, err := fetchMeetings(ctx, src, 5, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(meetings) != 1 {
		t.Fatalf("got %d meetings, want 1", len(meetings))
	}
	if meetings[0].ID != "mtg-1" {
		t.Errorf("ID = %q, want %q", meetings[0].ID, "mtg-1")
	}
}

func TestFetchMeetings_ListError(t *testing.T) {
	srv := newSourceServer(t, nil)

	src := source.NewClientWithToken(srv.URL, "test-token")

	_, err := fetchMeetings(ctx, src, 5, "")
	if err == nil {
		t.Fatal("expected error when listing fails")
	}
}

func TestSaveRun_RecordsOutcomes(t *testing.T) {
	store, err := ledger.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:): %v", err)
	}
	t.Cleanup(func() { store.Close() })

	outcomes := []pipeline.Outcome{
		{MeetingID: "m1", Title: "A", Status: pipeline.StatusCompleted},
		{MeetingID: "m2", Title: "B", Status: pipeline.StatusSkipped, Reason: "already processed"},
		{MeetingID: "m3", Title: "C", Status: pipeline.StatusFailed, ErrKind: pipeline.KindSchemaError, Detail: "bad json"},
	}
	summary := pipeline.Summary{Completed: 1, Skipped: 1, Failed: 1}

	saveRun(store, time.Now().UTC().Add(-time.Minute), outcomes, summary)

	runs, err := store.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].Completed != 1 || runs[0].Skipped != 1 || runs[0].Failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", runs[0].Completed, runs[0].Skipped, runs[0].Failed)
	}

	meetings, err := store.RunMeetings(runs[0].ID)
	if err != nil {
		t.Fatalf("RunMeetings: %v", err)
	}
	if len(meetings) != 3 {
		t.Fatalf("got %d run meetings, want 3", len(meetings))
	}
	for _, m := range meetings {
		if m.MeetingID == "m3" {
			if !strings.Contains(m.Detail, "schema_error") {
				t.Errorf("failed meeting detail = %q, want it to contain %q", m.Detail, "schema_error")
			}
		}
	}
}

func TestConfigSetCommand_UnknownKey(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"config", "set", "bogus.key", "value"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for unknown config key")
	}
	if !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("error = %q, want it to mention 'unknown config key'", err.Error())
	}
}

func TestLedgerShowCommand_RequiresArg(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ledger", "show"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing meeting id")
	}
}
