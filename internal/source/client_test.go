package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const docsResponse = `{
	"docs": [
		{
			"id": "doc-1",
			"title": "Billing Sync",
			"created_at": "2026-03-09T10:00:00Z",
			"notes_markdown": "## Notes\n\nDiscussed the rollout."
		},
		{
			"document_id": "doc-2",
			"title": "",
			"created_at": "not-a-timestamp"
		}
	]
}`

func newSourceServer(t *testing.T, transcriptStatus int) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-Client-Version") == "" {
			t.Error("missing X-Client-Version header")
		}
		switch r.URL.Path {
		case "/v2/get-documents":
			w.Write([]byte(docsResponse))
		case "/v1/get-document-transcript":
			if transcriptStatus != http.StatusOK {
				w.WriteHeader(transcriptStatus)
				return
			}
			w.Write([]byte(`[
				{"source": "microphone", "text": "Let us start."},
				{"source": "system", "text": "Sounds good."},
				{"source": "system", "text": "   "}
			]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, NewClientWithToken(srv.URL, "tok-123")
}

func TestListRecent(t *testing.T) {
	_, c := newSourceServer(t, http.StatusOK)

	records, err := c.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.ID != "doc-1" || first.Title != "Billing Sync" {
		t.Errorf("record = %+v", first)
	}
	if first.CreatedAt.IsZero() {
		t.Error("created_at not parsed")
	}
	if !strings.Contains(first.EnhancedNotes, "Discussed the rollout.") {
		t.Errorf("notes = %q", first.EnhancedNotes)
	}
	if first.Transcript != nil {
		t.Error("list results should not carry transcripts")
	}

	// Fallback id field, default title, unparseable timestamp.
	second := records[1]
	if second.ID != "doc-2" {
		t.Errorf("id = %q, want fallback document_id", second.ID)
	}
	if second.Title != "Untitled Meeting" {
		t.Errorf("title = %q", second.Title)
	}
	if !second.CreatedAt.IsZero() {
		t.Errorf("created_at = %v, want zero for bad timestamp", second.CreatedAt)
	}
}

func TestFetchFullIncludesTranscript(t *testing.T) {
	_, c := newSourceServer(t, http.StatusOK)

	record, err := c.FetchFull(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("FetchFull: %v", err)
	}
	if len(record.Transcript) != 2 {
		t.Fatalf("transcript = %+v, want 2 turns (blank dropped)", record.Transcript)
	}
	if record.Transcript[0].Speaker != "Me" || record.Transcript[0].Text != "Let us start." {
		t.Errorf("turn[0] = %+v", record.Transcript[0])
	}
	if record.Transcript[1].Speaker != "Them" {
		t.Errorf("turn[1].Speaker = %q", record.Transcript[1].Speaker)
	}
}

func TestFetchFullToleratesMissingTranscript(t *testing.T) {
	_, c := newSourceServer(t, http.StatusNotFound)

	record, err := c.FetchFull(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("FetchFull: %v", err)
	}
	if record.Transcript != nil {
		t.Errorf("transcript = %+v, want nil for notes-only meeting", record.Transcript)
	}
	if record.EnhancedNotes == "" {
		t.Error("notes missing")
	}
}

func TestFetchFullNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"docs": []}`))
	}))
	t.Cleanup(srv.Close)
	c := NewClientWithToken(srv.URL, "tok-123")

	_, err := c.FetchFull(context.Background(), "missing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestListRecentServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	c := NewClientWithToken(srv.URL, "tok-123")

	_, err := c.ListRecent(context.Background(), 5)
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Errorf("err = %v", err)
	}
}

func writeCredentials(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "supabase.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing credentials: %v", err)
	}
	return path
}

func TestLoadAccessToken(t *testing.T) {
	nested, _ := json.Marshal(map[string]string{"workos_tokens": `{"access_token": "tok-nested"}`})

	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"nested blob", string(nested), "tok-nested", false},
		{"top level", `{"access_token": "tok-flat"}`, "tok-flat", false},
		{"empty file", `{}`, "", true},
		{"nested without token", `{"workos_tokens": "{}"}`, "", true},
		{"invalid json", `not json`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCredentials(t, tt.content)
			got, err := loadAccessToken(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("loadAccessToken: %v", err)
			}
			if got != tt.want {
				t.Errorf("token = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadAccessTokenMissingFile(t *testing.T) {
	_, err := loadAccessToken(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("expected error for missing credentials file")
	}
}
