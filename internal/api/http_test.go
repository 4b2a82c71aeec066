package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mwhitby/debrief/internal/ledger"
)

const testToken = "test-token-12345"

func setupAppHandler(t *testing.T, token string) (http.Handler, *ledger.Store) {
	t.Helper()
	store, err := ledger.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	handler := NewAppHandler(AppDeps{
		Store: store,
		Token: token,
	})
	return handler, store
}

func authReq(method, url, token string) *http.Request {
	req := httptest.NewRequest(method, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func commitMeeting(t *testing.T, store *ledger.Store, id, title string) {
	t.Helper()
	if err := store.Commit(context.Background(), id, title, "fp-"+id); err != nil {
		t.Fatalf("Commit(%q) failed: %v", id, err)
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	req := authReq(http.MethodGet, "/health", "")
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp map[string]string
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want %q", resp["status"], "ok")
	}
}

func TestListProcessed_NoAuth(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	req := authReq(http.MethodGet, "/processed", "")
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestListProcessed_WrongToken(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	req := authReq(http.MethodGet, "/processed", "wrong-token")
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestListProcessed_Empty(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	req := authReq(http.MethodGet, "/processed", testToken)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	body := strings.TrimSpace(rr.Body.String())
	if body != "[]" {
		t.Errorf("body = %q, want %q", body, "[]")
	}
}

func TestListProcessed_Limit(t *testing.T) {
	h, store := setupAppHandler(t, testToken)

	for i := 0; i < 3; i++ {
		commitMeeting(t, store, fmt.Sprintf("mtg-%d", i), fmt.Sprintf("Meeting %d", i))
	}

	rr := httptest.NewRecorder()
	req := authReq(http.MethodGet, "/processed?limit=2", testToken)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var records []ledger.ProcessedRecord
	json.NewDecoder(rr.Body).Decode(&records)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestGetProcessed(t *testing.T) {
	h, store := setupAppHandler(t, testToken)

	commitMeeting(t, store, "mtg-get-1", "Roadmap Review")

	rr := httptest.NewRecorder()
	req := authReq(http.MethodGet, "/processed/mtg-get-1", testToken)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var got ledger.ProcessedRecord
	json.NewDecoder(rr.Body).Decode(&got)
	if got.MeetingID != "mtg-get-1" {
		t.Errorf("MeetingID = %q, want %q", got.MeetingID, "mtg-get-1")
	}
	if got.Title != "Roadmap Review" {
		t.Errorf("Title = %q, want %q", got.Title, "Roadmap Review")
	}
}

func TestGetProcessed_NotFound(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	req := authReq(http.MethodGet, "/processed/nonexistent", testToken)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestListRuns(t *testing.T) {
	h, store := setupAppHandler(t, testToken)

	run := ledger.Run{
		ID:         "run-1",
		StartedAt:  time.Now().UTC().Add(-time.Minute),
		FinishedAt: time.Now().UTC(),
		Completed:  2,
		Skipped:    1,
	}
	meetings := []ledger.RunMeeting{
		{RunID: "run-1", MeetingID: "m1", Title: "A", Status: "completed"},
		{RunID: "run-1", MeetingID: "m2", Title: "B", Status: "completed"},
		{RunID: "run-1", MeetingID: "m3", Title: "C", Status: "skipped", Detail: "already processed"},
	}
	if err := store.SaveRun(run, meetings); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	rr := httptest.NewRecorder()
	req := authReq(http.MethodGet, "/runs", testToken)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var runs []ledger.Run
	json.NewDecoder(rr.Body).Decode(&runs)
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].Completed != 2 || runs[0].Skipped != 1 {
		t.Errorf("counts = %d/%d, want 2/1", runs[0].Completed, runs[0].Skipped)
	}
}

func TestRunMeetings(t *testing.T) {
	h, store := setupAppHandler(t, testToken)

	run := ledger.Run{ID: "run-2", StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC(), Failed: 1}
	meetings := []ledger.RunMeeting{
		{RunID: "run-2", MeetingID: "m1", Title: "A", Status: "failed", Detail: "schema_error"},
	}
	if err := store.SaveRun(run, meetings); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	rr := httptest.NewRecorder()
	req := authReq(http.MethodGet, "/runs/run-2/meetings", testToken)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var got []ledger.RunMeeting
	json.NewDecoder(rr.Body).Decode(&got)
	if len(got) != 1 {
		t.Fatalf("got %d meetings, want 1", len(got))
	}
	if got[0].Status != "failed" {
		t.Errorf("Status = %q, want %q", got[0].Status, "failed")
	}
}

func TestRunMeetings_NotFound(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	req := authReq(http.MethodGet, "/runs/nonexistent/meetings", testToken)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestAuthDisabledWhenTokenEmpty(t *testing.T) {
	h, _ := setupAppHandler(t, "")

	rr := httptest.NewRecorder()
	req := authReq(http.MethodGet, "/processed", "")
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}
