package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	clientVersion  = "5.354.0"
)

// Client talks to the meeting-capture service over its document API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client for the given API base URL, authenticating
// with the access token found in the capture app's credentials file.
func NewClient(baseURL, credentialsPath string) (*Client, error) {
	token, err := loadAccessToken(credentialsPath)
	if err != nil {
		return nil, err
	}
	return NewClientWithToken(baseURL, token), nil
}

// NewClientWithToken creates a Client with an explicit token (used by tests).
func NewClientWithToken(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// credentialsFile mirrors the capture app's credentials JSON. The current
// format nests the access token inside a JSON-encoded token blob; older
// installs keep it at the top level.
type credentialsFile struct {
	WorkOSTokens string `json:"workos_tokens"`
	AccessToken  string `json:"access_token"`
}

func loadAccessToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading source credentials %s: %w", path, err)
	}

	var creds credentialsFile
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", fmt.Errorf("parsing source credentials: %w", err)
	}

	if creds.WorkOSTokens == "" {
		if creds.AccessToken != "" {
			return creds.AccessToken, nil
		}
		return "", fmt.Errorf("no access token in %s — is the capture app logged in?", path)
	}

	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal([]byte(creds.WorkOSTokens), &tokens); err != nil {
		return "", fmt.Errorf("parsing nested token blob: %w", err)
	}
	if tokens.AccessToken == "" {
		return "", fmt.Errorf("no access_token in nested token blob")
	}
	return tokens.AccessToken, nil
}

// document mirrors the JSON shape returned by the documents endpoint.
type document struct {
	ID            string          `json:"id"`
	DocumentID    string          `json:"document_id"`
	Title         string          `json:"title"`
	CreatedAt     string          `json:"created_at"`
	NotesMarkdown string          `json:"notes_markdown"`
	Notes         json.RawMessage `json:"notes"`
}

func (d document) id() string {
	if d.ID != "" {
		return d.ID
	}
	return d.DocumentID
}

// ListRecent fetches up to limit recent meeting documents, newest first.
// Transcripts are not included; use FetchFull for a complete record.
func (c *Client) ListRecent(ctx context.Context, limit int) ([]MeetingRecord, error) {
	if limit <= 0 {
		limit = 1
	}

	var result struct {
		Docs []document `json:"docs"`
	}
	if err := c.post(ctx, "/v2/get-documents", map[string]any{"limit": limit, "offset": 0}, &result); err != nil {
		return nil, err
	}

	records := make([]MeetingRecord, 0, len(result.Docs))
	for _, d := range result.Docs {
		records = append(records, c.toRecord(d, nil))
	}
	return records, nil
}

// FetchFull fetches a meeting document together with its transcript.
// A missing transcript is not an error: many meetings have notes only.
func (c *Client) FetchFull(ctx context.Context, meetingID string) (MeetingRecord, error) {
	var result struct {
		Docs []document `json:"docs"`
	}
	if err := c.post(ctx, "/v2/get-documents", map[string]any{"document_ids": []string{meetingID}, "limit": 1}, &result); err != nil {
		return MeetingRecord{}, err
	}
	if len(result.Docs) == 0 {
		return MeetingRecord{}, fmt.Errorf("meeting %s not found", meetingID)
	}

	turns, err := c.fetchTranscript(ctx, meetingID)
	if err != nil {
		// Transcript endpoints 404 for notes-only meetings.
		turns = nil
	}
	return c.toRecord(result.Docs[0], turns), nil
}

// FetchTranscript returns the attributed transcript turns for a meeting,
// or nil if the meeting has no transcript.
func (c *Client) fetchTranscript(ctx context.Context, meetingID string) ([]Turn, error) {
	var segments []struct {
		Source string `json:"source"`
		Text   string `json:"text"`
	}
	if err := c.post(ctx, "/v1/get-document-transcript", map[string]any{"document_id": meetingID}, &segments); err != nil {
		return nil, err
	}

	var turns []Turn
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		speaker := "Them"
		if seg.Source == "microphone" {
			speaker = "Me"
		}
		turns = append(turns, Turn{Speaker: speaker, Text: text})
	}
	return turns, nil
}

func (c *Client) toRecord(d document, turns []Turn) MeetingRecord {
	title := d.Title
	if title == "" {
		title = "Untitled Meeting"
	}

	createdAt, err := time.Parse(time.RFC3339, d.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}

	return MeetingRecord{
		ID:            d.id(),
		Title:         title,
		CreatedAt:     createdAt,
		Transcript:    turns,
		EnhancedNotes: strings.TrimSpace(d.NotesMarkdown),
		ManualNotes:   manualNotesMarkdown(d.Notes),
	}
}

// manualNotesMarkdown converts the raw manual-notes field to markdown.
// The field is either a ProseMirror document or a plain string.
func manualNotesMarkdown(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		// Plain string; may itself contain ProseMirror JSON.
		if doc, ok := parseProseMirror([]byte(s)); ok {
			return ProseMirrorToMarkdown(doc)
		}
		return strings.TrimSpace(s)
	}

	if doc, ok := parseProseMirror(raw); ok {
		return ProseMirrorToMarkdown(doc)
	}
	return ""
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Client-Version", clientVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("source returned status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}
