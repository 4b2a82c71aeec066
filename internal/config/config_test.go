package config

import (
	"reflect"
	"testing"
)

// mockBackend is an in-memory test double for ConfigBackend.
type mockBackend struct {
	strings map[string]string
	ints    map[string]int
}

func (m mockBackend) GetString(key string) (string, bool, error) {
	v, ok := m.strings[key]
	return v, ok, nil
}

func (m mockBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.ints[key]
	return v, ok, nil
}

func (m mockBackend) SetString(key, val string) error { m.strings[key] = val; return nil }
func (m mockBackend) SetInt(key string, val int) error { m.ints[key] = val; return nil }
func (m mockBackend) Delete(key string) error          { return nil }

// TestDefaults verifies default values are applied when the backend is empty.
func TestDefaults(t *testing.T) {
	cfg, err := loadWith(mockBackend{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider.Name != "anthropic" {
		t.Errorf("Provider.Name = %q, want %q", cfg.Provider.Name, "anthropic")
	}
	if cfg.Provider.MaxAttempts != 3 {
		t.Errorf("Provider.MaxAttempts = %d, want 3", cfg.Provider.MaxAttempts)
	}
	if cfg.Provider.MaxConcurrency != 2 {
		t.Errorf("Provider.MaxConcurrency = %d, want 2", cfg.Provider.MaxConcurrency)
	}
	if cfg.Provider.OllamaBaseURL != "http://localhost:11434" {
		t.Errorf("Provider.OllamaBaseURL = %q", cfg.Provider.OllamaBaseURL)
	}
	if cfg.Assembly.MaxContextChars != 32000 {
		t.Errorf("Assembly.MaxContextChars = %d, want 32000", cfg.Assembly.MaxContextChars)
	}
	if cfg.Pipeline.Workers != 1 {
		t.Errorf("Pipeline.Workers = %d, want 1", cfg.Pipeline.Workers)
	}
	if cfg.Server.Port != 4600 {
		t.Errorf("Server.Port = %d, want 4600", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if got := cfg.Extraction.TicketTypeList(); !reflect.DeepEqual(got, []string{"backend", "frontend", "design"}) {
		t.Errorf("TicketTypeList() = %v", got)
	}
}

// TestBackendOverride verifies stored values override defaults.
func TestBackendOverride(t *testing.T) {
	b := mockBackend{
		strings: map[string]string{
			"provider.name":            "ollama",
			"extraction.ticket_types":  "infra,mobile",
			"extraction.team_handles":  "Tristan Kaiser:@tristan, Maya Okafor:maya.o",
		},
		ints: map[string]int{
			"pipeline.workers":           4,
			"assembly.max_context_chars": 8000,
		},
	}

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider.Name != "ollama" {
		t.Errorf("Provider.Name = %q, want %q", cfg.Provider.Name, "ollama")
	}
	if cfg.Pipeline.Workers != 4 {
		t.Errorf("Pipeline.Workers = %d, want 4", cfg.Pipeline.Workers)
	}
	if cfg.Assembly.MaxContextChars != 8000 {
		t.Errorf("Assembly.MaxContextChars = %d, want 8000", cfg.Assembly.MaxContextChars)
	}
	if got := cfg.Extraction.TicketTypeList(); !reflect.DeepEqual(got, []string{"infra", "mobile"}) {
		t.Errorf("TicketTypeList() = %v", got)
	}
	want := map[string]string{"Tristan Kaiser": "@tristan", "Maya Okafor": "maya.o"}
	if got := cfg.Extraction.HandleMap(); !reflect.DeepEqual(got, want) {
		t.Errorf("HandleMap() = %v, want %v", got, want)
	}
}

// TestEnvOverride verifies environment variables override backend values.
func TestEnvOverride(t *testing.T) {
	b := mockBackend{
		strings: map[string]string{"provider.name": "openai"},
	}

	t.Setenv("DEBRIEF_PROVIDER_NAME", "anthropic")
	t.Setenv("DEBRIEF_PIPELINE_WORKERS", "8")
	t.Setenv("DEBRIEF_ANTHROPIC_API_KEY", "env-secret")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider.Name != "anthropic" {
		t.Errorf("Provider.Name = %q, want %q", cfg.Provider.Name, "anthropic")
	}
	if cfg.Pipeline.Workers != 8 {
		t.Errorf("Pipeline.Workers = %d, want 8", cfg.Pipeline.Workers)
	}
	if cfg.Provider.AnthropicAPIKey != "env-secret" {
		t.Errorf("AnthropicAPIKey = %q, want %q", cfg.Provider.AnthropicAPIKey, "env-secret")
	}
}

// TestSecretsNotInBackend verifies secrets are never read from the file backend.
func TestSecretsNotInBackend(t *testing.T) {
	b := mockBackend{
		strings: map[string]string{"provider.anthropic_api_key": "leaked"},
	}

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider.AnthropicAPIKey != "" {
		t.Errorf("AnthropicAPIKey = %q, want empty", cfg.Provider.AnthropicAPIKey)
	}
}

// TestShowAllHidesSecrets verifies secret keys never appear in display output.
func TestShowAllHidesSecrets(t *testing.T) {
	infos := ShowAll(defaults())
	for _, info := range infos {
		switch info.Key {
		case "provider.anthropic_api_key", "provider.openai_api_key", "server.token":
			t.Errorf("secret key %q exposed by ShowAll", info.Key)
		}
	}
	if len(infos) == 0 {
		t.Fatal("ShowAll returned no keys")
	}
}

func TestSetKeyUnknown(t *testing.T) {
	if err := SetKey("nonsense.key", "x"); err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
}

func TestHandleMapMalformedPairs(t *testing.T) {
	c := ExtractionConfig{TeamHandles: "no-colon-entry, :@orphan, Dana Reyes: , Lee Park:@lee"}
	want := map[string]string{"Lee Park": "@lee"}
	if got := c.HandleMap(); !reflect.DeepEqual(got, want) {
		t.Errorf("HandleMap() = %v, want %v", got, want)
	}
}

func TestSplitCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "standup", []string{"standup"}},
		{"spaces and blanks", " a , , b ,c", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitCSV(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitCSV(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
