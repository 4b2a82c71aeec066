package config

import (
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	Provider   ProviderConfig
	Source     SourceConfig
	Assembly   AssemblyConfig
	Extraction ExtractionConfig
	Pipeline   PipelineConfig
	Output     OutputConfig
	Storage    StorageConfig
	Server     ServerConfig
	Log        LogConfig
}

type ProviderConfig struct {
	Name            string
	Model           string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OllamaBaseURL   string
	MaxAttempts     int
	MaxConcurrency  int
}

type SourceConfig struct {
	BaseURL         string
	CredentialsPath string
}

type AssemblyConfig struct {
	MaxContextChars int
}

// ExtractionConfig holds the extraction and enrichment tunables. List
// values are stored as comma-separated strings so the flat config backend
// and env overrides stay uniform; use the accessor methods for parsed forms.
type ExtractionConfig struct {
	TicketTypes      string
	SkipKeywords     string
	PriorityKeywords string
	TeamHandles      string
	CompanyContext   string
	RoleDescription  string
	SystemOverride   string
}

type PipelineConfig struct {
	Workers int
}

type OutputConfig struct {
	Dir string
}

type StorageConfig struct {
	DataDir string
}

type ServerConfig struct {
	Port  int
	Token string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Provider: ProviderConfig{
			Name:           "anthropic",
			OllamaBaseURL:  "http://localhost:11434",
			MaxAttempts:    3,
			MaxConcurrency: 2,
		},
		Source: SourceConfig{
			BaseURL:         "https://api.granola.ai",
			CredentialsPath: defaultCredentialsPath(),
		},
		Assembly: AssemblyConfig{
			MaxContextChars: 32000,
		},
		Extraction: ExtractionConfig{
			TicketTypes:      "backend,frontend,design",
			PriorityKeywords: "urgent,blocker,asap",
		},
		Pipeline: PipelineConfig{
			Workers: 1,
		},
		Output: OutputConfig{
			Dir: "./outputs",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Server: ServerConfig{
			Port: 4600,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration in precedence order: defaults, then the config
// file at $XDG_CONFIG_HOME/debrief/config.json, then DEBRIEF_* environment
// variables.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// TicketTypeList returns the configured ticket categories.
func (c ExtractionConfig) TicketTypeList() []string {
	return splitCSV(c.TicketTypes)
}

// SkipKeywordList returns the configured recurring-meeting keywords.
func (c ExtractionConfig) SkipKeywordList() []string {
	return splitCSV(c.SkipKeywords)
}

// PriorityKeywordList returns the configured priority keywords.
func (c ExtractionConfig) PriorityKeywordList() []string {
	return splitCSV(c.PriorityKeywords)
}

// HandleMap parses the team-handle mapping from its "Name:@handle,..." form.
func (c ExtractionConfig) HandleMap() map[string]string {
	handles := make(map[string]string)
	for _, pair := range splitCSV(c.TeamHandles) {
		name, handle, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		handle = strings.TrimSpace(handle)
		if name != "" && handle != "" {
			handles[name] = handle
		}
	}
	return handles
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "debrief-data"
		}
	}
	return filepath.Join(dir, "debrief")
}

func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Library", "Application Support", "Granola", "supabase.json")
}
