package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "provider.name", typ: kString, env: "DEBRIEF_PROVIDER_NAME",
		apply:   func(cfg *Config, v any) { cfg.Provider.Name = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.Name },
	},
	{
		key: "provider.model", typ: kString, env: "DEBRIEF_PROVIDER_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Provider.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.Model },
	},
	{
		key: "provider.anthropic_api_key", typ: kString, env: "DEBRIEF_ANTHROPIC_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Provider.AnthropicAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.AnthropicAPIKey },
	},
	{
		key: "provider.openai_api_key", typ: kString, env: "DEBRIEF_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Provider.OpenAIAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.OpenAIAPIKey },
	},
	{
		key: "provider.ollama_base_url", typ: kString, env: "DEBRIEF_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Provider.OllamaBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.OllamaBaseURL },
	},
	{
		key: "provider.max_attempts", typ: kInt, env: "DEBRIEF_PROVIDER_MAX_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Provider.MaxAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Provider.MaxAttempts },
	},
	{
		key: "provider.max_concurrency", typ: kInt, env: "DEBRIEF_PROVIDER_MAX_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Provider.MaxConcurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Provider.MaxConcurrency },
	},
	{
		key: "source.base_url", typ: kString, env: "DEBRIEF_SOURCE_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Source.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Source.BaseURL },
	},
	{
		key: "source.credentials_path", typ: kString, env: "DEBRIEF_SOURCE_CREDENTIALS_PATH",
		apply:   func(cfg *Config, v any) { cfg.Source.CredentialsPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Source.CredentialsPath },
	},
	{
		key: "assembly.max_context_chars", typ: kInt, env: "DEBRIEF_ASSEMBLY_MAX_CONTEXT_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Assembly.MaxContextChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Assembly.MaxContextChars },
	},
	{
		key: "extraction.ticket_types", typ: kString, env: "DEBRIEF_TICKET_TYPES",
		apply:   func(cfg *Config, v any) { cfg.Extraction.TicketTypes = v.(string) },
		extract: func(cfg Config) any { return cfg.Extraction.TicketTypes },
	},
	{
		key: "extraction.skip_keywords", typ: kString, env: "DEBRIEF_SKIP_KEYWORDS",
		apply:   func(cfg *Config, v any) { cfg.Extraction.SkipKeywords = v.(string) },
		extract: func(cfg Config) any { return cfg.Extraction.SkipKeywords },
	},
	{
		key: "extraction.priority_keywords", typ: kString, env: "DEBRIEF_PRIORITY_KEYWORDS",
		apply:   func(cfg *Config, v any) { cfg.Extraction.PriorityKeywords = v.(string) },
		extract: func(cfg Config) any { return cfg.Extraction.PriorityKeywords },
	},
	{
		key: "extraction.team_handles", typ: kString, env: "DEBRIEF_TEAM_HANDLES",
		apply:   func(cfg *Config, v any) { cfg.Extraction.TeamHandles = v.(string) },
		extract: func(cfg Config) any { return cfg.Extraction.TeamHandles },
	},
	{
		key: "extraction.company_context", typ: kString, env: "DEBRIEF_COMPANY_CONTEXT",
		apply:   func(cfg *Config, v any) { cfg.Extraction.CompanyContext = v.(string) },
		extract: func(cfg Config) any { return cfg.Extraction.CompanyContext },
	},
	{
		key: "extraction.role_description", typ: kString, env: "DEBRIEF_ROLE_DESCRIPTION",
		apply:   func(cfg *Config, v any) { cfg.Extraction.RoleDescription = v.(string) },
		extract: func(cfg Config) any { return cfg.Extraction.RoleDescription },
	},
	{
		key: "extraction.system_override", typ: kString, env: "DEBRIEF_SYSTEM_OVERRIDE",
		apply:   func(cfg *Config, v any) { cfg.Extraction.SystemOverride = v.(string) },
		extract: func(cfg Config) any { return cfg.Extraction.SystemOverride },
	},
	{
		key: "pipeline.workers", typ: kInt, env: "DEBRIEF_PIPELINE_WORKERS",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.Workers = v.(int) },
		extract: func(cfg Config) any { return cfg.Pipeline.Workers },
	},
	{
		key: "output.dir", typ: kString, env: "DEBRIEF_OUTPUT_DIR",
		apply:   func(cfg *Config, v any) { cfg.Output.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Output.Dir },
	},
	{
		key: "storage.data_dir", typ: kString, env: "DEBRIEF_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "server.port", typ: kInt, env: "DEBRIEF_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "DEBRIEF_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "log.level", typ: kString, env: "DEBRIEF_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
