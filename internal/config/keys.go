package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
	kList // comma-separated strings
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
		key: "server.port", typ: kInt, env: "LECTERN_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.cors_origins", typ: kList, env: "LECTERN_SERVER_CORS_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.CORSOrigins = v.([]string) },
		extract: func(cfg Config) any { return strings.Join(cfg.Server.CORSOrigins, ",") },
	},
	{
		key: "local.url", typ: kString, env: "LECTERN_LOCAL_URL",
		apply:   func(cfg *Config, v any) { cfg.Local.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Local.URL },
	},
	{
		key: "local.timeout", typ: kDuration, env: "LECTERN_LOCAL_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Local.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Local.Timeout },
	},
	{
		key: "proxy.api_key", typ: kString, env: "LECTERN_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Proxy.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.APIKey },
	},
	{
		key: "proxy.base_url", typ: kString, env: "LECTERN_PROXY_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Proxy.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.BaseURL },
	},
	{
		key: "proxy.default_model", typ: kString, env: "LECTERN_PROXY_DEFAULT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Proxy.DefaultModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.DefaultModel },
	},
	{
		key: "proxy.premium_model", typ: kString, env: "LECTERN_PROXY_PREMIUM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Proxy.PremiumModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.PremiumModel },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LECTERN_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.upload_dir", typ: kString, env: "LECTERN_STORAGE_UPLOAD_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.UploadDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.UploadDir },
	},
	{
		key: "search.per_variant_limit", typ: kInt, env: "LECTERN_SEARCH_PER_VARIANT_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Search.PerVariantLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Search.PerVariantLimit },
	},
	{
		key: "search.academic_weight", typ: kFloat, env: "LECTERN_SEARCH_ACADEMIC_WEIGHT",
		apply:   func(cfg *Config, v any) { cfg.Search.AcademicWeight = v.(float64) },
		extract: func(cfg Config) any { return cfg.Search.AcademicWeight },
	},
	{
		key: "search.fetch_timeout", typ: kDuration, env: "LECTERN_SEARCH_FETCH_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Search.FetchTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Search.FetchTimeout },
	},
	{
		key: "search.fetch_concurrency", typ: kInt, env: "LECTERN_SEARCH_FETCH_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Search.FetchConcurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Search.FetchConcurrency },
	},
	{
		key: "search.cache_ttl", typ: kDuration, env: "LECTERN_SEARCH_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Search.CacheTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Search.CacheTTL },
	},
	{
		key: "vector.enabled", typ: kBool, env: "LECTERN_VECTOR_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Vector.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Vector.Enabled },
	},
	{
		key: "vector.embed_model", typ: kString, env: "LECTERN_VECTOR_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Vector.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Vector.EmbedModel },
	},
	{
		key: "vector.index_name", typ: kString, env: "LECTERN_VECTOR_INDEX_NAME",
		apply:   func(cfg *Config, v any) { cfg.Vector.IndexName = v.(string) },
		extract: func(cfg Config) any { return cfg.Vector.IndexName },
	},
	{
		key: "vector.api_key", typ: kString, env: "LECTERN_VECTOR_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Vector.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Vector.APIKey },
	},
	{
		key: "log.level", typ: kString, env: "LECTERN_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.file", typ: kString, env: "LECTERN_LOG_FILE",
		apply:   func(cfg *Config, v any) { cfg.Log.File = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.File },
	},
	{
		key: "log.format", typ: kString, env: "LECTERN_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
}

// parseValue converts raw into the type the key's apply func expects.
func parseValue(s keySpec, raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	case kList:
		return splitList(raw), nil
	default:
		return raw, nil
	}
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}
		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := parseValue(s, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
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
		v, err := parseValue(s, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
