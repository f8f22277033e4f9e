package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/viant/scy/cred/secret"
	"gopkg.in/yaml.v3"
)

// Config wires one policy corpus to an index, an embedder, a chat model and
// the downstream surfaces built on them.
type Config struct {
	Corpus    CorpusConfig    `yaml:"corpus"`
	Index     IndexConfig     `yaml:"index"`
	Embedding ProviderConfig  `yaml:"embedding"`
	LLM       ProviderConfig  `yaml:"llm"`
	Assistant AssistantConfig `yaml:"assistant"`
	Export    ExportConfig    `yaml:"export"`
	MCP       MCPConfig       `yaml:"mcp"`
}

// CorpusConfig locates the documents and shapes how they are chunked.
type CorpusConfig struct {
	Location string `yaml:"location"`
	// StateURL holds the manifest; it defaults to a .policyrag directory
	// under the corpus location.
	StateURL     string   `yaml:"state_url"`
	Include      []string `yaml:"include"`
	Exclude      []string `yaml:"exclude"`
	MaxSizeBytes int64    `yaml:"max_size_bytes"`
	Concurrency  int      `yaml:"concurrency"`
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
}

// IndexConfig selects and parameterizes the vector index backend.
type IndexConfig struct {
	Backend     string `yaml:"backend"` // mem, sqlitevec, chroma or pgvector
	DSN         string `yaml:"dsn"`
	Secret      string `yaml:"secret,omitempty"`
	BaseURL     string `yaml:"base_url"`
	Collection  string `yaml:"collection"`
	Table       string `yaml:"table"`
	VTable      string `yaml:"vtable"`
	Namespace   string `yaml:"namespace"`
	SnapshotURL string `yaml:"snapshot_url"`
	Dimension   int    `yaml:"dimension"`
	// ExternalValues pages chunk text of the mem backend out of the heap
	// into segment files next to the snapshot.
	ExternalValues bool  `yaml:"external_values"`
	SegmentSize    int64 `yaml:"segment_size"`
}

// ProviderConfig describes an embeddings or chat model provider.
type ProviderConfig struct {
	Provider     string   `yaml:"provider"`
	Model        string   `yaml:"model"`
	APIKey       string   `yaml:"api_key"`
	APIKeySecret string   `yaml:"api_key_secret,omitempty"`
	BaseURL      string   `yaml:"base_url"`
	Project      string   `yaml:"project"`
	Location     string   `yaml:"location"`
	Dimension    int      `yaml:"dimension"`
	Temperature  *float64 `yaml:"temperature"`
	// CacheSize enables an LRU over computed embeddings; zero disables it.
	CacheSize int `yaml:"cache_size"`
}

// AssistantConfig shapes retrieval for search and question answering.
type AssistantConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float32 `yaml:"min_score"`
}

// ExportConfig defines the warehouse table the reconciled corpus publishes to.
type ExportConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Secret string `yaml:"secret,omitempty"`
	Table  string `yaml:"table"`
	Batch  int    `yaml:"batch"`
}

// MCPConfig defines MCP server settings.
type MCPConfig struct {
	Addr string `yaml:"addr"`
	Port int    `yaml:"port"`
}

// LoadConfig reads a YAML config, expands ~ paths and resolves secret
// references into DSNs and API keys.
func LoadConfig(path string) (*Config, error) {
	path, err := expandUserPath(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.expand(context.Background()); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expand(ctx context.Context) error {
	var err error
	if c.Corpus.Location, err = expandUserPath(c.Corpus.Location); err != nil {
		return err
	}
	if c.Corpus.StateURL, err = expandUserPath(c.Corpus.StateURL); err != nil {
		return err
	}
	if c.Index.SnapshotURL, err = expandUserPath(c.Index.SnapshotURL); err != nil {
		return err
	}
	if c.Index.DSN, err = expandIndexDSN(c.Index.DSN, c.Index.Backend); err != nil {
		return err
	}
	if c.Index.DSN, err = expandWithSecret(ctx, c.Index.DSN, c.Index.Secret, "index dsn"); err != nil {
		return err
	}
	if c.Export.DSN, err = expandWithSecret(ctx, c.Export.DSN, c.Export.Secret, "export dsn"); err != nil {
		return err
	}
	if c.Embedding.APIKey, err = expandWithSecret(ctx, c.Embedding.APIKey, c.Embedding.APIKeySecret, "embedding api key"); err != nil {
		return err
	}
	if c.LLM.APIKey, err = expandWithSecret(ctx, c.LLM.APIKey, c.LLM.APIKeySecret, "llm api key"); err != nil {
		return err
	}
	return nil
}

// expandUserPath resolves a leading ~ against the home directory; other
// values pass through unchanged.
func expandUserPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if trimmed == "~" {
		return home, nil
	}
	if !strings.HasPrefix(trimmed, "~/") {
		return "", fmt.Errorf("config: unsupported ~user path: %s", path)
	}
	return filepath.Join(home, trimmed[2:]), nil
}

// expandIndexDSN applies user-path expansion to path-like DSNs, leaving
// server DSNs such as postgres URLs alone.
func expandIndexDSN(dsn, backend string) (string, error) {
	if dsn == "" {
		return dsn, nil
	}
	if backend == "sqlitevec" || dsn[0] == '~' || dsn[0] == '/' || strings.HasPrefix(dsn, "file:") {
		return expandUserPath(dsn)
	}
	return dsn, nil
}

// expandWithSecret loads a secret and expands its placeholders in value. An
// empty secretRef passes value through; a secretRef with an empty value is a
// configuration error.
func expandWithSecret(ctx context.Context, value, secretRef, what string) (string, error) {
	secretRef = strings.TrimSpace(secretRef)
	if secretRef == "" {
		return value, nil
	}
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("secret %q provided but %s is empty", secretRef, what)
	}
	svc := secret.New()
	sec, err := svc.Lookup(ctx, secret.Resource(secretRef))
	if err != nil {
		return "", err
	}
	return sec.Expand(value), nil
}
