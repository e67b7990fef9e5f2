package config

import (
	"os"
	"path/filepath"
	"testing"
)

// chdirTemp moves the working directory to a fresh temp dir so Load() only
// sees the config.yaml the test writes.
func chdirTemp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
	return tmpDir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.Env != "local" {
		t.Errorf("expected Env=local, got %s", cfg.Env)
	}
	if cfg.Matcher.SimilarityThreshold != 0.3 {
		t.Errorf("expected similarity threshold 0.3, got %f", cfg.Matcher.SimilarityThreshold)
	}
	if cfg.Matcher.MatchLimit != 10 {
		t.Errorf("expected match limit 10, got %d", cfg.Matcher.MatchLimit)
	}
	if cfg.Executor.MaxRows != 10000 {
		t.Errorf("expected max rows 10000, got %d", cfg.Executor.MaxRows)
	}
	if cfg.Executor.MaxExecutionTime != 30 {
		t.Errorf("expected max execution time 30, got %d", cfg.Executor.MaxExecutionTime)
	}
	if cfg.Datasource.Type != "sqlite" {
		t.Errorf("expected datasource type sqlite, got %s", cfg.Datasource.Type)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected default embedding model, got %s", cfg.Embedding.Model)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	tmpDir := chdirTemp(t)

	yamlContent := `
env: "staging"
matcher:
  similarity_threshold: 0.5
  match_limit: 25
executor:
  max_rows: 500
datasource:
  type: "postgres"
  host: "db.example.com"
  port: 5432
  database: "sales"
  user: "app"
`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load("v1")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Env != "staging" {
		t.Errorf("expected Env=staging, got %s", cfg.Env)
	}
	if cfg.Matcher.SimilarityThreshold != 0.5 {
		t.Errorf("expected similarity threshold 0.5, got %f", cfg.Matcher.SimilarityThreshold)
	}
	if cfg.Matcher.MatchLimit != 25 {
		t.Errorf("expected match limit 25, got %d", cfg.Matcher.MatchLimit)
	}
	if cfg.Executor.MaxRows != 500 {
		t.Errorf("expected max rows 500, got %d", cfg.Executor.MaxRows)
	}
	if cfg.Datasource.Type != "postgres" {
		t.Errorf("expected datasource type postgres, got %s", cfg.Datasource.Type)
	}
	if cfg.Datasource.Host != "db.example.com" {
		t.Errorf("expected datasource host db.example.com, got %s", cfg.Datasource.Host)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	tmpDir := chdirTemp(t)

	yamlContent := `
env: "staging"
matcher:
  similarity_threshold: 0.5
`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("MATCHER_SIMILARITY_THRESHOLD", "0.7")
	t.Setenv("DATASOURCE_PASSWORD", "s3cret")

	cfg, err := Load("v1")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Matcher.SimilarityThreshold != 0.7 {
		t.Errorf("expected similarity threshold 0.7 (from env), got %f", cfg.Matcher.SimilarityThreshold)
	}
	if cfg.Datasource.Password != "s3cret" {
		t.Errorf("expected datasource password from env, got %s", cfg.Datasource.Password)
	}
}

func TestLoad_SecretsNotReadFromYAML(t *testing.T) {
	tmpDir := chdirTemp(t)

	yamlContent := `
embedding:
  api_key: "should-be-ignored"
datasource:
  password: "should-be-ignored"
`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load("v1")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Embedding.APIKey != "" {
		t.Errorf("expected API key to be ignored in YAML, got %q", cfg.Embedding.APIKey)
	}
	if cfg.Datasource.Password != "" {
		t.Errorf("expected password to be ignored in YAML, got %q", cfg.Datasource.Password)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero max rows", map[string]string{"EXECUTOR_MAX_ROWS": "0"}},
		{"negative execution time", map[string]string{"EXECUTOR_MAX_EXECUTION_TIME": "-1"}},
		{"threshold above one", map[string]string{"MATCHER_SIMILARITY_THRESHOLD": "1.5"}},
		{"zero match limit", map[string]string{"MATCHER_MATCH_LIMIT": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load("v1"); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}
