package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rupor-github/gencfg"

	"cssimp/common"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}

	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}

	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
}

func TestConfig_DefaultValues(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Resolver.Recursive {
		t.Error("Recursive should be off by default")
	}
	if cfg.Resolver.ResolveURLs {
		t.Error("ResolveURLs should be off by default")
	}
	if cfg.Resolver.MaxDepth != 0 {
		t.Errorf("MaxDepth = %d, want 0 (unbounded)", cfg.Resolver.MaxDepth)
	}
	if cfg.Resolver.OnFailure != common.FailurePolicyKeep {
		t.Errorf("OnFailure = %v, want keep", cfg.Resolver.OnFailure)
	}
	if cfg.Transport.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Transport.Timeout)
	}
	if cfg.Transport.MaxBodySize <= 0 {
		t.Errorf("MaxBodySize = %d, should be positive", cfg.Transport.MaxBodySize)
	}
	if cfg.Logging.ConsoleLogger.Level != "normal" {
		t.Errorf("Console level = %q, want normal", cfg.Logging.ConsoleLogger.Level)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	path := writeConfig(t, `version: 1
resolver:
  recursive: true
  resolve_urls: true
  max_depth: 3
  concurrency: 2
  on_failure: marker
transport:
  user_agent: test-agent
  modern_browser: true
  headers:
    Authorization: Bearer xyz
  timeout: 5s
  max_body_size: 65536
logging:
  console:
    level: debug
  file:
    level: debug
    destination: /tmp/test.log
    mode: append
reporting:
  destination: /tmp/test-report.zip
`)

	cfg, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	r := cfg.Resolver
	if !r.Recursive || !r.ResolveURLs || r.MaxDepth != 3 || r.Concurrency != 2 {
		t.Errorf("Resolver = %+v", r)
	}
	if r.OnFailure != common.FailurePolicyMarker {
		t.Errorf("OnFailure = %v, want marker", r.OnFailure)
	}

	tr := cfg.Transport
	if tr.UserAgent != "test-agent" || !tr.ModernBrowser {
		t.Errorf("Transport = %+v", tr)
	}
	if tr.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", tr.Timeout)
	}
	if tr.MaxBodySize != 65536 {
		t.Errorf("MaxBodySize = %d, want 65536", tr.MaxBodySize)
	}
	if got := tr.Header().Get("Authorization"); got != "Bearer xyz" {
		t.Errorf("Authorization = %q, want Bearer xyz", got)
	}
}

func TestLoadConfiguration_MergeWithDefaults(t *testing.T) {
	path := writeConfig(t, `version: 1
resolver:
  recursive: true
`)

	cfg, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if !cfg.Resolver.Recursive {
		t.Error("Recursive should be taken from file")
	}
	if cfg.Resolver.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want default 8", cfg.Resolver.Concurrency)
	}
	if cfg.Transport.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want default 30s", cfg.Transport.Timeout)
	}
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "version: 1\nresolver:\n  recursive: true\n  invalid indent\n"},
		{"unknown field", "version: 1\nunknown_field: value\n"},
		{"bad version", "version: 2\n"},
		{"bad policy", "version: 1\nresolver:\n  on_failure: retry\n"},
		{"negative depth", "version: 1\nresolver:\n  max_depth: -1\n"},
		{"zero concurrency", "version: 1\nresolver:\n  concurrency: 0\n"},
		{"bad duration", "version: 1\ntransport:\n  timeout: soon\n"},
		{"bad header name", "version: 1\ntransport:\n  headers:\n    \"Bad Header\": x\n"},
		{"bad header value", "version: 1\ntransport:\n  headers:\n    X-Test: \"a\\nb\"\n"},
		{"bad log level", "version: 1\nlogging:\n  console:\n    level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfiguration(writeConfig(t, tt.content)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	_, err := LoadConfiguration("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_WithOptions(t *testing.T) {
	option := func(opts *gencfg.ProcessingOptions) {
		// Options are opaque, just test that we can pass them
	}

	cfg, err := LoadConfiguration("", option)
	if err != nil {
		t.Fatalf("LoadConfiguration() with options error = %v", err)
	}

	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	if len(data) == 0 {
		t.Error("Prepare() returned empty data")
	}

	// Verify it's valid YAML by trying to unmarshal
	if _, err = unmarshalConfig(data, &Config{}, true); err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	cfg.Resolver.OnFailure = common.FailurePolicyAbort
	cfg.Transport.Headers = map[string]SecretString{"Authorization": "Bearer xyz"}

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	text := string(data)
	for _, want := range []string{"on_failure: abort", "timeout: 30s", "Authorization: <secret>"} {
		if !strings.Contains(text, want) {
			t.Errorf("Dump() output does not contain %q:\n%s", want, text)
		}
	}

	// Verify we can load it back
	cfg2, err := unmarshalConfig(data, &Config{}, true)
	if err != nil {
		t.Fatalf("Dumped config cannot be loaded: %v", err)
	}
	if cfg2.Resolver != cfg.Resolver {
		t.Errorf("Resolver mismatch after dump/load: got %+v, want %+v", cfg2.Resolver, cfg.Resolver)
	}
}

func TestUnmarshalConfig_WrapsValidationError(t *testing.T) {
	_, err := unmarshalConfig([]byte("version: 99\n"), &Config{}, true)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "validat") {
		t.Errorf("expected error to mention validation, got: %v", err)
	}
	if errors.Unwrap(err) == nil {
		t.Errorf("expected wrapped error, got bare error: %v", err)
	}
}
