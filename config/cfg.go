package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"time"

	validator "github.com/go-playground/validator/v10"
	"golang.org/x/net/http/httpguts"
	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"cssimp/common"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	ResolverConfig struct {
		Recursive   bool                 `yaml:"recursive"`
		ResolveURLs bool                 `yaml:"resolve_urls"`
		MaxDepth    int                  `yaml:"max_depth" validate:"gte=0"`
		Concurrency int                  `yaml:"concurrency" validate:"min=1,max=64"`
		OnFailure   common.FailurePolicy `yaml:"on_failure"`
	}

	TransportConfig struct {
		UserAgent     string                  `yaml:"user_agent"`
		ModernBrowser bool                    `yaml:"modern_browser"`
		Headers       map[string]SecretString `yaml:"headers,omitempty"`
		Timeout       time.Duration           `yaml:"timeout" validate:"gt=0"`
		MaxBodySize   int64                   `yaml:"max_body_size" validate:"min=1024"`
	}

	Config struct {
		Version   int             `yaml:"version" validate:"eq=1"`
		Resolver  ResolverConfig  `yaml:"resolver"`
		Transport TransportConfig `yaml:"transport"`
		Logging   LoggingConfig   `yaml:"logging"`
		Reporting ReporterConfig  `yaml:"reporting"`
	}
)

// Header returns configured custom request headers.
func (conf *TransportConfig) Header() http.Header {
	h := make(http.Header, len(conf.Headers))
	for k, v := range conf.Headers {
		h.Set(k, string(v))
	}
	return h
}

// checkConfig performs validation which could not be expressed with tags.
func checkConfig(sl validator.StructLevel) {
	cfg, ok := sl.Current().Interface().(Config)
	if !ok {
		return
	}
	if !cfg.Resolver.OnFailure.IsValid() {
		sl.ReportError(cfg.Resolver.OnFailure, "Resolver.OnFailure", "OnFailure", "failure_policy", "")
	}
	for k, v := range cfg.Transport.Headers {
		if !httpguts.ValidHeaderFieldName(k) {
			sl.ReportError(cfg.Transport.Headers, "Transport.Headers", "Headers", "header_name", k)
		}
		if !httpguts.ValidHeaderFieldValue(string(v)) {
			sl.ReportError(cfg.Transport.Headers, "Transport.Headers", "Headers", "header_value", k)
		}
	}
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("failed to sanitize configuration: %w", err)
		}
		if err := gencfg.Validate(cfg, gencfg.WithAdditionalChecks(checkConfig)); err != nil {
			return nil, fmt.Errorf("failed to validate configuration: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
