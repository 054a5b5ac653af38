package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SecretStringValue replaces actual value everywhere it could be seen.
const SecretStringValue = "<secret>"

// SecretString holds values which should never show up in logs, dumps or
// debug reports, request headers carrying credentials for example.
type SecretString string

// String implements fmt.Stringer hiding the value.
func (s SecretString) String() string {
	if len(s) == 0 {
		return ""
	}
	return SecretStringValue
}

// MarshalJSON marshals SecretString to JSON making sure that actual value is not visible.
func (s SecretString) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return []byte("\"" + SecretStringValue + "\""), nil
}

// MarshalYAML marshals SecretString to YAML making sure that actual value is not visible.
func (s SecretString) MarshalYAML() (any, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return SecretStringValue, nil
}

// secretHeaders logs header names with masked values.
type secretHeaders map[string]SecretString

func (h secretHeaders) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for k, v := range h {
		enc.AddString(k, v.String())
	}
	return nil
}

// HeadersField returns log field listing configured request headers.
func (conf *TransportConfig) HeadersField() zap.Field {
	return zap.Object("headers", secretHeaders(conf.Headers))
}
