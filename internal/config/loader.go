package config

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ssmRefPrefix    = "ssm:"
	secretRefPrefix = "secretsmanager:"
	kmsRefPrefix    = "kms:"
)

var refPrefixes = []string{ssmRefPrefix, secretRefPrefix, kmsRefPrefix}

// ParameterGetter reads a single SSM parameter.
type ParameterGetter interface {
	GetParameter(ctx context.Context, name string, decrypt bool) (string, error)
}

// SecretGetter reads a single Secrets Manager secret string.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Decrypter decrypts a base64 KMS ciphertext embedded in the config.
type Decrypter interface {
	DecryptString(ctx context.Context, ciphertextB64 string) (string, error)
}

// Resolvers backs the reference prefixes. A nil member leaves its prefix
// unsupported.
type Resolvers struct {
	Params  ParameterGetter
	Secrets SecretGetter
	KMS     Decrypter
}

var durationType = reflect.TypeOf(time.Duration(0))

// LoadConfig loads configuration from YAML and environment variables
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in YAML
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := overrideWithEnv(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	return cfg, nil
}

// overrideWithEnv walks the struct and applies any `env` tagged values found
// in the environment. Nested structs are visited recursively.
func overrideWithEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		if fieldVal.Kind() == reflect.Struct {
			if err := overrideWithEnv(fieldVal); err != nil {
				return err
			}
			continue
		}

		envKey := field.Tag.Get("env")
		if envKey == "" {
			continue
		}
		envValue, exists := os.LookupEnv(envKey)
		if !exists {
			continue
		}

		if field.Type == durationType {
			d, err := time.ParseDuration(envValue)
			if err != nil {
				return fmt.Errorf("env %s: %w", envKey, err)
			}
			fieldVal.SetInt(int64(d))
			continue
		}

		switch fieldVal.Kind() {
		case reflect.String:
			fieldVal.SetString(envValue)
		case reflect.Int, reflect.Int64:
			n, err := strconv.Atoi(envValue)
			if err != nil {
				return fmt.Errorf("env %s: %w", envKey, err)
			}
			fieldVal.SetInt(int64(n))
		case reflect.Bool:
			b, err := strconv.ParseBool(envValue)
			if err != nil {
				return fmt.Errorf("env %s: %w", envKey, err)
			}
			fieldVal.SetBool(b)
		case reflect.Slice:
			if field.Type.Elem().Kind() == reflect.String {
				parts := strings.Split(envValue, ",")
				for j := range parts {
					parts[j] = strings.TrimSpace(parts[j])
				}
				fieldVal.Set(reflect.ValueOf(parts))
			}
		}
	}
	return nil
}

// ResolveReferences replaces string values of the form "ssm:<name>",
// "secretsmanager:<name>" and "kms:<base64 ciphertext>" with the referenced
// values. A reference whose resolver is nil is an error.
func ResolveReferences(ctx context.Context, cfg *Config, r Resolvers) error {
	return resolveStrings(ctx, reflect.ValueOf(cfg).Elem(), "", r)
}

func resolveStrings(ctx context.Context, v reflect.Value, path string, r Resolvers) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}
		name := yamlName(t.Field(i))
		if path != "" {
			name = path + "." + name
		}

		switch fieldVal.Kind() {
		case reflect.Struct:
			if err := resolveStrings(ctx, fieldVal, name, r); err != nil {
				return err
			}
		case reflect.String:
			resolved, err := resolveOne(ctx, fieldVal.String(), r)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			fieldVal.SetString(resolved)
		}
	}
	return nil
}

func resolveOne(ctx context.Context, raw string, r Resolvers) (string, error) {
	switch {
	case strings.HasPrefix(raw, ssmRefPrefix):
		if r.Params == nil {
			return "", fmt.Errorf("no SSM loader configured for %q", raw)
		}
		return r.Params.GetParameter(ctx, strings.TrimPrefix(raw, ssmRefPrefix), true)
	case strings.HasPrefix(raw, secretRefPrefix):
		if r.Secrets == nil {
			return "", fmt.Errorf("no secrets loader configured for %q", raw)
		}
		return r.Secrets.GetSecret(ctx, strings.TrimPrefix(raw, secretRefPrefix))
	case strings.HasPrefix(raw, kmsRefPrefix):
		if r.KMS == nil {
			return "", fmt.Errorf("no KMS decrypter configured for %s reference", kmsRefPrefix)
		}
		return r.KMS.DecryptString(ctx, strings.TrimPrefix(raw, kmsRefPrefix))
	default:
		return raw, nil
	}
}

// HasReferences reports whether any string value still carries a reference
// prefix, so callers can skip building AWS clients otherwise.
func HasReferences(cfg *Config) bool {
	found := false
	var walk func(v reflect.Value)
	walk = func(v reflect.Value) {
		for i := 0; i < v.NumField() && !found; i++ {
			f := v.Field(i)
			switch f.Kind() {
			case reflect.Struct:
				walk(f)
			case reflect.String:
				for _, p := range refPrefixes {
					if strings.HasPrefix(f.String(), p) {
						found = true
					}
				}
			}
		}
	}
	walk(reflect.ValueOf(cfg).Elem())
	return found
}

func yamlName(f reflect.StructField) string {
	tag := f.Tag.Get("yaml")
	if tag == "" {
		return strings.ToLower(f.Name)
	}
	return strings.Split(tag, ",")[0]
}
