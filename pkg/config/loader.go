package config

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load decodes a YAML file into out after replacing ${VAR} references with
// environment values. Unset variables become empty strings.
func Load(filePath string, out interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path is chosen by the operator
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	expanded := envRef.ReplaceAllStringFunc(string(data), func(ref string) string {
		return os.Getenv(envRef.FindStringSubmatch(ref)[1])
	})
	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// LoadBaseConfig reads a connector configuration file on top of the defaults
// from NewBaseConfig and validates the result.
func LoadBaseConfig(filePath string) (*BaseConfig, error) {
	return LoadBaseConfigWithEnv(filePath, "")
}

// LoadBaseConfigWithEnv is LoadBaseConfig followed by environment overrides:
// with prefix "OPGATE", OPGATE_POOL_MAX_OBJECTS overrides pool.max_objects.
// Only scalar and list settings can be overridden; tables and properties
// come from the file alone.
func LoadBaseConfigWithEnv(filePath, envPrefix string) (*BaseConfig, error) {
	cfg := NewBaseConfig("", "")
	if err := Load(filePath, cfg); err != nil {
		return nil, err
	}
	if envPrefix != "" {
		if err := applyEnv(cfg, envPrefix); err != nil {
			return nil, fmt.Errorf("invalid environment override: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filePath, err)
	}
	return cfg, nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *BaseConfig, prefix string) error {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range settingKeys(reflect.TypeOf(*cfg), "") {
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}
	// unset variables are skipped, so only overridden keys are decoded
	return v.Unmarshal(cfg)
}

// settingKeys lists the dotted mapstructure keys of every non-map field.
func settingKeys(t reflect.Type, parent string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if parent != "" {
			key = parent + "." + tag
		}
		switch f.Type.Kind() {
		case reflect.Struct:
			keys = append(keys, settingKeys(f.Type, key)...)
		case reflect.Map:
		default:
			keys = append(keys, key)
		}
	}
	return keys
}
