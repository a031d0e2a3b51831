package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/exoseq/pkg/errors"
)

// LoadFile reads a Config from a YAML file. Fields the file omits keep their
// NewConfig defaults.
func LoadFile(filePath string) (*Config, error) {
	cfg := NewConfig()
	if err := Load(filePath, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load loads a configuration from a YAML file
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller and validated
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(err, errors.ErrorTypeNotFound, "config file does not exist").WithDetail("path", filePath)
		}
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").WithDetail("path", filePath)
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML").WithDetail("path", filePath)
	}

	return nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file").WithDetail("path", filePath)
	}

	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// ${VAR_NAME:-fallback} uses fallback when the variable is unset or empty.
func substituteEnvVars(content string) string {
	var sb strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		fallback := ""
		if i := strings.Index(varName, ":-"); i >= 0 {
			varName, fallback = varName[:i], varName[i+2:]
		}
		envValue := os.Getenv(varName)
		if envValue == "" {
			envValue = fallback
		}
		sb.WriteString(content[:start])
		sb.WriteString(envValue)
		content = content[end+1:]
	}
	sb.WriteString(content)
	return sb.String()
}
