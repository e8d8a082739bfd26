package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema is the JSON schema a config file must satisfy before it is
// unmarshalled. Catches type mistakes (string allowlist entries, negative
// intervals) with a better message than a mapstructure decode error.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "telegram": {
      "type": "object",
      "properties": {
        "bot_token": {"type": "string"},
        "allowlist": {
          "type": "array",
          "items": {"type": "integer", "minimum": 1}
        }
      }
    },
    "shell": {
      "type": "object",
      "properties": {
        "command": {"type": "string", "minLength": 1},
        "flush_interval": {"type": "integer", "minimum": 1},
        "idle_timeout": {"type": "integer", "minimum": 0},
        "history_enabled": {"type": "boolean"}
      }
    },
    "transfer": {
      "type": "object",
      "properties": {
        "binary": {"type": "string"},
        "edit_interval": {"type": "integer", "minimum": 1}
      }
    },
    "logging": {
      "type": "object",
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "file": {"type": "string"},
        "max_size": {"type": "integer", "minimum": 0},
        "max_age": {"type": "integer", "minimum": 0},
        "compress": {"type": "boolean"},
        "redaction": {"type": "boolean"}
      }
    },
    "metrics": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "host": {"type": "string"},
        "port": {"type": "integer", "minimum": 1, "maximum": 65535}
      }
    },
    "data_dir": {"type": "string"}
  }
}`

// telegramTokenPattern matches <bot_id>:<token>
var telegramTokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// ValidateTelegramToken validates a Telegram bot token format
func ValidateTelegramToken(token string) error {
	if token == "" {
		return fmt.Errorf("telegram bot token cannot be empty")
	}
	if !telegramTokenPattern.MatchString(token) {
		return fmt.Errorf("invalid Telegram bot token format")
	}
	return nil
}

// ValidateFile validates a config file on disk against the config schema
func ValidateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return ValidateJSON(data)
}

// ValidateJSON validates raw config JSON against the config schema
func ValidateJSON(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("invalid config: %s", errs[0].String())
		}
		return fmt.Errorf("invalid config")
	}

	return nil
}
