package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "udpstress.schema.json"

var fileSchema = jsonschema.MustCompileString(schemaURL, schemaJSON)

// LoadConfig loads a configuration file.
//
// The file format is determined by extension:
//   - .json -> JSON
//   - anything else -> YAML
//
// The document is checked against the embedded JSON Schema before it is
// decoded.
func LoadConfig(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data. The format is chosen from the
// extension of path as in LoadConfig.
func ParseConfig(data []byte, path string) (*File, error) {
	var (
		doc     interface{}
		isJSON  = strings.EqualFold(filepath.Ext(path), ".json")
		decoded File
	)

	if isJSON {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	} else {
		var raw interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
		// Round trip through JSON so the validator sees JSON types.
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if doc == nil {
		return nil, fmt.Errorf("config file %s is empty", path)
	}

	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	if isJSON {
		if err := json.Unmarshal(data, &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode JSON config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode YAML config: %w", err)
		}
	}

	return &decoded, nil
}

// ValidateDocument checks a decoded JSON document against the configuration
// schema. Violations are returned together as ValidationErrors.
func ValidateDocument(doc interface{}) error {
	err := fileSchema.Validate(doc)
	if err == nil {
		return nil
	}

	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	errs := &ValidationErrors{}
	collectSchemaErrors(verr, errs)
	if !errs.HasErrors() {
		errs.Add("", verr.Error())
	}
	return errs
}

// collectSchemaErrors flattens the leaves of a schema validation error tree.
func collectSchemaErrors(err *jsonschema.ValidationError, errs *ValidationErrors) {
	if len(err.Causes) == 0 {
		field := strings.TrimPrefix(strings.ReplaceAll(err.InstanceLocation, "/", "."), ".")
		errs.Add(field, err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, errs)
	}
}
