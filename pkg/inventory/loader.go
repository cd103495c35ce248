package inventory

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/fleetplan/fleetplan/pkg/engine"
)

var validate = validator.New()

// Load reads and validates an inventory file.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates an inventory document.
func Parse(data []byte) ([]Record, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, engine.NewValidationError("malformed inventory document", err)
	}
	if err := validate.Struct(file); err != nil {
		return nil, engine.NewValidationError("invalid inventory record", err)
	}
	seen := make(map[string]bool, len(file.Instances))
	for _, rec := range file.Instances {
		if seen[rec.Instance] {
			return nil, engine.NewValidationError(
				fmt.Sprintf("duplicate instance %q in inventory", rec.Instance), nil).
				WithCode(engine.ErrCodeInventorySkew)
		}
		seen[rec.Instance] = true
	}
	return file.Instances, nil
}
