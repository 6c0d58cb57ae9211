package guardrails

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/voicecall/internal/domain"
)

// File is the on-disk seed format. JSON documents parse as YAML, so both work.
type File struct {
	Guardrails []domain.Guardrail `yaml:"guardrails" json:"guardrails"`
}

// ParseFile decodes a guardrail document.
func ParseFile(data []byte) ([]domain.Guardrail, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse guardrails: %w", err)
	}
	return f.Guardrails, nil
}

// LoadFile reads and decodes a guardrail document from path.
func LoadFile(path string) ([]domain.Guardrail, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guardrails file: %w", err)
	}
	return ParseFile(data)
}
