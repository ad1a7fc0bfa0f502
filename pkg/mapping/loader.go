package mapping

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile loads and parses a YAML mapping file from the given path.
func LoadFile(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file %s: %w", path, err)
	}

	return Load(data)
}

// Load parses YAML data into a Mapping and validates it.
func Load(data []byte) (*Mapping, error) {
	var m Mapping

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse mapping YAML: %w", err)
	}

	applyDefaults(&m)

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// applyDefaults fills in default values for optional fields.
func applyDefaults(m *Mapping) {
	if m.Version == "" {
		m.Version = DefaultVersion
	}
}

// Save serializes a Mapping to YAML. The output is canonical: saving a loaded
// document again yields the same bytes.
func Save(m *Mapping) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("mapping is nil")
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to marshal mapping: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal mapping: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes a Mapping to the given path.
func WriteFile(m *Mapping, path string) error {
	data, err := Save(m)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write mapping file %s: %w", path, err)
	}

	return nil
}
