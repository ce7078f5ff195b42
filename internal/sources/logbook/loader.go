package logbook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of a logbook seed file
type Loader struct {
	filePath string
}

// NewLoader creates a new logbook loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads and parses the seed file. Unknown keys are rejected so typos
// in hand-written files surface instead of silently dropping data.
func (l *Loader) Load() (File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return File{}, fmt.Errorf("failed to read logbook file: %w", err)
	}

	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("failed to parse logbook yaml: %w", err)
	}

	return file, nil
}
