// Package loader feeds rule definitions into a ruleengine.Engine from a
// local file (with hot reload) or from the Redis snapshot store.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rafaeljc/switchboard/internal/ruleengine"
)

// Engine is the part of ruleengine.Engine a loader drives.
type Engine interface {
	Reload(def ruleengine.Definition) (*ruleengine.Generation, error)
	Current() *ruleengine.Generation
}

// ErrEmptyDefinition is returned for files with no document.
var ErrEmptyDefinition = errors.New("definition file is empty")

// LoadFile reads a YAML or JSON definition file. JSON is accepted because
// it is valid YAML; unknown keys are rejected in both.
func LoadFile(path string) (ruleengine.Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ruleengine.Definition{}, fmt.Errorf("failed to read definition file: %w", err)
	}
	def, err := Decode(bytes.NewReader(raw))
	if err != nil {
		return ruleengine.Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Decode parses one YAML or JSON definition document.
func Decode(r io.Reader) (ruleengine.Definition, error) {
	var def ruleengine.Definition

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return def, ErrEmptyDefinition
		}
		return def, fmt.Errorf("failed to decode definition: %w", err)
	}
	return def, nil
}
