// internal/board/provider.go
package board

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Provider supplies the static board a game is played on.
type Provider interface {
	Board() (*Board, error)
}

// ClassicProvider serves the built-in 40-square layout.
type ClassicProvider struct{}

func (ClassicProvider) Board() (*Board, error) {
	return New(ClassicDefinition())
}

// FileProvider reads a board definition from a YAML or JSON file on every call.
type FileProvider struct {
	Path string
}

func (p FileProvider) Board() (*Board, error) {
	return LoadFile(p.Path)
}

// LoadFile reads a board definition file. JSON is accepted as it is a subset of YAML.
func LoadFile(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read board file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML/JSON board definition.
func Parse(data []byte) (*Board, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode board definition: %w", err)
	}
	b, err := New(def)
	if err != nil {
		return nil, fmt.Errorf("invalid board definition: %w", err)
	}
	return b, nil
}

// ProviderFromPath returns a FileProvider when path is set, the classic board otherwise.
func ProviderFromPath(path string) Provider {
	if path == "" {
		return ClassicProvider{}
	}
	return FileProvider{Path: path}
}
