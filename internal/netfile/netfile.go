// Package netfile loads network descriptions from YAML or JSON files.
package netfile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/dcopf/core/network"
)

// Document mirrors the on-disk layout of a network file.
type Document struct {
	Name       string              `json:"name"`
	Buses      []network.Bus       `json:"buses"`
	Generators []network.Generator `json:"generators"`
	Lines      []network.Line      `json:"lines"`
}

// File is a loaded and validated network.
type File struct {
	Path    string
	Name    string
	Network *network.Network
}

// Load parses the file at path, choosing the parser by extension, and
// validates the network. The name defaults to the file's base name.
func Load(path string) (*File, error) {
	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported network format: %s", ext)
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	var doc Document
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	net, err := network.New(doc.Buses, doc.Generators, doc.Lines)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	name := doc.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &File{Path: path, Name: name, Network: net}, nil
}
