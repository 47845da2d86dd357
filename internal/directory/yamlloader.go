package directory

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the top-level structure of an Opora directory YAML file.
//
// Example:
//
//	directory:
//	  name: "Social services of Ukraine"
//	  updated: "2026-08-01"
//	organizations:
//	  - name: "Dim Dobra"
//	    category: humanitarian
//	    region: "Lvivska"
//	    status: active
type File struct {
	Directory     Meta           `yaml:"directory"`
	Organizations []Organization `yaml:"organizations"`
}

// Meta holds top-level metadata for a directory file.
type Meta struct {
	// Name is the directory's display name.
	Name string `yaml:"name"`

	// Description is a free-text summary of the directory.
	Description string `yaml:"description"`

	// Updated is the date the data was last revised, as written in the file.
	Updated string `yaml:"updated"`
}

// LoadFile reads and parses a directory YAML file from disk.
// Returns a descriptive error if the file cannot be opened or parsed.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("directory: open file %q: %w", path, err)
	}
	defer f.Close()

	df, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("directory: parse file %q: %w", path, err)
	}
	return df, nil
}

// LoadFromReader parses directory YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadFromReader(r io.Reader) (*File, error) {
	var df File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown top-level keys to catch typos
	if err := dec.Decode(&df); err != nil {
		return nil, fmt.Errorf("directory: decode yaml: %w", err)
	}
	return &df, nil
}

// Import loads all organizations from a parsed [File] into store.
// Returns the number of organizations successfully imported.
// An error from the store aborts the import and returns the count so far.
func Import(ctx context.Context, store Store, file *File) (int, error) {
	if file == nil {
		return 0, fmt.Errorf("directory: file must not be nil")
	}
	n, err := store.BulkImport(ctx, file.Organizations)
	if err != nil {
		return n, fmt.Errorf("directory: import %q: %w", file.Directory.Name, err)
	}
	return n, nil
}
