package image

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/stvm/vm"
)

// Format identifies how a program file is encoded.
type Format int

const (
	// Binary is the CBOR image written by Marshal.
	Binary Format = iota
	// Listing is the YAML assembly listing read by DecodeListing.
	Listing
)

// FormatOf picks a format from a file name: .yaml and .yml are listings,
// anything else is a binary image.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return Listing
	}
	return Binary
}

// Load reads the program at path in the format its extension names.
func Load(path string) (*vm.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	var prog *vm.Program
	switch FormatOf(path) {
	case Listing:
		prog, err = DecodeListing(bytes.NewReader(data))
	default:
		prog, err = Unmarshal(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("loaded %s: %d classes", path, len(prog.Classes))
	return prog, nil
}

// Save writes prog to path as a binary image.
func Save(path string, prog *vm.Program) error {
	data, err := Marshal(prog)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("image: %w", err)
	}
	log.Infof("wrote %s: %d bytes", path, len(data))
	return nil
}
