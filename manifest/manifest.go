// Package manifest handles stvm.toml run configuration.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/chazu/stvm/vm"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "stvm.toml"

// Manifest represents a stvm.toml configuration.
type Manifest struct {
	Program Program   `toml:"program"`
	VM      VMConfig  `toml:"vm"`
	Log     LogConfig `toml:"log"`

	// Dir is the directory containing the stvm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Program names the image to run and optionally overrides its entry point.
type Program struct {
	Image         string `toml:"image"`
	EntryClass    string `toml:"entry-class,omitempty"`
	EntrySelector string `toml:"entry-selector,omitempty"`
}

// VMConfig holds interpreter limits.
type VMConfig struct {
	Trace     bool `toml:"trace"`
	MaxDepth  int  `toml:"max-depth"`
	StackSize int  `toml:"stack-size"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file,omitempty"`
}

// Default returns a manifest with every default applied.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Program.Image == "" {
		m.Program.Image = "main.yaml"
	}
	if m.VM.MaxDepth <= 0 {
		m.VM.MaxDepth = vm.DefaultMaxDepth
	}
	if m.VM.StackSize <= 0 {
		m.VM.StackSize = vm.DefaultStackSize
	}
}

// Load parses the stvm.toml file in dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m.applyDefaults()

	log.Infof("loaded %s", path)
	return &m, nil
}

// FindAndLoad walks up from startDir to find a stvm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			log.Debugf("no %s above %s", FileName, startDir)
			return nil, nil
		}
		dir = parent
	}
}

// Write stores m as dir/stvm.toml. An existing file is left alone.
func Write(dir string, m *Manifest) error {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s already exists", path)
		}
		return err
	}
	if err := toml.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return f.Close()
}

// ImagePath returns the program image path, resolved against Dir.
func (m *Manifest) ImagePath() string {
	if filepath.IsAbs(m.Program.Image) || m.Dir == "" {
		return m.Program.Image
	}
	return filepath.Join(m.Dir, m.Program.Image)
}

// VMOptions returns interpreter options for this configuration.
func (m *Manifest) VMOptions() vm.Options {
	return vm.Options{
		Trace:     m.VM.Trace,
		MaxDepth:  m.VM.MaxDepth,
		StackSize: m.VM.StackSize,
	}
}

// ApplyEntry overrides prog's entry point with any configured one.
func (m *Manifest) ApplyEntry(prog *vm.Program) {
	if m.Program.EntryClass != "" {
		prog.Entry.Class = m.Program.EntryClass
	}
	if m.Program.EntrySelector != "" {
		prog.Entry.Selector = m.Program.EntrySelector
	}
}
