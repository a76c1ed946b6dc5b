package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/stvm/vm"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[program]
image = "build/app.img"
entry-class = "App"
entry-selector = "start"

[vm]
trace = true
max-depth = 200
stack-size = 16

[log]
verbosity = 2
file = "stvm.log"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Program.Image != "build/app.img" {
		t.Errorf("image = %q, want build/app.img", m.Program.Image)
	}
	if m.Program.EntryClass != "App" || m.Program.EntrySelector != "start" {
		t.Errorf("entry = %s>>%s, want App>>start", m.Program.EntryClass, m.Program.EntrySelector)
	}
	if !m.VM.Trace || m.VM.MaxDepth != 200 || m.VM.StackSize != 16 {
		t.Errorf("vm = %+v", m.VM)
	}
	if m.Log.Verbosity != 2 || m.Log.File != "stvm.log" {
		t.Errorf("log = %+v", m.Log)
	}
	if want := filepath.Join(m.Dir, "build", "app.img"); m.ImagePath() != want {
		t.Errorf("image path = %q, want %q", m.ImagePath(), want)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[vm]\ntrace = false\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Program.Image != "main.yaml" {
		t.Errorf("default image = %q, want main.yaml", m.Program.Image)
	}
	if m.VM.MaxDepth != vm.DefaultMaxDepth || m.VM.StackSize != vm.DefaultStackSize {
		t.Errorf("default vm = %+v", m.VM)
	}
	if m.Log.Verbosity != 0 || m.Log.File != "" {
		t.Errorf("default log = %+v", m.Log)
	}
	if *Default() != (Manifest{Program: m.Program, VM: m.VM, Log: m.Log}) {
		t.Errorf("Default() = %+v", Default())
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[vm\n", "parse error"},
		{"wrong type", "[vm]\nmax-depth = \"deep\"\n", "parse error"},
		{"unknown key", "[vm]\nturbo = true\n", "unknown key vm.turbo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}

	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load of an empty directory succeeded")
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[program]\nimage = \"found.yaml\"\n")

	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Program.Image != "found.yaml" {
		t.Errorf("image = %q, want found.yaml", m.Program.Image)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no stvm.toml exists")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := Default()
	m.Program.EntryClass = "App"
	m.VM.Trace = true

	if err := Write(dir, m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Program != m.Program || loaded.VM != m.VM || loaded.Log != m.Log {
		t.Errorf("loaded %+v, wrote %+v", loaded, m)
	}

	if err := Write(dir, m); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second Write err = %v", err)
	}
}

func TestVMOptions(t *testing.T) {
	m := Default()
	m.VM.Trace = true
	m.VM.MaxDepth = 7

	opts := m.VMOptions()
	if !opts.Trace || opts.MaxDepth != 7 || opts.StackSize != vm.DefaultStackSize {
		t.Errorf("options = %+v", opts)
	}
}

func TestApplyEntry(t *testing.T) {
	prog := &vm.Program{Entry: vm.EntryPoint{Class: "Main", Selector: "main"}}

	m := Default()
	m.ApplyEntry(prog)
	if prog.Entry.Class != "Main" || prog.Entry.Selector != "main" {
		t.Errorf("empty config changed entry to %+v", prog.Entry)
	}

	m.Program.EntrySelector = "run"
	m.ApplyEntry(prog)
	if prog.Entry.Class != "Main" || prog.Entry.Selector != "run" {
		t.Errorf("entry = %+v, want Main>>run", prog.Entry)
	}
}

func TestImagePathAbsolute(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "x.img")
	m := &Manifest{Dir: "/somewhere", Program: Program{Image: abs}}
	if m.ImagePath() != abs {
		t.Errorf("ImagePath = %q, want %q", m.ImagePath(), abs)
	}
}
