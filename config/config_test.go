package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/garnet/vm"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "garnet.toml", `
[runtime]
safe-level = 1
max-call-depth = 500
alias-root-fallback = true

[log]
verbosity = 2
path = "garnet.log"

[server]
addr = ":9000"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Runtime.SafeLevel != 1 {
		t.Errorf("safe-level = %d, want 1", c.Runtime.SafeLevel)
	}
	if c.Runtime.MaxCallDepth != 500 {
		t.Errorf("max-call-depth = %d, want 500", c.Runtime.MaxCallDepth)
	}
	if !c.Runtime.AliasRootFallback {
		t.Error("alias-root-fallback = false, want true")
	}
	if c.Log.Verbosity != 2 || c.Log.Path != "garnet.log" {
		t.Errorf("log = %+v", c.Log)
	}
	if c.Server.Addr != ":9000" {
		t.Errorf("server addr = %q, want :9000", c.Server.Addr)
	}
	if filepath.Base(c.Path) != "garnet.toml" || !filepath.IsAbs(c.Path) {
		t.Errorf("Path = %q", c.Path)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "garnet.yaml", `
runtime:
  safe-level: 2
log:
  verbosity: 1
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Runtime.SafeLevel != 2 {
		t.Errorf("safe-level = %d, want 2", c.Runtime.SafeLevel)
	}
	if c.Runtime.MaxCallDepth != vm.DefaultMaxCallDepth {
		t.Errorf("max-call-depth = %d, want default", c.Runtime.MaxCallDepth)
	}
	if c.Server.Addr != DefaultAddr {
		t.Errorf("server addr = %q, want %q", c.Server.Addr, DefaultAddr)
	}
}

func TestTOMLPreferredOverYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "garnet.yaml", "runtime:\n  safe-level: 3\n")
	writeFile(t, dir, "garnet.toml", "[runtime]\nsafe-level = 1\n")

	c, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if c.Runtime.SafeLevel != 1 {
		t.Errorf("safe-level = %d, want 1 from garnet.toml", c.Runtime.SafeLevel)
	}
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "garnet.yml", "")

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	def := Default()
	if c.Runtime != def.Runtime || c.Log != def.Log || c.Server != def.Server {
		t.Errorf("empty file = %+v, want defaults %+v", c, def)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"bad toml", "garnet.toml", "[runtime\n", "parse error"},
		{"unknown toml key", "garnet.toml", "[runtime]\nspeed = 3\n", "unknown key runtime.speed"},
		{"unknown yaml key", "garnet.yaml", "runtime:\n  speed: 3\n", "parse error"},
		{"safe level too high", "garnet.toml", "[runtime]\nsafe-level = 5\n", "safe-level"},
		{"negative depth", "garnet.yaml", "runtime:\n  max-call-depth: -1\n", "max-call-depth"},
		{"negative verbosity", "garnet.toml", "[log]\nverbosity = -2\n", "verbosity"},
		{"unknown format", "garnet.json", "{}", "unsupported config format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)
			_, err := LoadFile(path)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}

	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load of an empty directory should fail")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "garnet.toml", "[server]\naddr = \"localhost:1\"\n")
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c == nil {
		t.Fatal("FindAndLoad returned nil, want config from the parent")
	}
	if c.Server.Addr != "localhost:1" {
		t.Errorf("addr = %q", c.Server.Addr)
	}
}

func TestFindAndLoadNone(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	// A temp dir could sit below a stray garnet.toml; only a nil result or
	// a file outside the temp dir is acceptable.
	if c != nil && strings.HasPrefix(c.Path, os.TempDir()) {
		t.Errorf("unexpected config %s", c.Path)
	}
}

func TestRuntimeOptions(t *testing.T) {
	c := Default()
	c.Runtime.SafeLevel = 3
	c.Runtime.AliasRootFallback = true
	opts := c.RuntimeOptions()
	if opts.SafeLevel != 3 || !opts.AliasRootFallback {
		t.Errorf("opts = %+v", opts)
	}
	if opts.MaxCallDepth != vm.DefaultMaxCallDepth {
		t.Errorf("MaxCallDepth = %d, want default", opts.MaxCallDepth)
	}

	c.Runtime.MaxCallDepth = 64
	rt := vm.NewRuntime(c.RuntimeOptions())
	if rt.SafeLevel() != 3 {
		t.Errorf("runtime safe level = %d, want 3", rt.SafeLevel())
	}
	if rt.Options().MaxCallDepth != 64 {
		t.Errorf("runtime MaxCallDepth = %d, want 64", rt.Options().MaxCallDepth)
	}
}
