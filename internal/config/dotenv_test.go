package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnvSetsUnsetVariables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	body := "FOO=bar\n# comment\n\nBAZ=\"quoted value\"\nQUX=trailing # inline comment\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	os.Unsetenv("FOO")
	os.Unsetenv("BAZ")
	os.Unsetenv("QUX")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("FOO"); got != "bar" {
		t.Fatalf("FOO = %q, want bar", got)
	}
	if got := os.Getenv("BAZ"); got != "quoted value" {
		t.Fatalf("BAZ = %q, want the unquoted value", got)
	}
	if got := os.Getenv("QUX"); got != "trailing" {
		t.Fatalf("QUX = %q, want the inline comment stripped", got)
	}
}

func TestLoadDotEnvDoesNotOverrideExistingVar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("EXISTING=fromfile\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("EXISTING", "fromenv")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("EXISTING"); got != "fromenv" {
		t.Fatalf("EXISTING = %q, want the pre-existing value preserved", got)
	}
}

func TestLoadDotEnvMissingFileIsNotAnError(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("LoadDotEnv on a missing file should be a no-op, got %v", err)
	}
}

func TestLoadDotEnvExportPrefixIsStripped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("export SHELL_STYLE=yes\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	os.Unsetenv("SHELL_STYLE")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("SHELL_STYLE"); got != "yes" {
		t.Fatalf("SHELL_STYLE = %q, want yes", got)
	}
}
