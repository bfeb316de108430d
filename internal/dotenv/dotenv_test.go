package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileMissingIsNoop(t *testing.T) {
	if err := LoadFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
}

func TestLoadFileParsesAndPreservesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# local overrides\n" +
		"PLAIN=value\n" +
		"QUOTED='with spaces'\n" +
		"export EXPORTED=yes\n" +
		"ALREADY_SET=file\n" +
		"not-a-pair\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("ALREADY_SET", "env")
	for _, key := range []string{"PLAIN", "QUOTED", "EXPORTED"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if err := LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := os.Getenv("PLAIN"); got != "value" {
		t.Errorf("PLAIN = %q", got)
	}
	if got := os.Getenv("QUOTED"); got != "with spaces" {
		t.Errorf("QUOTED = %q", got)
	}
	if got := os.Getenv("EXPORTED"); got != "yes" {
		t.Errorf("EXPORTED = %q", got)
	}
	if got := os.Getenv("ALREADY_SET"); got != "env" {
		t.Errorf("ALREADY_SET = %q, want environment value kept", got)
	}
}
