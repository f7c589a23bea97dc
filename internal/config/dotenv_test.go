package config

import (
	"os"
	"path/filepath"
	"testing"
)

// withHome points HOME at a fresh directory and returns ~/.fitmatch inside it.
func withHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	SetPath("")
	t.Cleanup(func() { SetPath("") })
	return filepath.Join(home, ".fitmatch")
}

func TestLoadDotEnv_NotExist(t *testing.T) {
	withHome(t)

	m, err := LoadDotEnv()
	if err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("expected empty map, got %v", m)
	}
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	dir := withHome(t)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	body := "# comment\nA=1\nB=two\nexport C=\"quoted value\"\nD='x'\nbogus\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	m, err := LoadDotEnv()
	if err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if m["A"] != "1" || m["B"] != "two" {
		t.Fatalf("unexpected map: %v", m)
	}
	if m["C"] != "quoted value" || m["D"] != "x" {
		t.Fatalf("quotes not stripped: %v", m)
	}
	if _, ok := m["bogus"]; ok {
		t.Fatalf("line without '=' must be ignored: %v", m)
	}
}

func TestDotEnvPath_FollowsConfigOverride(t *testing.T) {
	withHome(t)
	custom := filepath.Join(t.TempDir(), "alt", "fitmatch.yaml")
	SetPath(custom)

	p, err := DotEnvPath()
	if err != nil {
		t.Fatal(err)
	}
	if p != filepath.Join(filepath.Dir(custom), ".env") {
		t.Fatalf("unexpected dotenv path %s", p)
	}
}

func TestGetConfigValue_EnvOverridesDotEnv(t *testing.T) {
	dir := withHome(t)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("K=fromdotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	v, err := GetConfigValue("K")
	if err != nil {
		t.Fatalf("GetConfigValue: %v", err)
	}
	if v != "fromdotenv" {
		t.Fatalf("expected dotenv value, got %q", v)
	}

	t.Setenv("K", "fromenv")
	v, err = GetConfigValue("K")
	if err != nil {
		t.Fatalf("GetConfigValue: %v", err)
	}
	if v != "fromenv" {
		t.Fatalf("expected env override, got %q", v)
	}
}

func TestEnsureDotEnvTemplate_DoesNotOverwrite(t *testing.T) {
	dir := withHome(t)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("FITMATCH_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDotEnvTemplate(); err != nil {
		t.Fatalf("EnsureDotEnvTemplate: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "FITMATCH_LOG_LEVEL=debug\n" {
		t.Fatalf("template overwrote existing file: %q", string(b))
	}
}

func TestEnsureDotEnvTemplate_CreatesWhenMissing(t *testing.T) {
	dir := withHome(t)
	p := filepath.Join(dir, ".env")

	if err := EnsureDotEnvTemplate(); err != nil {
		t.Fatalf("EnsureDotEnvTemplate: %v", err)
	}
	m, err := LoadDotEnv()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m[EnvStorePath]; !ok {
		t.Fatalf("template at %s is missing %s: %v", p, EnvStorePath, m)
	}
}
