package envconf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type nested struct {
	Timeout time.Duration `env:"ENVCONF_TEST_TIMEOUT" envDefault:"2s"`
}

type sample struct {
	Name  string `env:"ENVCONF_TEST_NAME"`
	Count int    `env:"ENVCONF_TEST_COUNT" envDefault:"7"`
	Inner nested
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVCONF_TEST_NAME", "ledger")

	var cfg sample
	err := Load(&cfg)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Name != "ledger" || cfg.Count != 7 || cfg.Inner.Timeout != 2*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoad_DotenvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	err := os.WriteFile(path, []byte("ENVCONF_TEST_NAME=fromfile\nENVCONF_TEST_COUNT=3\n"), 0o600)
	if err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	t.Setenv("ENVCONF_TEST_NAME", "fromenv")
	t.Setenv("ENVCONF_TEST_COUNT", "")
	os.Unsetenv("ENVCONF_TEST_COUNT")

	var cfg sample
	err = Load(&cfg, path, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Name != "fromenv" {
		t.Fatalf("name: want fromenv, got %q", cfg.Name)
	}
	if cfg.Count != 3 {
		t.Fatalf("count: want 3, got %d", cfg.Count)
	}
}

func TestLoad_InvalidDestination(t *testing.T) {
	t.Parallel()

	var cfg sample
	for _, dst := range []any{nil, cfg, new(int)} {
		err := Load(dst)
		if !errors.Is(err, ErrInvalidDestination) {
			t.Fatalf("dst %T: want ErrInvalidDestination, got %v", dst, err)
		}
	}
}

func TestLoad_BadValue(t *testing.T) {
	t.Setenv("ENVCONF_TEST_COUNT", "not-a-number")

	var cfg sample
	err := Load(&cfg)
	if err == nil {
		t.Fatal("expected parse error")
	}
}
