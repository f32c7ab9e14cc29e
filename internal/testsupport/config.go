package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"gnssprep/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The staging and state directories exist; the output root does not.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.OutputRoot = filepath.Join(base, "output")
	cfgVal.Tools.Decompressor = "CRX2RNX"
	cfgVal.Tools.ConstellationFilter = "teqc"
	cfgVal.Split.Views = config.DefaultViews()
	cfgVal.Workers.Count = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithTransactionalSplit enables transactional split commits.
func WithTransactionalSplit() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Split.Transactional = true
	}
}

// WithHistoryDisabled turns off the run ledger.
func WithHistoryDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// stubDecompressor mimics CRX2RNX: it writes the .yyo sibling in the working
// directory and fails on inputs containing CORRUPT.
const stubDecompressor = `#!/bin/sh
for last; do :; done
name=$(basename "$last")
if grep -q CORRUPT "$last"; then
  echo "CRX2RNX: bad header in $name" >&2
  exit 1
fi
case "$name" in
  *d) out="${name%d}o" ;;
  *D) out="${name%D}O" ;;
  *) echo "unsupported file $name" >&2; exit 2 ;;
esac
cp "$last" "$out"
`

// stubFilter mimics teqc: it writes the flags and the input to stdout and
// fails on inputs containing BADSPLIT.
const stubFilter = `#!/bin/sh
for last; do :; done
if grep -q BADSPLIT "$last"; then
  echo "teqc: cannot parse $last" >&2
  exit 1
fi
echo "filtered $*"
cat "$last"
`

// WithStubbedBinaries writes stub CRX2RNX and teqc scripts, points the config
// at them and prepends their directory to PATH.
func WithStubbedBinaries() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		stubs := map[string]string{
			"CRX2RNX": stubDecompressor,
			"teqc":    stubFilter,
		}
		for name, script := range stubs {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.cfg.Tools.Decompressor = filepath.Join(binDir, "CRX2RNX")
		b.cfg.Tools.ConstellationFilter = filepath.Join(binDir, "teqc")

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
