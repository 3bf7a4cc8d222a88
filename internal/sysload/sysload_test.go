package sysload

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcSamplerRatio(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loadavg")
	err := os.WriteFile(path, []byte("2.50 1.80 1.20 3/412 12345\n"), 0o644)
	assert.NoError(t, err)

	s := &ProcSampler{path: path}
	want := 2.50 / float64(runtime.NumCPU())
	assert.InDelta(t, want, s.Ratio(), 1e-9)
}

func TestProcSamplerMissingFile(t *testing.T) {
	s := &ProcSampler{path: filepath.Join(t.TempDir(), "nope")}
	assert.Zero(t, s.Ratio())
}

func TestProcSamplerGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loadavg")
	assert.NoError(t, os.WriteFile(path, []byte("not a number"), 0o644))
	s := &ProcSampler{path: path}
	assert.Zero(t, s.Ratio())
}

func TestFixed(t *testing.T) {
	assert.Equal(t, 0.9, Fixed(0.9).Ratio())
}
