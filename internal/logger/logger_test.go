package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsValidate(t *testing.T) {
	opts := NewOptions()
	assert.Empty(t, opts.Validate())

	opts.Level = "loud"
	opts.Format = "xml"
	opts.OutputPaths = nil
	assert.Len(t, opts.Validate(), 3)
}

func TestAddFlagsOverridesDefaults(t *testing.T) {
	opts := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--log.level=debug", "--log.format=console"}))
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, "console", opts.Format)
}

func TestNewWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authd.log")
	opts := NewOptions()
	opts.OutputPaths = []string{path}

	log, err := New(opts)
	require.NoError(t, err)
	log.Info("hello")
	log.Debug("hidden")
	_ = log.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, `"msg":"hello"`)
	assert.Contains(t, out, `"ts":`)
	assert.False(t, strings.Contains(out, "hidden"))
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	opts := NewOptions()
	opts.Level = "loud"
	_, err := New(opts)
	assert.Error(t, err)
}
