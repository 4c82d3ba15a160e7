package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/pkg/contracts"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-config", "etl.yaml", "-tickers", "aapl,msft", "-report"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "etl.yaml", opts.configPath)
	assert.Equal(t, "aapl,msft", opts.tickers)
	assert.True(t, opts.printReport)
	assert.False(t, opts.showVersion)

	_, err = parseFlags([]string{"-unknown"}, io.Discard)
	assert.Error(t, err)
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), []string{"-version"}, &out)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out.String(), contracts.Version)
}

func TestRun_BadUsage(t *testing.T) {
	assert.Equal(t, exitUsage, run(context.Background(), []string{"-nope"}, io.Discard))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marketpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sink:\n  targets: [csv]\n  output_dir: "+dir+"\n"), 0o644))

	cfg, err := loadConfig(options{configPath: path, tickers: " aapl,brk-b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "BRK-B"}, cfg.Source.Tickers)

	_, err = loadConfig(options{configPath: path, tickers: "AAPL,aapl"})
	assert.Error(t, err)

	_, err = loadConfig(options{configPath: filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}
