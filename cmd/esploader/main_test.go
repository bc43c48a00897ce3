package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-esploader/catalog"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "esploader dev (commit none, built unknown)\n", out.String())
}

func TestImagesCommand(t *testing.T) {
	color.NoColor = true

	dir := t.TempDir()
	for _, slot := range catalog.DefaultLayouts()[catalog.VariantESP32C6].Slots {
		path := filepath.Join(dir, "esp32c6", filepath.FromSlash(slot.File))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, make([]byte, 16), 0o644))
	}
	cfgPath := filepath.Join(dir, "esploader.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("images:\n  dir: "+dir+"\n"), 0o644))

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"images", "--config", cfgPath})

	require.NoError(t, root.Execute())
	got := out.String()
	assert.Contains(t, got, "ESP32-C2 (reserved)")
	assert.Contains(t, got, "ESP32-C6 (6 images, 96 bytes)")
	assert.Contains(t, got, "0x060000")
	assert.Contains(t, got, "esp-at stack")
}

func TestImagesCommandMissingFiles(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "esploader.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("images:\n  dir: "+dir+"\n"), 0o644))

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"images", "--config", cfgPath})

	assert.ErrorContains(t, root.Execute(), "load images")
}
