package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 3, cfg.Pages)
	assert.Equal(t, Duration(30*time.Second), cfg.Timeout)
	assert.Equal(t, "output.json", cfg.Output)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
url: https://sf.gov/
prompt: "We're making a chatbot for the HR in San Francisco."
selector: ".sfgov-container-item p"
pages: 5
timeout: 45s
embedding:
  endpoint: http://localhost:8080/v1/embeddings
  model: all-minilm
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://sf.gov/", cfg.URL)
	assert.Equal(t, 5, cfg.Pages)
	assert.Equal(t, Duration(45*time.Second), cfg.Timeout)
	assert.Equal(t, "output.json", cfg.Output, "unset keys keep their defaults")
	assert.Equal(t, "all-minilm", cfg.Embedding.Model)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
