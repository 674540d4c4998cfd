package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearBackendEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"ZIMAGE_BACKEND", "ZIMAGE_ENDPOINT", "ZIMAGE_MODEL", "ZIMAGE_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestLoadBackend(t *testing.T) {
	t.Run("設定なしの場合は diffusers のデフォルト", func(t *testing.T) {
		clearBackendEnv(t)

		b, err := LoadBackend("")

		require.NoError(t, err)
		assert.Equal(t, BackendDiffusers, b.Kind)
		assert.Equal(t, DefaultEndpoint, b.Endpoint)
		assert.Equal(t, DefaultModelID, b.Model)
		assert.Zero(t, b.Timeout)
	})

	t.Run("YAMLファイルから読み込む", func(t *testing.T) {
		clearBackendEnv(t)
		path := filepath.Join(t.TempDir(), "zimage.yaml")
		yml := "backend: openai\nendpoint: http://gpu-box:9000/v1\napi_key: sk-test\ntimeout: 90s\n"
		require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

		b, err := LoadBackend(path)

		require.NoError(t, err)
		assert.Equal(t, BackendOpenAI, b.Kind)
		assert.Equal(t, "http://gpu-box:9000/v1", b.Endpoint)
		assert.Equal(t, "sk-test", b.APIKey)
		assert.Equal(t, DefaultModelID, b.Model)
		assert.Equal(t, 90*time.Second, b.Timeout)
	})

	t.Run("環境変数がYAMLより優先される", func(t *testing.T) {
		clearBackendEnv(t)
		path := filepath.Join(t.TempDir(), "zimage.yaml")
		require.NoError(t, os.WriteFile(path, []byte("backend: openai\n"), 0o644))
		t.Setenv("ZIMAGE_BACKEND", "gemini")
		t.Setenv("GEMINI_API_KEY", "g-key")

		b, err := LoadBackend(path)

		require.NoError(t, err)
		assert.Equal(t, BackendGemini, b.Kind)
		assert.Equal(t, DefaultGeminiModel, b.Model)
		assert.Equal(t, "g-key", b.APIKey)
	})

	t.Run("未知のバックエンドはエラー", func(t *testing.T) {
		clearBackendEnv(t)
		t.Setenv("ZIMAGE_BACKEND", "torch")

		_, err := LoadBackend("")

		assert.ErrorIs(t, err, ErrUnknownBackend)
	})

	t.Run("存在しない設定ファイルはエラー", func(t *testing.T) {
		clearBackendEnv(t)

		_, err := LoadBackend(filepath.Join(t.TempDir(), "nope.yaml"))

		assert.Error(t, err)
	})
}
