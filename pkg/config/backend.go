package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendDiffusers = "diffusers"
	BackendOpenAI    = "openai"
	BackendGemini    = "gemini"

	DefaultEndpoint    = "http://localhost:8080"
	DefaultModelID     = "Tongyi-MAI/Z-Image-Turbo"
	DefaultGeminiModel = "imagen-4.0-generate-001"
)

var ErrUnknownBackend = errors.New("unknown backend")

// Backend は推論バックエンドへの接続設定です。
type Backend struct {
	Kind     string        `yaml:"backend"`
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"` // 0 はタイムアウトなし
}

// LoadBackend は .env、YAML ファイル（path が空なら省略）、環境変数の順で設定を重ねて読み込みます。
func LoadBackend(path string) (Backend, error) {
	// .env が無いのは正常
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Backend{}, fmt.Errorf(".env の読み込みに失敗しました: %w", err)
	}

	b := Backend{Kind: BackendDiffusers}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Backend{}, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
		}
		if err := yaml.Unmarshal(data, &b); err != nil {
			return Backend{}, fmt.Errorf("設定ファイルの解析に失敗しました: %w", err)
		}
	}

	overrideFromEnv(&b)
	return b, b.applyDefaults()
}

func overrideFromEnv(b *Backend) {
	if v := os.Getenv("ZIMAGE_BACKEND"); v != "" {
		b.Kind = v
	}
	if v := os.Getenv("ZIMAGE_ENDPOINT"); v != "" {
		b.Endpoint = v
	}
	if v := os.Getenv("ZIMAGE_MODEL"); v != "" {
		b.Model = v
	}
	if v := os.Getenv("ZIMAGE_API_KEY"); v != "" {
		b.APIKey = v
	}
}

func (b *Backend) applyDefaults() error {
	if b.Kind == "" {
		b.Kind = BackendDiffusers
	}

	switch b.Kind {
	case BackendDiffusers:
		if b.Endpoint == "" {
			b.Endpoint = DefaultEndpoint
		}
		if b.Model == "" {
			b.Model = DefaultModelID
		}
	case BackendOpenAI:
		if b.Endpoint == "" {
			b.Endpoint = DefaultEndpoint + "/v1"
		}
		if b.Model == "" {
			b.Model = DefaultModelID
		}
		if b.APIKey == "" {
			b.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case BackendGemini:
		if b.Model == "" {
			b.Model = DefaultGeminiModel
		}
		if b.APIKey == "" {
			b.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, b.Kind)
	}
	return nil
}
