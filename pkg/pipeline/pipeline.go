package pipeline

import (
	"context"
	"errors"

	"github.com/shouni/z-image-cli/pkg/domain"
)

// DType はバックエンドにロードさせる重みの数値精度です。
type DType string

const (
	BFloat16 DType = "bfloat16"
	Float16  DType = "float16"
	Float32  DType = "float32"
)

// OffloadMode はモデル重みのオフロード方式です。
type OffloadMode string

const (
	OffloadNone       OffloadMode = ""
	OffloadSequential OffloadMode = "sequential"
)

var (
	ErrModelNotFound = errors.New("model not found on backend")
	ErrNoImage       = errors.New("no image data in response")
)

// LoadOptions はパイプラインのロード時に渡す精度とメモリの設定です。
type LoadOptions struct {
	DType          DType
	LowCPUMemUsage bool
}

// Loader はモデルIDを指定してパイプラインのハンドルを取得します。
type Loader interface {
	Load(ctx context.Context, modelID string, opts LoadOptions) (Pipeline, error)
}

// Pipeline は外部の推論バックエンドが保持するモデルへの不透明なハンドルです。
type Pipeline interface {
	// EnableSequentialCPUOffload は逐次的な CPU オフロードを有効にします。
	EnableSequentialCPUOffload() error
	// Generate は1枚の画像を同期的に生成します。
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GeneratedImage, error)
	Close() error
}
