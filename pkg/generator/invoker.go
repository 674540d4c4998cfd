package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/z-image-cli/pkg/config"
	"github.com/shouni/z-image-cli/pkg/domain"
	"github.com/shouni/z-image-cli/pkg/pipeline"
)

const (
	// NumInferenceSteps は Turbo モデル用の固定ステップ数です（DiT の forward は8回）。
	NumInferenceSteps = 9
	// GuidanceScale は Turbo モデルでは 0 にします。
	GuidanceScale = 0.0
	Seed          = int64(42)
)

// DefaultLoadOptions は bfloat16 でロードし、low_cpu_mem_usage を無効にします。
var DefaultLoadOptions = pipeline.LoadOptions{
	DType:          pipeline.BFloat16,
	LowCPUMemUsage: false,
}

// Invoker はパイプラインを1度だけ取得して1枚の画像を生成します。
type Invoker struct {
	loader  pipeline.Loader
	modelID string
}

// NewInvoker は Invoker を初期化するのだ。
func NewInvoker(loader pipeline.Loader, modelID string) (*Invoker, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader (pipeline.Loader) is required")
	}
	if modelID == "" {
		return nil, fmt.Errorf("modelID is required")
	}
	return &Invoker{loader: loader, modelID: modelID}, nil
}

// NewRequest は解決済みの設定に固定のサンプリングパラメータを加えて生成要求を作ります。
func NewRequest(cfg config.Config) domain.GenerationRequest {
	return domain.GenerationRequest{
		Prompt:            cfg.Prompt,
		Width:             cfg.Width,
		Height:            cfg.Height,
		NumInferenceSteps: NumInferenceSteps,
		GuidanceScale:     GuidanceScale,
		Seed:              Seed,
	}
}

// Generate はパイプラインをロードし、逐次 CPU オフロードを有効にしてから画像を1枚生成します。
// 失敗はリトライせずそのまま呼び出し元に返します。
func (i *Invoker) Generate(ctx context.Context, cfg config.Config) (*domain.GeneratedImage, error) {
	pipe, err := i.loader.Load(ctx, i.modelID, DefaultLoadOptions)
	if err != nil {
		return nil, fmt.Errorf("パイプラインのロードに失敗しました (%s): %w", i.modelID, err)
	}
	defer func() {
		if err := pipe.Close(); err != nil {
			slog.WarnContext(ctx, "パイプラインのクローズに失敗しました", "error", err)
		}
	}()

	if err := pipe.EnableSequentialCPUOffload(); err != nil {
		return nil, fmt.Errorf("CPUオフロードの設定に失敗しました: %w", err)
	}

	req := NewRequest(cfg)
	slog.InfoContext(ctx, "画像生成を開始します",
		"model", i.modelID, "size", req.Size(), "steps", req.NumInferenceSteps, "seed", req.Seed)

	start := time.Now()
	img, err := pipe.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("画像生成エラー: %w", err)
	}

	slog.InfoContext(ctx, "画像生成が完了しました", "elapsed", time.Since(start).Round(time.Millisecond))
	return img, nil
}
