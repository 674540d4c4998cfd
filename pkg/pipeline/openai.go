package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/shouni/z-image-cli/pkg/domain"
)

// ImageClient は OpenAI 互換の画像生成エンドポイントを呼び出します。
// *openai.Client がこれを満たします。
type ImageClient interface {
	CreateImage(ctx context.Context, request openai.ImageRequest) (openai.ImageResponse, error)
}

// OpenAILoader は LocalAI などの OpenAI 互換サーバー上のモデルを扱います。
type OpenAILoader struct {
	client ImageClient
}

func NewOpenAILoader(client ImageClient) (*OpenAILoader, error) {
	if client == nil {
		return nil, fmt.Errorf("client (ImageClient) is required")
	}
	return &OpenAILoader{client: client}, nil
}

// Load はハンドルを返すだけで、モデルのロードはサーバー側に任せます。
func (l *OpenAILoader) Load(ctx context.Context, modelID string, opts LoadOptions) (Pipeline, error) {
	if opts.DType != "" {
		slog.DebugContext(ctx, "OpenAI 互換APIでは精度を指定できません", "dtype", opts.DType)
	}
	return &OpenAIPipeline{client: l.client, model: modelID}, nil
}

type OpenAIPipeline struct {
	client ImageClient
	model  string
}

// EnableSequentialCPUOffload はサーバー側の設定に依存するため何もしません。
func (p *OpenAIPipeline) EnableSequentialCPUOffload() error {
	slog.Debug("OpenAI 互換APIではオフロード設定を送信できません")
	return nil
}

func (p *OpenAIPipeline) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GeneratedImage, error) {
	slog.DebugContext(ctx, "OpenAI 互換APIはサンプリング設定を受け付けないため送信しません",
		"steps", req.NumInferenceSteps, "guidance_scale", req.GuidanceScale, "seed", req.Seed)

	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          p.model,
		N:              1,
		Size:           req.Size(),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI 画像生成エラー: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrNoImage
	}

	data, err := decodeB64(resp.Data[0].B64JSON)
	if err != nil {
		return nil, err
	}
	return toGeneratedImage(ctx, data, req)
}

func (p *OpenAIPipeline) Close() error { return nil }
