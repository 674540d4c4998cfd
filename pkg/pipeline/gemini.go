package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"google.golang.org/genai"

	"github.com/shouni/z-image-cli/pkg/domain"
)

// ImageModels は Imagen による画像生成を行います。
// *genai.Models がこれを満たします。
type ImageModels interface {
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

var supportedAspectRatios = []struct {
	label string
	ratio float64
}{
	{"1:1", 1},
	{"3:4", 3.0 / 4.0},
	{"4:3", 4.0 / 3.0},
	{"9:16", 9.0 / 16.0},
	{"16:9", 16.0 / 9.0},
}

// GeminiLoader は Imagen モデルを扱います。
// Gemini API はシードとガイダンスを受け付けないため、Vertex AI のときだけ送信します。
type GeminiLoader struct {
	models ImageModels
	vertex bool
}

func NewGeminiLoader(models ImageModels, vertex bool) (*GeminiLoader, error) {
	if models == nil {
		return nil, fmt.Errorf("models (ImageModels) is required")
	}
	return &GeminiLoader{models: models, vertex: vertex}, nil
}

func (l *GeminiLoader) Load(ctx context.Context, modelID string, opts LoadOptions) (Pipeline, error) {
	return &GeminiPipeline{models: l.models, model: modelID, vertex: l.vertex}, nil
}

type GeminiPipeline struct {
	models ImageModels
	model  string
	vertex bool
}

func (p *GeminiPipeline) EnableSequentialCPUOffload() error { return nil }

func (p *GeminiPipeline) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GeneratedImage, error) {
	cfg := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    nearestAspectRatio(req.Width, req.Height),
		OutputMIMEType: "image/png",
	}
	if p.vertex {
		cfg.Seed = seedToPtrInt32(req.Seed)
		cfg.GuidanceScale = genai.Ptr(float32(req.GuidanceScale))
	}

	slog.InfoContext(ctx, "Imagen に画像生成をリクエストします", "model", p.model, "aspect_ratio", cfg.AspectRatio)
	resp, err := p.models.GenerateImages(ctx, p.model, req.Prompt, cfg)
	if err != nil {
		return nil, fmt.Errorf("Gemini画像生成エラー: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, ErrNoImage
	}

	generated := resp.GeneratedImages[0]
	if generated.RAIFilteredReason != "" {
		return nil, fmt.Errorf("画像生成がフィルターされました: %s", generated.RAIFilteredReason)
	}
	if generated.Image == nil {
		return nil, ErrNoImage
	}
	return toGeneratedImage(ctx, generated.Image.ImageBytes, req)
}

func (p *GeminiPipeline) Close() error { return nil }

// nearestAspectRatio は Imagen が対応するアスペクト比のうち最も近いものを返します。
func nearestAspectRatio(width, height int) string {
	want := math.Log(float64(width) / float64(height))
	best := supportedAspectRatios[0]
	for _, ar := range supportedAspectRatios[1:] {
		if math.Abs(math.Log(ar.ratio)-want) < math.Abs(math.Log(best.ratio)-want) {
			best = ar
		}
	}
	return best.label
}
