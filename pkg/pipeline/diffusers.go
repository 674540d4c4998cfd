package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shouni/go-http-kit/pkg/httpkit"

	"github.com/shouni/z-image-cli/pkg/domain"
)

type diffusersRequest struct {
	Model             string      `json:"model"`
	Prompt            string      `json:"prompt"`
	N                 int         `json:"n"`
	Size              string      `json:"size"`
	Width             int         `json:"width"`
	Height            int         `json:"height"`
	NumInferenceSteps int         `json:"num_inference_steps"`
	GuidanceScale     float64     `json:"guidance_scale"`
	Seed              int64       `json:"seed"`
	TorchDType        DType       `json:"torch_dtype,omitempty"`
	LowCPUMemUsage    bool        `json:"low_cpu_mem_usage"`
	CPUOffload        OffloadMode `json:"cpu_offload,omitempty"`
	ResponseFormat    string      `json:"response_format"`
}

type imagesResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// errorResponse は 4xx で返る OpenAI 互換のエラーボディです。
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (l modelList) has(id string) bool {
	for _, m := range l.Data {
		if m.ID == id {
			return true
		}
	}
	return false
}

// DiffusersLoader は HTTP 経由で diffusers パイプラインを提供するサーバーに接続します。
// 各リクエストは Doer.Do で1回だけ送信され、リトライはしません。
type DiffusersLoader struct {
	client   httpkit.Doer
	endpoint string
}

func NewDiffusersLoader(client httpkit.Doer, endpoint string) (*DiffusersLoader, error) {
	if client == nil {
		return nil, fmt.Errorf("httpClient is required")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	return &DiffusersLoader{
		client:   client,
		endpoint: strings.TrimRight(endpoint, "/"),
	}, nil
}

// Load はサーバーにモデルが存在することを確認してハンドルを返します。
func (l *DiffusersLoader) Load(ctx context.Context, modelID string, opts LoadOptions) (Pipeline, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	var models modelList
	if err := doJSON(l.client, req, &models); err != nil {
		return nil, fmt.Errorf("モデル一覧の取得に失敗しました: %w", err)
	}
	if !models.has(modelID) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
	}

	slog.Debug("diffusers パイプラインを取得しました", "model", modelID, "dtype", opts.DType)
	return &DiffusersPipeline{
		client:   l.client,
		endpoint: l.endpoint,
		model:    modelID,
		opts:     opts,
	}, nil
}

// DiffusersPipeline はサーバー側でロードされた1つのモデルを指します。
type DiffusersPipeline struct {
	client   httpkit.Doer
	endpoint string
	model    string
	opts     LoadOptions
	offload  OffloadMode
}

func (p *DiffusersPipeline) EnableSequentialCPUOffload() error {
	p.offload = OffloadSequential
	return nil
}

func (p *DiffusersPipeline) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GeneratedImage, error) {
	body := diffusersRequest{
		Model:             p.model,
		Prompt:            req.Prompt,
		N:                 1,
		Size:              req.Size(),
		Width:             req.Width,
		Height:            req.Height,
		NumInferenceSteps: req.NumInferenceSteps,
		GuidanceScale:     req.GuidanceScale,
		Seed:              req.Seed,
		TorchDType:        p.opts.DType,
		LowCPUMemUsage:    p.opts.LowCPUMemUsage,
		CPUOffload:        p.offload,
		ResponseFormat:    "b64_json",
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/v1/images/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp imagesResponse
	if err := doJSON(p.client, httpReq, &resp); err != nil {
		return nil, fmt.Errorf("diffusers 画像生成エラー: %w", err)
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

func (p *DiffusersPipeline) Close() error { return nil }

// doJSON はリクエストを1回だけ送信し、2xx のボディを v にデコードします。
// 4xx のエラーボディに message があればそれをエラーに含めます。
func doJSON(client httpkit.Doer, req *http.Request, v any) error {
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	raw, err := httpkit.HandleResponse(res)
	if err != nil {
		var httpErr *httpkit.NonRetryableHTTPError
		if errors.As(err, &httpErr) {
			var e errorResponse
			if json.Unmarshal(httpErr.Body, &e) == nil && e.Error.Message != "" {
				return fmt.Errorf("%s (status %d): %w", e.Error.Message, httpErr.StatusCode, err)
			}
		}
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("レスポンスパースに失敗しました: %w", err)
	}
	return nil
}
