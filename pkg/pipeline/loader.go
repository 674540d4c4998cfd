package pipeline

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"google.golang.org/genai"

	"github.com/shouni/z-image-cli/pkg/config"
)

// NewLoader はバックエンド設定に応じた Loader を組み立てます。
func NewLoader(ctx context.Context, b config.Backend) (Loader, error) {
	switch b.Kind {
	case config.BackendDiffusers:
		// 推論サーバーは通常 localhost 上にあるため SSRF 検証は行わない。
		// Timeout が 0 の場合はタイムアウトなし。
		client := httpkit.New(b.Timeout,
			httpkit.WithHTTPClient(&http.Client{Timeout: b.Timeout}),
			httpkit.WithSkipNetworkValidation(true),
		)
		return NewDiffusersLoader(client, b.Endpoint)

	case config.BackendOpenAI:
		cfg := openai.DefaultConfig(b.APIKey)
		cfg.BaseURL = b.Endpoint
		cfg.HTTPClient = &http.Client{Timeout: b.Timeout}
		return NewOpenAILoader(openai.NewClientWithConfig(cfg))

	case config.BackendGemini:
		clientCfg := &genai.ClientConfig{}
		if b.APIKey != "" {
			clientCfg.APIKey = b.APIKey
			clientCfg.Backend = genai.BackendGeminiAPI
		}
		client, err := genai.NewClient(ctx, clientCfg)
		if err != nil {
			return nil, fmt.Errorf("Geminiクライアントの初期化に失敗しました: %w", err)
		}
		return NewGeminiLoader(client.Models, client.ClientConfig().Backend == genai.BackendVertexAI)
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, b.Kind)
}
