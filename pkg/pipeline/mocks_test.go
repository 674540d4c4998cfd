package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// --- Mocks ---

// fakeDiffusersServer は diffusers 推論サーバーを httptest で模倣します。
type fakeDiffusersServer struct {
	*httptest.Server

	modelsJSON string
	// generate は POST /v1/images/generations のステータスとボディを返します。
	generate func(body diffusersRequest) (int, string)

	mu       sync.Mutex
	posts    int
	lastBody diffusersRequest
}

func newFakeDiffusersServer(t *testing.T, generate func(body diffusersRequest) (int, string)) *fakeDiffusersServer {
	t.Helper()
	f := &fakeDiffusersServer{modelsJSON: testModelsJSON, generate: generate}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, f.modelsJSON)
	})
	mux.HandleFunc("POST /v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		var body diffusersRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.posts++
		f.lastBody = body
		f.mu.Unlock()

		status, resp := f.generate(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeDiffusersServer) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts
}

func (f *fakeDiffusersServer) body() diffusersRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody
}

// imageBody は1枚の画像を含む成功レスポンスを返します。
func imageBody(data []byte) string {
	return `{"created":0,"data":[{"b64_json":"` + b64(data) + `"}]}`
}

// mockImageClient は ImageClient を実装します。
type mockImageClient struct {
	createFunc  func(req openai.ImageRequest) (openai.ImageResponse, error)
	lastRequest openai.ImageRequest
}

func (m *mockImageClient) CreateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResponse, error) {
	m.lastRequest = req
	if m.createFunc != nil {
		return m.createFunc(req)
	}
	return openai.ImageResponse{}, nil
}

// mockImageModels は ImageModels を実装します。
type mockImageModels struct {
	generateFunc func(model, prompt string, cfg *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
	lastConfig   *genai.GenerateImagesConfig
}

func (m *mockImageModels) GenerateImages(ctx context.Context, model string, prompt string, cfg *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	m.lastConfig = cfg
	if m.generateFunc != nil {
		return m.generateFunc(model, prompt, cfg)
	}
	return nil, nil
}

// --- Helpers ---

func pngOfSize(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{0, 128, 255, 255})
		}
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func b64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
