package generator

import (
	"context"

	"github.com/shouni/z-image-cli/pkg/domain"
	"github.com/shouni/z-image-cli/pkg/pipeline"
)

// --- Mocks ---

type mockLoader struct {
	pipe     *mockPipeline
	err      error
	modelID  string
	opts     pipeline.LoadOptions
	loadCall int
}

func (m *mockLoader) Load(ctx context.Context, modelID string, opts pipeline.LoadOptions) (pipeline.Pipeline, error) {
	m.loadCall++
	m.modelID = modelID
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.pipe, nil
}

type mockPipeline struct {
	// calls は呼び出し順を記録するのだ
	calls   []string
	lastReq domain.GenerationRequest

	offloadErr  error
	generateErr error
}

func (m *mockPipeline) EnableSequentialCPUOffload() error {
	m.calls = append(m.calls, "offload")
	return m.offloadErr
}

func (m *mockPipeline) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GeneratedImage, error) {
	m.calls = append(m.calls, "generate")
	m.lastReq = req
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	return &domain.GeneratedImage{Data: []byte("fake-png"), MimeType: "image/png", UsedSeed: req.Seed}, nil
}

func (m *mockPipeline) Close() error {
	m.calls = append(m.calls, "close")
	return nil
}
