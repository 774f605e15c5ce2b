package embed

import (
	"context"
	"sync/atomic"
)

// mockEmbedder counts calls and returns a fixed-dimension vector derived
// from text length.
type mockEmbedder struct {
	dims       int
	embedCalls atomic.Int32
	batchCalls atomic.Int32
	batchTexts atomic.Int32
	err        error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.embedCalls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	v := make([]float32, m.dims)
	v[0] = float32(len(text))
	return v, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	m.batchTexts.Add(int32(len(texts)))
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, m.dims)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int                  { return m.dims }
func (m *mockEmbedder) ModelName() string                { return "mock" }
func (m *mockEmbedder) Available(_ context.Context) bool { return true }
func (m *mockEmbedder) Close() error                     { return nil }
