package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"google.golang.org/genai"
)

// maxEmbedBatch is the Gemini API limit on contents per EmbedContent call.
const maxEmbedBatch = 100

// ContentEmbedder is the subset of genai.Models used for embeddings.
type ContentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GenAIEmbedder adapts the Gemini embedding endpoint to embedding.Embedder.
type GenAIEmbedder struct {
	models   ContentEmbedder
	model    string
	taskType string
}

// NewGenAIEmbedder builds an embedder on client.Models.
func NewGenAIEmbedder(client *genai.Client, model, taskType string) *GenAIEmbedder {
	return NewContentEmbedder(client.Models, model, taskType)
}

// NewContentEmbedder builds an embedder on any ContentEmbedder.
func NewContentEmbedder(models ContentEmbedder, model, taskType string) *GenAIEmbedder {
	return &GenAIEmbedder{models: models, model: model, taskType: taskType}
}

// EmbedStrings embeds texts in batches, preserving order.
func (e *GenAIEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if e.models == nil {
		return nil, errors.New("genai embedder: client not configured")
	}

	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, t := range texts[start:end] {
			contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
		}

		var cfg *genai.EmbedContentConfig
		if e.taskType != "" {
			cfg = &genai.EmbedContentConfig{TaskType: e.taskType}
		}
		resp, err := e.models.EmbedContent(ctx, e.model, contents, cfg)
		if err != nil {
			return nil, fmt.Errorf("genai embed %d texts: %w", end-start, err)
		}
		if resp == nil || len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("genai embed: expected %d embeddings", end-start)
		}

		for _, emb := range resp.Embeddings {
			vec := make([]float64, len(emb.Values))
			for i, v := range emb.Values {
				vec[i] = float64(v)
			}
			out = append(out, vec)
		}
	}
	return out, nil
}

var _ embedding.Embedder = (*GenAIEmbedder)(nil)
