package memory

import (
	"context"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/hiveforge/kernel/internal/kerrors"
)

// Embedder is the external collaborator store/find call on to turn text
// into a 1024-D vector. A model swap or an offline test double both
// implement this interface; nothing else in the package depends on
// Ollama directly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	HealthCheck(ctx context.Context) (ok bool, model string)
}

// OllamaEmbedder calls a local Ollama server's /api/embed endpoint,
// grounded on the teacher's OllamaExtractor client usage.
type OllamaEmbedder struct {
	client *api.Client
	model  string
}

// NewOllamaEmbedder builds a client from OLLAMA_HOST (or its default),
// defaulting model to "mxbai-embed-large" when unset.
func NewOllamaEmbedder(model string) (*OllamaEmbedder, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Unavailable, "create ollama client", err)
	}
	if model == "" {
		model = "mxbai-embed-large"
	}
	return &OllamaEmbedder{client: client, model: model}, nil
}

func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := &api.EmbedRequest{Model: o.model, Input: text}
	resp, err := o.client.Embed(ctx, req)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Unavailable, "embedder request failed", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, kerrors.New(kerrors.Unavailable, "embedder returned no vectors")
	}
	return resp.Embeddings[0], nil
}

func (o *OllamaEmbedder) HealthCheck(ctx context.Context) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := o.client.List(ctx); err != nil {
		return false, o.model
	}
	return true, o.model
}
