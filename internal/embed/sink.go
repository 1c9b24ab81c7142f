package embed

import (
	"context"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/tanatools/supertag/internal/sterr"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "nomic-embed-text"

// Sink turns batches of texts into vectors. The local-model implementation
// is the only one shipped; tests substitute their own.
type Sink interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OllamaSink embeds through a local Ollama server.
type OllamaSink struct {
	client *api.Client
	model  string
}

// NewOllamaSink builds a sink from the environment (OLLAMA_HOST et al).
func NewOllamaSink(model string) (*OllamaSink, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, sterr.Wrap(sterr.LocalAPIUnavailable, err, "create ollama client")
	}
	if model == "" {
		model = DefaultModel
	}
	return &OllamaSink{client: client, model: model}, nil
}

// Model returns the configured model name.
func (o *OllamaSink) Model() string { return o.model }

// Available checks the server with a short timeout so a down service fails
// fast instead of hanging the whole generation run.
func (o *OllamaSink) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := o.client.List(ctx)
	return err == nil
}

// Embed sends one batch of texts and returns one vector per text.
func (o *OllamaSink) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{
		Model: o.model,
		Input: texts,
	})
	if err != nil {
		return nil, sterr.Wrap(sterr.LocalAPIUnavailable, err, "embed batch of %d", len(texts)).
			WithSuggestion("check that ollama is running and the model is pulled: `ollama pull " + o.model + "`")
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, sterr.New(sterr.APIError, "embed returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}
