package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"mcq-agents/internal/credentials"
)

// GatewayEmbedder calls the vendor's OpenAI-compatible embeddings endpoint.
type GatewayEmbedder struct {
	model  openai.EmbeddingModel
	client *openai.Client
}

const defaultEmbeddingTimeout = 30 * time.Second

// NewGatewayEmbedder builds an embedder against baseURL authenticated with
// the given credential bundle.
func NewGatewayEmbedder(baseURL, model string, cred credentials.Credential) (*GatewayEmbedder, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base url required")
	}
	if cred.Authorization == "" {
		return nil, fmt.Errorf("credential required")
	}
	cli := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cred.Authorization),
		option.WithHeader("Token-id", cred.TokenID),
		option.WithHeader("Token-key", cred.TokenKey),
		option.WithMaxRetries(0),
	)
	return &GatewayEmbedder{
		model:  openai.EmbeddingModel(model),
		client: &cli,
	}, nil
}

func (e *GatewayEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	if e == nil || e.client == nil {
		return nil, fmt.Errorf("nil gateway embedder")
	}
	reqCtx, cancel := context.WithTimeout(ctx, defaultEmbeddingTimeout)
	defer cancel()

	resp, err := e.client.Embeddings.New(reqCtx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model: e.model,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embeddings: no data returned")
	}
	// Convert []float64 to []float32
	embedding := resp.Data[0].Embedding
	vec := make(Vector, len(embedding))
	for i, v := range embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
