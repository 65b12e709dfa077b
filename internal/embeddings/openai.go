package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// OpenAI-compatible /v1/embeddings endpoint. OPENAI_BASE_URL may point to a
// self-hosted service; the default is the public API.
type openAIProvider struct {
	baseURL string
	model   string
	dims    int
	http    *http.Client
	apiKey  string
}

func newOpenAI(model string, dims int) (Provider, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	base := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if base == "" {
		base = "https://api.openai.com/v1"
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai embeddings provider")
		}
	}
	return &openAIProvider{
		baseURL: strings.TrimRight(base, "/"),
		model:   model,
		dims:    dims,
		http:    &http.Client{Timeout: 15 * time.Second},
		apiKey:  apiKey,
	}, nil
}

func (p *openAIProvider) Name() string    { return "openai" }
func (p *openAIProvider) Dimensions() int { return p.dims }

func (p *openAIProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	payload := map[string]interface{}{
		"model": p.model,
		"input": inputs,
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var b struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&b)
		if b.Error.Message != "" {
			return nil, fmt.Errorf("openai embeddings error: %s", b.Error.Message)
		}
		return nil, fmt.Errorf("openai embeddings http status: %s", resp.Status)
	}
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Data) != len(inputs) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(out.Data), len(inputs))
	}
	res := make([][]float32, 0, len(out.Data))
	for _, d := range out.Data {
		res = append(res, f64to32(d.Embedding))
	}
	return res, nil
}

func f64to32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i := range v {
		out[i] = float32(v[i])
	}
	return out
}
