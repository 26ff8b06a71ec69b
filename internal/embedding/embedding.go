// Package embedding provides optional semantic relevance for memory search.
// When no provider is configured the memory manager falls back to lexical
// relevance only.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder turns fact or query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// CosineSimilarity returns 0 for mismatched or zero-length vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Config selects an embedding provider.
type Config struct {
	Provider string // "ollama" | "openai" | "" (disabled)
	Model    string
	URL      string
	APIKey   string
	Dims     int

	// CacheSize bounds the number of remembered query vectors. Zero
	// disables the cache.
	CacheSize int
}

const requestTimeout = 30 * time.Second

// ErrEmptyVector is returned when a provider answers without a vector.
var ErrEmptyVector = errors.New("provider returned no embedding")

// provider describes one HTTP embedding API.
type provider struct {
	name        string
	defaultURL  string
	path        string
	model       string
	defaultDims int
	encode      func(model, text string) any
	decode      func(body io.Reader) (Vector, error)
}

var providers = map[string]provider{
	"ollama": {
		name:        "ollama",
		defaultURL:  "http://localhost:11434",
		path:        "/api/embeddings",
		model:       "nomic-embed-text",
		defaultDims: 768,
		encode: func(model, text string) any {
			return struct {
				Model  string `json:"model"`
				Prompt string `json:"prompt"`
			}{model, text}
		},
		decode: func(body io.Reader) (Vector, error) {
			var out struct {
				Embedding []float32 `json:"embedding"`
			}
			if err := json.NewDecoder(body).Decode(&out); err != nil {
				return nil, err
			}
			return out.Embedding, nil
		},
	},
	"openai": {
		name:        "openai",
		defaultURL:  "https://api.openai.com/v1",
		path:        "/embeddings",
		model:       "text-embedding-3-small",
		defaultDims: 1536,
		encode: func(model, text string) any {
			return struct {
				Input string `json:"input"`
				Model string `json:"model"`
			}{text, model}
		},
		decode: func(body io.Reader) (Vector, error) {
			var out struct {
				Data []struct {
					Embedding []float32 `json:"embedding"`
				} `json:"data"`
			}
			if err := json.NewDecoder(body).Decode(&out); err != nil {
				return nil, err
			}
			if len(out.Data) == 0 {
				return nil, nil
			}
			return out.Data[0].Embedding, nil
		},
	},
}

// knownDims covers models whose width differs from their provider default.
var knownDims = map[string]int{
	"all-minilm":             384,
	"mxbai-embed-large":      1024,
	"text-embedding-3-large": 3072,
}

// New creates an embedder from cfg. It returns nil, nil when embeddings are
// disabled.
func New(cfg Config) (Embedder, error) {
	if cfg.Provider == "" {
		return nil, nil
	}
	p, ok := providers[strings.ToLower(cfg.Provider)]
	if !ok {
		return nil, fmt.Errorf("unknown embedding provider %q (valid: ollama, openai)", cfg.Provider)
	}
	var e Embedder = newHTTPEmbedder(p, cfg)
	if cfg.CacheSize > 0 {
		e = NewCached(e, cfg.CacheSize)
	}
	return e, nil
}

// HTTPEmbedder calls a remote embedding API over JSON.
type HTTPEmbedder struct {
	p       provider
	baseURL string
	model   string
	apiKey  string
	dims    int
	client  *http.Client
}

func newHTTPEmbedder(p provider, cfg Config) *HTTPEmbedder {
	e := &HTTPEmbedder{
		p:       p,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		dims:    cfg.Dims,
		client:  &http.Client{Timeout: requestTimeout},
	}
	if e.baseURL == "" {
		e.baseURL = p.defaultURL
	}
	if e.model == "" {
		e.model = p.model
	}
	if e.dims == 0 {
		e.dims = knownDims[e.model]
	}
	if e.dims == 0 {
		e.dims = p.defaultDims
	}
	return e
}

func (e *HTTPEmbedder) Dims() int { return e.dims }

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	body, err := json.Marshal(e.p.encode(e.model, text))
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+e.p.path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", e.p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s error %d: %s", e.p.name, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	vec, err := e.p.decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s response: %w", e.p.name, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%s: %w", e.p.name, ErrEmptyVector)
	}
	return vec, nil
}

// Cached remembers recent vectors by exact text. Search queries repeat often
// within a conversation, facts rarely do.
type Cached struct {
	next Embedder
	size int

	mu    sync.Mutex
	order []string
	byKey map[string]Vector
}

// NewCached wraps next with a FIFO cache holding at most size vectors.
func NewCached(next Embedder, size int) *Cached {
	return &Cached{next: next, size: size, byKey: make(map[string]Vector, size)}
}

func (c *Cached) Dims() int { return c.next.Dims() }

func (c *Cached) Embed(ctx context.Context, text string) (Vector, error) {
	c.mu.Lock()
	v, ok := c.byKey[text]
	c.mu.Unlock()
	if ok {
		return v, nil
	}

	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byKey[text]; !ok {
		if len(c.order) >= c.size {
			delete(c.byKey, c.order[0])
			c.order = c.order[1:]
		}
		c.order = append(c.order, text)
	}
	c.byKey[text] = v
	return v, nil
}

// Len reports the number of cached vectors.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}
