package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// RemoteConfig configures the OpenAI-compatible embeddings client.
type RemoteConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Dimensions  int
	BatchSize   int
	MaxAttempts int
	BackoffBase time.Duration
	Timeout     time.Duration
}

// RemoteEmbedder calls an OpenAI-compatible /embeddings endpoint. Transient
// failures (timeout, 429, 5xx) are retried with bounded exponential backoff;
// after MaxAttempts the error is surfaced as a terminal EmbeddingError.
type RemoteEmbedder struct {
	cfg    RemoteConfig
	client *http.Client
	cache  *EmbeddingCache
	logger *zap.Logger
}

// NewRemoteEmbedder creates the remote embedder. The API key is read from
// apiKeyEnv; a missing key is a startup error, not a per-call one.
func NewRemoteEmbedder(cfg RemoteConfig, apiKeyEnv string, cacheSize int, logger *zap.Logger) (*RemoteEmbedder, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(apiKeyEnv)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing embedding API key in env %s", apiKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 200 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  NewEmbeddingCache(cacheSize),
		logger: logger,
	}, nil
}

// Embed returns the embedding for a single text.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts, batching upstream calls to bound request count.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	// Serve cache hits first; only misses go upstream.
	var missTexts []string
	var missIdx []int
	for i, t := range texts {
		if cached, ok := e.cache.Get(t); ok {
			out[i] = cached
			continue
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}

	for start := 0; start < len(missTexts); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		vecs, err := e.embedWithRetry(ctx, missTexts[start:end])
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			e.cache.Set(missTexts[start+j], vec)
			out[missIdx[start+j]] = vec
		}
	}
	return out, nil
}

// embedWithRetry runs one upstream batch with bounded exponential backoff on
// transient failures.
func (e *RemoteEmbedder) embedWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := e.backoff(attempt - 1)
			e.logger.Debug("retrying embedding call",
				zap.Int("attempt", attempt), zap.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, transientErr(ctx.Err())
			}
		}
		vecs, err := e.embedOnce(ctx, batch)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		var embErr *EmbeddingError
		if errors.As(err, &embErr) && !embErr.Transient {
			return nil, err
		}
	}
	return nil, permanentErr(fmt.Errorf("retries exhausted after %d attempts: %w", e.cfg.MaxAttempts, lastErr))
}

func (e *RemoteEmbedder) embedOnce(ctx context.Context, batch []string) ([][]float32, error) {
	reqBody := struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}{Input: batch, Model: e.cfg.Model}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, permanentErr(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, permanentErr(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		// Network errors and client timeouts are retryable.
		return nil, transientErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		// Respect Retry-After when the service provides it.
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, parseErr := strconv.Atoi(ra); parseErr == nil {
				select {
				case <-time.After(time.Duration(secs) * time.Second):
				case <-ctx.Done():
				}
			}
		}
		return nil, transientErr(fmt.Errorf("embeddings endpoint: %s", resp.Status))
	}
	if resp.StatusCode >= 300 {
		return nil, permanentErr(fmt.Errorf("embeddings endpoint: %s", resp.Status))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transientErr(err)
	}
	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, permanentErr(fmt.Errorf("decode embeddings response: %w", err))
	}
	if len(parsed.Data) != len(batch) {
		return nil, permanentErr(fmt.Errorf("embeddings response has %d vectors for %d inputs", len(parsed.Data), len(batch)))
	}
	out := make([][]float32, len(batch))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, permanentErr(fmt.Errorf("embeddings response index %d out of range", d.Index))
		}
		vec := d.Embedding
		NormalizeL2Slice(vec)
		out[d.Index] = vec
	}
	for i, vec := range out {
		if vec == nil {
			return nil, permanentErr(fmt.Errorf("embeddings response missing vector for input %d", i))
		}
	}
	return out, nil
}

// backoff returns the exponential delay for a 0-based retry, capped at 5s.
func (e *RemoteEmbedder) backoff(retry int) time.Duration {
	d := e.cfg.BackoffBase << retry
	if d > 5*time.Second || d <= 0 {
		d = 5 * time.Second
	}
	return d
}

// Dimensions returns the configured embedding dimension.
func (e *RemoteEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// Close is a no-op for the remote embedder.
func (e *RemoteEmbedder) Close() error { return nil }
