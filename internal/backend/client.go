/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend talks to the hosted script and image generation services.
// Responses are schema-validated and failures are classified transient or
// terminal so callers can retry only what is worth retrying.
package backend

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
	applog "github.com/nupa0w0-hash/MangaGenPro/internal/log"
)

// ScriptRequest carries everything the script service needs to break a
// story into panels.
type ScriptRequest struct {
	Story      string             `json:"story"`
	Style      string             `json:"style,omitempty"`
	Characters []domain.Character `json:"characters,omitempty"`
}

// RerollRequest asks the script service for a replacement script for one
// panel, keeping the rest of the storyboard as context.
type RerollRequest struct {
	Style      string             `json:"style,omitempty"`
	Panel      domain.ScriptPanel `json:"panel"`
	Characters []domain.Character `json:"characters,omitempty"`
	Directive  string             `json:"directive,omitempty"`
}

// ImageRequest asks the image service to render one panel or cover.
type ImageRequest struct {
	Prompt     string   `json:"prompt"`
	Style      string   `json:"style,omitempty"`
	Aspect     string   `json:"aspect"` // "1:1", "16:9", "3:4"
	References []string `json:"references,omitempty"`
	// Fresh bypasses the response cache. Regeneration wants a different
	// image for the same prompt, not the cached one back.
	Fresh bool `json:"-"`
}

type imageResponse struct {
	ImageRef string `json:"imageRef"`
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	Token       string // bearer token
	ScriptModel string
	ImageModel  string
	Timeout     time.Duration
	Classifier  Classifier
	// RatePerSec and Burst throttle outgoing calls; zero disables limiting.
	RatePerSec float64
	Burst      int
	// CacheTTL keeps identical image responses around so a resumed run does
	// not re-render panels it already rendered. Zero disables the cache.
	CacheTTL time.Duration
}

// Client is the HTTP client for both generation services.
type Client struct {
	baseURL     string
	token       string
	scriptModel string
	imageModel  string
	classify    Classifier
	client      *http.Client
	limiter     *rate.Limiter
	respCache   *cache.Cache
	log         *slog.Logger
}

// NewClient creates a client. baseURL may include a trailing slash; it will
// be normalized.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if len(opts.Classifier.Markers) == 0 && len(opts.Classifier.Statuses) == 0 {
		opts.Classifier = DefaultClassifier()
	}
	var lim *rate.Limiter
	if opts.RatePerSec > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}
	var rc *cache.Cache
	if opts.CacheTTL > 0 {
		rc = cache.New(opts.CacheTTL, opts.CacheTTL/2)
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		token:       opts.Token,
		scriptModel: opts.ScriptModel,
		imageModel:  opts.ImageModel,
		classify:    opts.Classifier,
		client:      &http.Client{Timeout: opts.Timeout},
		limiter:     lim,
		respCache:   rc,
		log:         applog.WithComponent("backend"),
	}
}

// doJSON posts a JSON body and decodes a JSON response. Non-2xx responses
// and transport failures come back classified.
func (c *Client) doJSON(ctx context.Context, op, path string, body, dest any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return NewTerminal(op, 0, err)
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return NewTerminal(op, 0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return NewTerminal(op, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return NewTerminal(op, 0, ctx.Err())
		}
		// unreachable or timed-out service, same retry treatment as overload
		return NewTransient(op, 0, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return NewTransient(op, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("server %s: %s", path, strings.TrimSpace(firstLine(string(raw))))
		if c.classify.Classify(resp.StatusCode, string(raw)) == KindTransient {
			return NewTransient(op, resp.StatusCode, err)
		}
		return NewTerminal(op, resp.StatusCode, err)
	}
	if dest == nil {
		return nil
	}
	if rawDest, ok := dest.(*[]byte); ok {
		*rawDest = raw
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return NewTerminal(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// GenerateScript produces a full panel script for a story.
func (c *Client) GenerateScript(ctx context.Context, req ScriptRequest) (domain.ScriptResult, error) {
	body := struct {
		ScriptRequest
		Model string `json:"model,omitempty"`
	}{req, c.scriptModel}
	var raw []byte
	if err := c.doJSON(ctx, "script_generate", "/v1/script:generate", body, &raw); err != nil {
		return domain.ScriptResult{}, err
	}
	out, err := DecodeScriptResult(raw)
	if err != nil {
		return domain.ScriptResult{}, err
	}
	c.log.Debug("script generated", slog.Int("panels", len(out.Panels)))
	return out, nil
}

// RerollPanel asks for a replacement script for a single panel.
func (c *Client) RerollPanel(ctx context.Context, req RerollRequest) (domain.ScriptPanel, error) {
	body := struct {
		RerollRequest
		Model string `json:"model,omitempty"`
	}{req, c.scriptModel}
	var out domain.ScriptPanel
	if err := c.doJSON(ctx, "script_reroll", "/v1/script:reroll", body, &out); err != nil {
		return domain.ScriptPanel{}, err
	}
	if out.Description == "" || out.VisualPrompt == "" {
		return domain.ScriptPanel{}, NewTerminal("script_reroll", 0,
			fmt.Errorf("reroll response missing description or visualPrompt"))
	}
	return out, nil
}

// RenderImage renders one panel or cover image and returns an opaque image
// handle. Identical requests hit the response cache unless req.Fresh is set.
func (c *Client) RenderImage(ctx context.Context, req ImageRequest) (string, error) {
	key := imageCacheKey(req)
	if c.respCache != nil && !req.Fresh {
		if ref, ok := c.respCache.Get(key); ok {
			c.log.Debug("image cache hit", slog.String("aspect", req.Aspect))
			return ref.(string), nil
		}
	}
	body := struct {
		ImageRequest
		Model string `json:"model,omitempty"`
	}{req, c.imageModel}
	var out imageResponse
	if err := c.doJSON(ctx, "image_render", "/v1/images:render", body, &out); err != nil {
		return "", err
	}
	if out.ImageRef == "" {
		return "", NewTerminal("image_render", 0, fmt.Errorf("render response carried no image"))
	}
	if c.respCache != nil {
		c.respCache.Set(key, out.ImageRef, cache.DefaultExpiration)
	}
	return out.ImageRef, nil
}

func imageCacheKey(req ImageRequest) string {
	h := sha256.New()
	io.WriteString(h, req.Prompt)
	io.WriteString(h, "\x00")
	io.WriteString(h, req.Style)
	io.WriteString(h, "\x00")
	io.WriteString(h, req.Aspect)
	for _, r := range req.References {
		io.WriteString(h, "\x00")
		io.WriteString(h, r)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if len(s) > 300 {
		return s[:300]
	}
	return s
}
