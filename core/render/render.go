// Package render rasterizes equation scripts through an external rendering
// service.
package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FocuswithJustin/hwpxkit/core/errors"
)

// ErrNoImage is returned when the renderer answers without an image.
var ErrNoImage = stderrors.New("renderer returned no image")

// DefaultTimeout bounds a single Render call.
const DefaultTimeout = 2 * time.Minute

// maxResponse caps the size of a rendering service response.
const maxResponse = 32 << 20

// Renderer turns an equation script into PNG bytes.
type Renderer interface {
	Render(ctx context.Context, script string) ([]byte, error)
}

// Func adapts a function to Renderer.
type Func func(ctx context.Context, script string) ([]byte, error)

// Render calls f.
func (f Func) Render(ctx context.Context, script string) ([]byte, error) {
	return f(ctx, script)
}

// WithTimeout bounds every call of r by d. A non-positive d means
// DefaultTimeout.
func WithTimeout(r Renderer, d time.Duration) Renderer {
	if d <= 0 {
		d = DefaultTimeout
	}
	return Func(func(ctx context.Context, script string) ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return r.Render(ctx, script)
	})
}

// HTTPRenderer posts {"script": ...} to Endpoint and decodes the base64 PNG
// in the "image" (or "base64") field of the JSON answer.
type HTTPRenderer struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPRenderer returns a renderer for endpoint using http.DefaultClient.
func NewHTTPRenderer(endpoint string) *HTTPRenderer {
	return &HTTPRenderer{Endpoint: endpoint, Client: http.DefaultClient}
}

type request struct {
	Script string `json:"script"`
}

type response struct {
	Success *bool  `json:"success"`
	Image   string `json:"image"`
	Base64  string `json:"base64"`
	Error   string `json:"error"`
}

// Render implements Renderer.
func (h *HTTPRenderer) Render(ctx context.Context, script string) ([]byte, error) {
	script = strings.TrimSpace(script)
	if script == "" {
		return nil, errors.NewValidation("script", "empty equation script")
	}
	body, err := json.Marshal(request{Script: script})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewValidation("endpoint", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "render request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return nil, errors.Wrap(err, "render response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("renderer answered %s", resp.Status)
	}
	var out response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.NewParse("json", h.Endpoint, err.Error())
	}
	if out.Success != nil && !*out.Success {
		if out.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoImage, out.Error)
		}
		return nil, ErrNoImage
	}
	encoded := out.Image
	if encoded == "" {
		encoded = out.Base64
	}
	encoded = strings.TrimPrefix(encoded, "data:image/png;base64,")
	if encoded == "" {
		return nil, ErrNoImage
	}
	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.NewParse("base64", h.Endpoint, err.Error())
	}
	return img, nil
}

// Job is one script to render.
type Job struct {
	Unit   int
	Index  int
	Script string
}

// Result is the outcome of one Job.
type Result struct {
	Job
	Image []byte
	Err   error
}

// RenderAll renders jobs one after another. A failed job is recorded in its
// Result; a canceled context marks the remaining jobs with ctx.Err().
func RenderAll(ctx context.Context, r Renderer, jobs []Job) []Result {
	out := make([]Result, len(jobs))
	for i, j := range jobs {
		out[i].Job = j
		if err := ctx.Err(); err != nil {
			out[i].Err = err
			continue
		}
		out[i].Image, out[i].Err = r.Render(ctx, j.Script)
	}
	return out
}
