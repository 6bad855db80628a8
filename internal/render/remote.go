package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
)

var ErrRemoteRender = errors.New("remote render failed")

// RemoteRenderer delegates rendering to an external export service that
// accepts {"design", "options"} and answers {"data": "<base64>"}.
type RemoteRenderer struct {
	url  string
	http *http.Client
}

func NewRemoteRenderer(url string, client *http.Client) *RemoteRenderer {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &RemoteRenderer{url: url, http: client}
}

type remoteRequest struct {
	Design  *design.Design `json:"design"`
	Options Options        `json:"options"`
}

type remoteResponse struct {
	Data  string `json:"data"`
	Error string `json:"error,omitempty"`
}

func (r *RemoteRenderer) Render(ctx context.Context, d *design.Design, opts Options) (string, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return "", err
	}

	body, err := json.Marshal(remoteRequest{Design: d, Options: opts})
	if err != nil {
		return "", fmt.Errorf("encode render request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRemoteRender, err)
	}
	defer resp.Body.Close()

	var out remoteResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: status %d: decode: %v", ErrRemoteRender, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d: %s", ErrRemoteRender, resp.StatusCode, out.Error)
	}
	// Some services answer with a full data URI.
	if _, payload, ok := strings.Cut(out.Data, ";base64,"); ok && strings.HasPrefix(out.Data, "data:") {
		return payload, nil
	}
	if out.Data == "" {
		return "", fmt.Errorf("%w: empty result", ErrRemoteRender)
	}
	return out.Data, nil
}
