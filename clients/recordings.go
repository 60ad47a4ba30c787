package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/langtech/transcriber/aikuma"
)

// Index fetches the recording index of the server.
func (h *HTTP) Index(ctx context.Context) (*aikuma.Index, error) {
	b, err := h.Download(ctx, "index.json")
	if err != nil {
		return nil, err
	}
	var out aikuma.Index
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("index decode: %w", err)
	}
	return &out, nil
}

// Recording fetches the audio of a recording.
func (h *HTTP) Recording(ctx context.Context, id string) ([]byte, error) {
	return h.Download(ctx, "recording", id)
}

// Shape fetches the envelope of a recording. A recording without one
// yields a *NotFoundError.
func (h *HTTP) Shape(ctx context.Context, id string) ([]byte, error) {
	return h.Download(ctx, "recording", id, "shapefile")
}

// MapFile fetches the map of a respeaking onto its original.
func (h *HTTP) MapFile(ctx context.Context, id string) (string, error) {
	return h.DownloadText(ctx, "recording", id, "mapfile")
}

func (h *HTTP) SpeakerImage(ctx context.Context, id string, small bool) ([]byte, error) {
	if small {
		return h.Download(ctx, "speaker", id, "smallimage")
	}
	return h.Download(ctx, "speaker", id, "image")
}

// Transcript fetches the Aikuma transcript stored for a recording.
func (h *HTTP) Transcript(ctx context.Context, id string) (string, error) {
	return h.DownloadText(ctx, "transcript", id)
}

// PutTranscript stores an Aikuma transcript for a recording.
func (h *HTTP) PutTranscript(ctx context.Context, id, text string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, h.url("transcript", id), bytes.NewReader([]byte(text)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := h.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{URL: req.URL.String()}
	}
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("transcript %s: %s", resp.Status, string(body))
	}
	return nil
}
