package clients

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const id = "11111111-aaaa-4bbb-8ccc-000000000001"

func server(t *testing.T) *httptest.Server {
	t.Helper()
	var (
		mu     sync.Mutex
		stored string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/index.json", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"originals":{"`+id+`":{"uuid":"`+id+`","name":"story"}},"commentaries":{},"speakers":{}}`)
	})
	mux.HandleFunc("/recording/"+id+"/mapfile", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "0,16000:0,8000\n")
	})
	mux.HandleFunc("/recording/"+id+"/shapefile", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/transcript/"+id, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			stored = string(b)
			w.WriteHeader(http.StatusNoContent)
		default:
			io.WriteString(w, stored)
		}
	})
	mux.HandleFunc("/speaker/"+id+"/image", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "disk on fire", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloads(t *testing.T) {
	srv := server(t)
	h := NewHTTP(srv.URL+"/", 0)
	ctx := context.Background()

	ix, err := h.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, "story", ix.Originals[id].Name)

	m, err := h.MapFile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "0,16000:0,8000\n", m)

	require.NoError(t, h.PutTranscript(ctx, id, ";; user kim\n"))
	txt, err := h.Transcript(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ";; user kim\n", txt)
}

func TestNotFoundIsTyped(t *testing.T) {
	srv := server(t)
	h := NewHTTP(srv.URL, 0)

	_, err := h.Shape(context.Background(), id)
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, srv.URL+"/recording/"+id+"/shapefile", nf.URL)

	_, err = h.SpeakerImage(context.Background(), id, false)
	require.Error(t, err)
	assert.False(t, errors.As(err, &nf))
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "disk on fire")
}
