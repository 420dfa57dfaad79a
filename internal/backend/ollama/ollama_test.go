package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/catalog"
)

func testDescriptor() catalog.Descriptor {
	return catalog.Descriptor{
		ID:            "gemma2:2b",
		Kind:          catalog.KindGeneration,
		Tags:          []string{"quick chat"},
		SpeedRating:   5,
		QualityRating: 3,
		Params:        map[string]any{"temperature": 0.6, "context_window": 8192},
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":" pong "}}`)
	}))
	defer srv.Close()

	g := NewGenerator(testDescriptor(), "", NewClient(srv.URL, 0))
	out, err := g.Generate(context.Background(), []backend.Message{
		{Role: backend.RoleUser, Content: "ping"},
	}, backend.Options{MaxTokens: 50, TopK: 40})

	require.NoError(t, err)
	assert.Equal(t, "pong", out)
	assert.Equal(t, "gemma2:2b", got.Model)
	assert.False(t, got.Stream)
	assert.InDelta(t, 0.6, got.Options["temperature"], 1e-9)
	assert.EqualValues(t, 50, got.Options["num_predict"])
	assert.EqualValues(t, 40, got.Options["top_k"])
	assert.EqualValues(t, 8192, got.Options["num_ctx"])

	healthy, _ := g.Status()
	assert.True(t, healthy)
}

func TestGenerate_StatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	g := NewGenerator(testDescriptor(), "", NewClient(srv.URL, 0))
	_, err := g.Generate(context.Background(), nil, backend.Options{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.False(t, backend.IsFatal(err))
}

func TestGenerate_EmptyReply(t *testing.T) {
	t.Parallel()

	g := NewGenerator(testDescriptor(), "", NewClient("http://mock", 0))
	g.client.WithHTTPClient(&http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(`{"message":{"role":"assistant","content":"  "}}`), nil
	})})

	_, err := g.Generate(context.Background(), nil, backend.Options{})
	assert.ErrorIs(t, err, backend.ErrEmptyOutput)
}

func TestProbe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		model string
		body  string
		ok    bool
	}{
		{"installed", "gemma2:2b", `{"models":[{"name":"gemma2:2b"}]}`, true},
		{"latest suffix", "qwen2.5-extended", `{"models":[{"name":"qwen2.5-extended:latest"}]}`, true},
		{"missing", "llama3.1:8b", `{"models":[{"name":"gemma2:2b"}]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := testDescriptor()
			desc.ID = tt.model
			g := NewGenerator(desc, "", NewClient("http://mock", 0))
			g.client.WithHTTPClient(&http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
				require.Equal(t, "/api/tags", r.URL.Path)
				return jsonResponse(tt.body), nil
			})})

			res := g.Probe(context.Background())
			assert.Equal(t, tt.ok, res.OK)
			if !tt.ok {
				assert.Contains(t, res.Reason, "not installed")
			}
		})
	}
}

func TestProbe_Unreachable(t *testing.T) {
	t.Parallel()

	g := NewGenerator(testDescriptor(), "", NewClient("http://mock", 0))
	g.client.WithHTTPClient(&http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})})

	res := g.Probe(context.Background())
	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "connection refused")
	assert.False(t, g.Describe().Healthy)
}

func TestInventory_List(t *testing.T) {
	t.Parallel()

	inv := NewInventory(NewClient("http://mock", 0).WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(`{"models":[{"name":"gemma2:2b"},{"name":"llama3.2:3b"}]}`), nil
		}),
	}))

	names, err := inv.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gemma2:2b", "llama3.2:3b"}, names)
}

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestGenerator_ModelName(t *testing.T) {
	t.Parallel()

	desc := testDescriptor()
	desc.ID = "fast"

	assert.Equal(t, "fast", backend.ModelName(NewGenerator(desc, "", NewClient("http://mock", 0))))
	assert.Equal(t, "gemma2:2b", backend.ModelName(NewGenerator(desc, "gemma2:2b", NewClient("http://mock", 0))))
}
