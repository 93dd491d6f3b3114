package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Zacy-Sokach/RagChat/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8000/api", BaseURL("http://localhost:8000"))
	assert.Equal(t, "http://localhost:8000/api", BaseURL("http://localhost:8000/"))
	assert.Equal(t, "http://localhost:8000/api/chat", NewClient("http://localhost:8000").Endpoint())
}

func TestChat_Success(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotQuery = req.Query

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"Hello","audio":"SUQz"}`))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Chat(context.Background(), "hi")
	require.NoError(t, err)

	assert.Equal(t, "hi", gotQuery)
	text, ok := resp.Text()
	assert.True(t, ok)
	assert.Equal(t, "Hello", text)
	assert.True(t, resp.HasAudio())
	assert.Equal(t, "SUQz", resp.Audio)
}

func TestChat_MissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Chat(context.Background(), "hi")
	require.NoError(t, err)

	_, ok := resp.Text()
	assert.False(t, ok)
	assert.False(t, resp.HasAudio())
}

func TestChat_NullAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"Hello","audio":null}`))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Chat(context.Background(), "hi")
	require.NoError(t, err)
	assert.False(t, resp.HasAudio())
}

func TestChat_BackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("server error"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Chat(context.Background(), "hi")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "server error", apiErr.Body)
}

func TestChat_Non200SuccessIsAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"response":"created"}`))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Chat(context.Background(), "hi")
	require.NoError(t, err)
	text, _ := resp.Text()
	assert.Equal(t, "created", text)
}

func TestChat_TransportError(t *testing.T) {
	doer := utils.DoerFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("timeout")
	})

	_, err := NewClient("http://backend.invalid", WithDoer(doer)).Chat(context.Background(), "hi")
	require.Error(t, err)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Contains(t, transportErr.Error(), "timeout")
}

func TestChat_UndecodableBody(t *testing.T) {
	doer := utils.DoerFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("<html>")),
		}, nil
	})

	_, err := NewClient("http://backend.invalid", WithDoer(doer)).Chat(context.Background(), "hi")
	require.Error(t, err)

	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
	assert.ErrorIs(t, err, ErrDecodeResponse)
}

func TestWithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"response":"late"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, WithTimeout(20*time.Millisecond)).Chat(context.Background(), "hi")
	require.Error(t, err)

	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestWithTimeoutZeroKeepsSharedClient(t *testing.T) {
	c := NewClient("http://localhost", WithTimeout(0))
	assert.Same(t, getSharedHTTPClient(), c.doer)
}
