package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Zacy-Sokach/RagChat/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeTransport struct {
	mu      sync.Mutex
	queries []string
	resp    *api.ChatResponse
	err     error
}

func (f *fakeTransport) Chat(_ context.Context, query string) (*api.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.resp, f.err
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakePlayer struct {
	mu     sync.Mutex
	played [][]byte
	err    error
}

func (p *fakePlayer) Play(_ context.Context, audio []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, audio)
	return p.err
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.played)
}

func TestControllerSendSuccessWithoutAudio(t *testing.T) {
	transport := &fakeTransport{resp: &api.ChatResponse{Response: strPtr("Hello")}}
	player := &fakePlayer{}
	c := NewController(transport, player)

	msg, ok, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)
	require.True(t, ok)
	c.Wait()

	assert.Equal(t, "Hello", msg.Text)
	assert.Equal(t, []string{"hi"}, transport.queries)
	assert.Zero(t, player.count())
	assert.False(t, c.Session().InFlight())
}

func TestControllerPlaysAudioExactlyOnce(t *testing.T) {
	transport := &fakeTransport{resp: &api.ChatResponse{Response: strPtr("Hello"), Audio: "SUQzBA=="}}
	player := &fakePlayer{}
	c := NewController(transport, player)

	_, ok, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)
	require.True(t, ok)
	c.Wait()

	require.Equal(t, 1, player.count())
	assert.Equal(t, []byte("ID3\x04"), player.played[0])
}

func TestControllerNoPlaybackOnError(t *testing.T) {
	transport := &fakeTransport{err: &api.APIError{StatusCode: 502, Body: "bad gateway"}}
	player := &fakePlayer{}
	c := NewController(transport, player)

	msg, _, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)
	c.Wait()

	assert.True(t, msg.IsError)
	assert.Zero(t, player.count())
}

func TestControllerPlaybackFailureIsOnlyLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	transport := &fakeTransport{resp: &api.ChatResponse{Response: strPtr("Hello"), Audio: "SUQz"}}
	player := &fakePlayer{err: errors.New("device busy")}
	c := NewController(transport, player, WithLogger(zap.New(core)))

	msg, _, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)
	c.Wait()

	assert.False(t, msg.IsError)
	assert.False(t, c.Session().InFlight())
	assert.Equal(t, 2, c.Session().Len())
	assert.Equal(t, 1, logs.FilterMessage("audio playback failed").Len())
}

func TestControllerUndecodableAudioIsOnlyLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	transport := &fakeTransport{resp: &api.ChatResponse{Response: strPtr("Hello"), Audio: "%%%"}}
	player := &fakePlayer{}
	c := NewController(transport, player, WithLogger(zap.New(core)))

	_, _, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)
	c.Wait()

	assert.Zero(t, player.count())
	assert.Equal(t, 1, logs.FilterMessage("audio decode failed").Len())
}

func TestControllerRejectsSecondSubmitWhileInFlight(t *testing.T) {
	transport := &fakeTransport{resp: &api.ChatResponse{Response: strPtr("ok")}}
	c := NewController(transport, nil)

	req, ok := c.Submit("first")
	require.True(t, ok)

	_, ok, err := c.Send(context.Background(), "second")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, transport.calls(), "no request may be issued while one is in flight")

	_, err = c.Resolve(req, c.Dispatch(context.Background(), req))
	require.NoError(t, err)
	assert.Equal(t, 1, transport.calls())
}

func TestControllerBlankInputIssuesNoRequest(t *testing.T) {
	transport := &fakeTransport{}
	c := NewController(transport, nil)

	_, ok, err := c.Send(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, transport.calls())
	assert.Zero(t, c.Session().Len())
}

func TestControllerResolveStale(t *testing.T) {
	c := NewController(&fakeTransport{}, nil)
	_, err := c.Resolve(Request{ID: "nope"}, Outcome{})
	assert.ErrorIs(t, err, ErrStaleCompletion)
}

func TestControllerReplay(t *testing.T) {
	transport := &fakeTransport{resp: &api.ChatResponse{Response: strPtr("Hello"), Audio: "SUQz"}}
	player := &fakePlayer{}
	c := NewController(transport, player)

	assert.False(t, c.Replay())

	_, _, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)
	c.Wait()
	assert.True(t, c.Replay())
	c.Wait()

	assert.Equal(t, 2, player.count())
	assert.Equal(t, 2, c.Session().Len(), "replay must not touch history")
}

// blockingPlayer 一直播放到上下文被取消
type blockingPlayer struct {
	started     chan struct{}
	mu          sync.Mutex
	interrupted int
}

func (p *blockingPlayer) Play(ctx context.Context, _ []byte) error {
	p.started <- struct{}{}
	<-ctx.Done()
	p.mu.Lock()
	p.interrupted++
	p.mu.Unlock()
	return ctx.Err()
}

func (p *blockingPlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interrupted
}

func TestControllerReplayInterruptsCurrentPlayback(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := &fakeTransport{resp: &api.ChatResponse{Response: strPtr("Hello"), Audio: "SUQz"}}
	player := &blockingPlayer{started: make(chan struct{}, 2)}
	c := NewController(transport, player, WithLogger(zap.New(core)), WithPlaybackContext(ctx))

	_, _, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)
	<-player.started

	require.True(t, c.Replay())
	<-player.started
	assert.Eventually(t, func() bool { return player.count() == 1 }, time.Second, 10*time.Millisecond,
		"the first clip must stop before the replay plays")

	cancel()
	c.Wait()
	assert.Equal(t, 2, player.count())
	assert.Equal(t, 2, logs.FilterMessage("audio playback interrupted").Len())
	assert.Zero(t, logs.FilterMessage("audio playback failed").Len())
}

func TestControllerAgainstHTTPBackend(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantText  string
		wantError bool
	}{
		{
			name: "success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"response":"Hello","audio":null}`))
			},
			wantText: "Hello",
		},
		{
			name: "backend error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("server error"))
			},
			wantText:  "Error 500: server error",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c := NewController(api.NewClient(server.URL, api.WithDoer(server.Client())), nil)
			msg, ok, err := c.Send(context.Background(), "hi")
			require.NoError(t, err)
			require.True(t, ok)

			assert.Equal(t, tt.wantText, msg.Text)
			assert.Equal(t, tt.wantError, msg.IsError)
		})
	}
}
