package session

import (
	"context"
	"sync"

	"github.com/Zacy-Sokach/RagChat/internal/api"
	"github.com/Zacy-Sokach/RagChat/internal/audio"
	"go.uber.org/zap"
)

// Transport 执行一次后端查询，*api.Client 满足该接口
type Transport interface {
	Chat(ctx context.Context, query string) (*api.ChatResponse, error)
}

type Option func(*Controller)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPlaybackContext 设置播放使用的上下文，取消它会终止正在播放的音频
func WithPlaybackContext(ctx context.Context) Option {
	return func(c *Controller) {
		if ctx != nil {
			c.playbackCtx = ctx
		}
	}
}

// Controller 把纯状态的 Session 与请求、播放两个副作用连接起来。
// 除 Dispatch 外的方法都只能在事件循环所在的 goroutine 调用。
type Controller struct {
	session     *Session
	transport   Transport
	player      audio.Player
	logger      *zap.Logger
	playbackCtx context.Context
	playback    sync.WaitGroup
	// stopPlayback 取消当前播放，同一时刻只播放一段音频
	stopPlayback context.CancelFunc
}

func NewController(transport Transport, player audio.Player, opts ...Option) *Controller {
	if player == nil {
		player = audio.NopPlayer{}
	}
	c := &Controller{
		session:     New(),
		transport:   transport,
		player:      player,
		logger:      zap.NewNop(),
		playbackCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session 暴露只读访问；调用方不应绕过 Controller 修改它
func (c *Controller) Session() *Session {
	return c.session
}

func (c *Controller) UpdatePendingInput(text string) {
	c.session.UpdatePendingInput(text)
}

func (c *Controller) CanSubmit(text string) bool {
	return c.session.CanSubmit(text)
}

func (c *Controller) Submit(text string) (Request, bool) {
	req, ok := c.session.Submit(text)
	if !ok {
		c.logger.Debug("submit ignored",
			zap.Bool("in_flight", c.session.InFlight()),
			zap.Int("input_len", len(text)),
		)
		return Request{}, false
	}
	c.logger.Info("request submitted", zap.String("request_id", req.ID), zap.Int("query_len", len(req.Query)))
	return req, true
}

// Dispatch 发出恰好一次后端请求，不触碰会话状态，可以在任意 goroutine 调用
func (c *Controller) Dispatch(ctx context.Context, req Request) Outcome {
	resp, err := c.transport.Chat(ctx, req.Query)
	return Outcome{Response: resp, Err: err}
}

// Resolve 应用请求结果；成功且带音频时异步播放，播放失败只记录日志
func (c *Controller) Resolve(req Request, outcome Outcome) (Message, error) {
	msg, effect, err := c.session.Complete(req, outcome)
	if err != nil {
		c.logger.Warn("completion rejected", zap.String("request_id", req.ID), zap.Error(err))
		return Message{}, err
	}

	if msg.IsError {
		c.logger.Warn("request failed", zap.String("request_id", req.ID), zap.Error(outcome.Err))
	} else {
		c.logger.Info("request completed",
			zap.String("request_id", req.ID),
			zap.Bool("audio", effect.PlayAudio != ""),
		)
	}

	if effect.PlayAudio != "" {
		c.play(req.ID, effect.PlayAudio)
	}
	return msg, nil
}

// Send 依次执行 Submit、Dispatch、Resolve；ok 为 false 表示输入被拒绝
func (c *Controller) Send(ctx context.Context, text string) (Message, bool, error) {
	req, ok := c.Submit(text)
	if !ok {
		return Message{}, false, nil
	}
	msg, err := c.Resolve(req, c.Dispatch(ctx, req))
	return msg, true, err
}

// Replay 重新播放最近一条音频，会打断正在播放的音频；没有音频时返回 false
func (c *Controller) Replay() bool {
	encoded, ok := c.session.LastAudio()
	if !ok {
		return false
	}
	c.play("replay", encoded)
	return true
}

// Wait 等待所有播放结束
func (c *Controller) Wait() {
	c.playback.Wait()
}

func (c *Controller) play(id, encoded string) {
	if c.stopPlayback != nil {
		c.stopPlayback()
	}
	ctx, cancel := context.WithCancel(c.playbackCtx)
	c.stopPlayback = cancel

	c.playback.Add(1)
	go func() {
		defer c.playback.Done()
		defer cancel()

		data, err := audio.DecodeBase64(encoded)
		if err != nil {
			c.logger.Warn("audio decode failed", zap.String("request_id", id), zap.Error(err))
			return
		}
		if err := c.player.Play(ctx, data); err != nil {
			if ctx.Err() != nil {
				c.logger.Debug("audio playback interrupted", zap.String("request_id", id))
				return
			}
			c.logger.Warn("audio playback failed", zap.String("request_id", id), zap.Error(err))
		}
	}()
}
