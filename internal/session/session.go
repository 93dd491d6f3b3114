// Package session holds the chat session state machine: an append-only
// message history, the pending input buffer and the single in-flight request.
//
// Session transitions are pure; Controller owns the side effects (the backend
// call and audio playback).
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zacy-Sokach/RagChat/internal/api"
	"github.com/google/uuid"
)

// FallbackText 在成功响应缺少 response 字段时使用
const FallbackText = "No response"

// ErrStaleCompletion 表示完成回调不属于当前在途请求（或会话空闲）
var ErrStaleCompletion = errors.New("completion does not match the in-flight request")

type Origin string

const (
	OriginUser Origin = "user"
	OriginBot  Origin = "bot"
)

// Message 创建后不可变
type Message struct {
	Origin    Origin
	Text      string
	IsError   bool
	Audio     string // base64，可能为空
	CreatedAt time.Time
}

func (m Message) HasAudio() bool {
	return m.Audio != ""
}

type State int

const (
	Idle State = iota
	AwaitingResponse
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting_response"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Request 是 Submit 发出的调度凭据
type Request struct {
	ID    string
	Query string
}

// Outcome 是一次调度的结果，Err 为 nil 时 Response 有效
type Outcome struct {
	Response *api.ChatResponse
	Err      error
}

// Effect 描述完成后调用方需要执行的副作用
type Effect struct {
	PlayAudio string
}

type Session struct {
	history      []Message
	pendingInput string
	inFlight     *Request
	now          func() time.Time
}

func New() *Session {
	return &Session{now: time.Now}
}

// UpdatePendingInput 纯状态更新，任何时候都允许
func (s *Session) UpdatePendingInput(text string) {
	s.pendingInput = text
}

func (s *Session) PendingInput() string {
	return s.pendingInput
}

func (s *Session) InFlight() bool {
	return s.inFlight != nil
}

func (s *Session) State() State {
	if s.inFlight != nil {
		return AwaitingResponse
	}
	return Idle
}

// CanSubmit 报告 text 此刻能否发送，UI 用它禁用发送入口
func (s *Session) CanSubmit(text string) bool {
	return strings.TrimSpace(text) != "" && s.inFlight == nil
}

// Submit 追加用户消息并进入 AwaitingResponse。
// 输入为空或已有请求在途时不做任何改变并返回 false。
func (s *Session) Submit(text string) (Request, bool) {
	if !s.CanSubmit(text) {
		return Request{}, false
	}

	s.history = append(s.history, Message{
		Origin:    OriginUser,
		Text:      text,
		CreatedAt: s.now(),
	})
	s.pendingInput = ""

	req := Request{ID: uuid.NewString(), Query: strings.TrimSpace(text)}
	s.inFlight = &req
	return req, true
}

// Complete 结束在途请求并追加恰好一条 Bot 消息
func (s *Session) Complete(req Request, outcome Outcome) (Message, Effect, error) {
	if s.inFlight == nil || s.inFlight.ID != req.ID {
		return Message{}, Effect{}, ErrStaleCompletion
	}
	s.inFlight = nil

	msg := botMessage(outcome)
	msg.CreatedAt = s.now()
	s.history = append(s.history, msg)

	return msg, Effect{PlayAudio: msg.Audio}, nil
}

func botMessage(outcome Outcome) Message {
	if outcome.Err != nil {
		var apiErr *api.APIError
		if errors.As(outcome.Err, &apiErr) {
			return Message{
				Origin:  OriginBot,
				Text:    fmt.Sprintf("Error %d: %s", apiErr.StatusCode, apiErr.Body),
				IsError: true,
			}
		}
		return Message{
			Origin:  OriginBot,
			Text:    fmt.Sprintf("Network error: %s", outcome.Err.Error()),
			IsError: true,
		}
	}

	text, ok := outcome.Response.Text()
	if !ok {
		text = FallbackText
	}
	msg := Message{Origin: OriginBot, Text: text}
	if outcome.Response.HasAudio() {
		msg.Audio = outcome.Response.Audio
	}
	return msg
}

// History 返回历史的副本
func (s *Session) History() []Message {
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) Len() int {
	return len(s.history)
}

// LastAudio 返回最近一条带音频的 Bot 消息的音频
func (s *Session) LastAudio() (string, bool) {
	for i := len(s.history) - 1; i >= 0; i-- {
		if m := s.history[i]; m.Origin == OriginBot && m.HasAudio() {
			return m.Audio, true
		}
	}
	return "", false
}
