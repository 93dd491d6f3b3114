// Package audio plays the MPEG audio attached to backend responses.
package audio

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// ErrNoPlayer 表示系统中找不到可用的播放器
var ErrNoPlayer = errors.New("未找到可用的音频播放器")

// Player 播放一段完整的音频数据
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// candidate 描述一个从标准输入读取 MPEG 数据的外部播放器
type candidate struct {
	command string
	args    []string
}

var candidates = []candidate{
	{command: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-"}},
	{command: "mpg123", args: []string{"-q", "-"}},
	{command: "mpv", args: []string{"--no-video", "--really-quiet", "-"}},
}

// ExecPlayer 把音频写入外部播放器进程的标准输入
type ExecPlayer struct {
	Command string
	Args    []string
}

func (p *ExecPlayer) Play(ctx context.Context, audio []byte) error {
	if len(audio) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	cmd.Stdin = bytes.NewReader(audio)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("播放失败 (%s): %w: %s", p.Command, err, msg)
		}
		return fmt.Errorf("播放失败 (%s): %w", p.Command, err)
	}
	return nil
}

func (p *ExecPlayer) String() string {
	return strings.TrimSpace(p.Command + " " + strings.Join(p.Args, " "))
}

// NopPlayer 丢弃音频，用于禁用音频或没有播放器时
type NopPlayer struct{}

func (NopPlayer) Play(context.Context, []byte) error { return nil }

// lookPath 可在测试中替换
var lookPath = exec.LookPath

// Detect 按顺序查找第一个可用的播放器
func Detect() (*ExecPlayer, error) {
	for _, c := range candidates {
		if path, err := lookPath(c.command); err == nil {
			return &ExecPlayer{Command: path, Args: append([]string(nil), c.args...)}, nil
		}
	}
	return nil, ErrNoPlayer
}

// New 根据配置构造播放器。
// command 为空时自动探测；找不到播放器时退化为 NopPlayer 并记录一次警告。
func New(enabled bool, command string, args []string, logger *zap.Logger) Player {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !enabled {
		logger.Info("audio playback disabled")
		return NopPlayer{}
	}

	if command != "" {
		path, err := lookPath(command)
		if err != nil {
			logger.Warn("configured audio player not found", zap.String("player", command), zap.Error(err))
			return NopPlayer{}
		}
		return &ExecPlayer{Command: path, Args: args}
	}

	p, err := Detect()
	if err != nil {
		logger.Warn("audio playback unavailable", zap.Error(err))
		return NopPlayer{}
	}
	logger.Info("audio player detected", zap.String("player", p.String()))
	return p
}

// DecodeBase64 解码后端返回的 base64 音频，兼容有无填充两种形式
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "data:audio/mpeg;base64,")
	if s == "" {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	data, rawErr := base64.RawStdEncoding.DecodeString(s)
	if rawErr == nil {
		return data, nil
	}
	return nil, fmt.Errorf("解码音频失败: %w", err)
}
