package tui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer 把机器人回答渲染为终端 Markdown，失败时退回原文
type MarkdownRenderer struct {
	mu       sync.Mutex
	width    int
	renderer *glamour.TermRenderer
	disabled bool
}

// NewMarkdownRenderer 创建渲染器；disabled 为 true 时始终输出原文
func NewMarkdownRenderer(width int, disabled bool) *MarkdownRenderer {
	r := &MarkdownRenderer{disabled: disabled}
	r.SetWidth(width)
	return r
}

// SetWidth 在窗口尺寸变化时重建渲染器
func (r *MarkdownRenderer) SetWidth(width int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if width <= 0 {
		width = 80
	}
	if r.disabled || (r.renderer != nil && r.width == width) {
		r.width = width
		return
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		r.renderer = nil
		return
	}
	r.width = width
	r.renderer = renderer
}

// Render 渲染 Markdown 文本为 ANSI 格式
func (r *MarkdownRenderer) Render(markdown string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if markdown == "" || r.disabled || r.renderer == nil {
		return markdown
	}

	out, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.Trim(out, "\n")
}
