package tui

import "github.com/Zacy-Sokach/RagChat/internal/session"

// Message types for tea.Model

// ResponseMsg 携带一次调度的结果，回到事件循环后再应用到会话
type ResponseMsg struct {
	Request session.Request
	Outcome session.Outcome
}

// NoticeMsg 显示一条不进入历史的提示
type NoticeMsg struct {
	Text string
}
