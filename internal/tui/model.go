package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/Zacy-Sokach/RagChat/internal/session"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

const (
	inputHeight  = 3
	loadingLabel = "Loading..."
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	descStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	botStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	waitingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Options 控制界面文案和渲染方式
type Options struct {
	Title       string
	Description string
	// PlainText 关闭 Markdown 渲染
	PlainText bool
	Logger    *zap.Logger
}

type Model struct {
	viewport      viewport.Model
	textarea      textarea.Model
	spinner       spinner.Model
	controller    *session.Controller
	commandParser *CommandParser
	markdown      *MarkdownRenderer
	logger        *zap.Logger
	title         string
	description   string
	notice        string
	width         int
	ready         bool
	ctx           context.Context
}

func InitialModel(controller *session.Controller, opts Options) *Model {
	ta := textarea.New()
	ta.Placeholder = "Type your question..."
	ta.Focus()
	ta.CharLimit = 0
	ta.SetWidth(80)
	ta.SetHeight(inputHeight)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = waitingStyle

	vp := newViewport(80, 20)

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Model{
		textarea:      ta,
		viewport:      vp,
		spinner:       sp,
		controller:    controller,
		commandParser: NewCommandParser(),
		markdown:      NewMarkdownRenderer(80, opts.PlainText),
		logger:        logger,
		title:         opts.Title,
		description:   opts.Description,
		width:         80,
		ctx:           context.Background(),
	}
	m.updateViewport()
	return m
}

// newViewport 创建历史区域。输入框拥有字母和方向键，历史只响应翻页键。
func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.KeyMap = viewport.KeyMap{
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
	}
	return vp
}

func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

// Sending 报告当前是否有请求在途（此时发送入口被禁用）
func (m *Model) Sending() bool {
	return m.controller.Session().InFlight()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.handleEnter()
		}
		if m.Sending() {
			// 请求在途时输入框失焦，按键不再转发
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case ResponseMsg:
		if _, err := m.controller.Resolve(msg.Request, msg.Outcome); err != nil {
			m.logger.Warn("dropping response", zap.Error(err))
			return m, nil
		}
		m.textarea.Focus()
		m.updateViewport()
		return m, textarea.Blink

	case NoticeMsg:
		m.notice = msg.Text
		m.updateViewport()
		return m, nil

	case spinner.TickMsg:
		if !m.Sending() {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		m.updateViewport()
		return m, cmd
	}

	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.controller.UpdatePendingInput(m.textarea.Value())

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) handleEnter() tea.Cmd {
	if m.Sending() {
		return nil
	}

	input := m.textarea.Value()
	if command := m.commandParser.Parse(input); command != nil {
		m.textarea.Reset()
		m.controller.UpdatePendingInput("")
		return m.handleCommand(command)
	}

	req, ok := m.controller.Submit(input)
	if !ok {
		return nil
	}

	m.notice = ""
	m.textarea.Reset()
	m.textarea.Blur()
	m.updateViewport()

	return tea.Batch(m.dispatch(req), m.spinner.Tick)
}

// dispatch 在 tea.Cmd 的 goroutine 中发请求，结果以 ResponseMsg 回到事件循环
func (m *Model) dispatch(req session.Request) tea.Cmd {
	controller := m.controller
	ctx := m.ctx
	return func() tea.Msg {
		return ResponseMsg{Request: req, Outcome: controller.Dispatch(ctx, req)}
	}
}

// handleCommand 处理命令，命令不进入历史也不发给后端
func (m *Model) handleCommand(cmd *Command) tea.Cmd {
	switch cmd.Type {
	case CommandTypeQuit:
		return tea.Quit
	case CommandTypeHelp:
		return notice(helpText)
	case CommandTypeReplay:
		if !m.controller.Replay() {
			return notice("No audio to replay yet.")
		}
		return notice("Replaying the last answer.")
	default:
		return notice(fmt.Sprintf("Command '%s' is not supported", FormatCommandType(cmd.Type)))
	}
}

func notice(text string) tea.Cmd {
	return func() tea.Msg {
		return NoticeMsg{Text: text}
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.markdown.SetWidth(width)

	vpHeight := height - lipgloss.Height(m.headerView()) - inputHeight - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.viewport = newViewport(width, vpHeight)
		m.viewport.YPosition = 0
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(width)
	m.updateViewport()
}

func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	return fmt.Sprintf(
		"%s\n%s\n\n%s\n%s",
		m.headerView(),
		m.viewport.View(),
		m.textarea.View(),
		m.helpView(),
	)
}

func (m *Model) headerView() string {
	header := titleStyle.Render(m.title)
	if m.description != "" {
		header += "\n" + descStyle.Width(m.width).Render(m.description)
	}
	return header
}

func (m *Model) updateViewport() {
	m.viewport.SetContent(m.formatMessages())
	m.viewport.GotoBottom()
}

func (m *Model) formatMessages() string {
	history := m.controller.Session().History()

	var sb strings.Builder
	sb.Grow(len(history)*200 + 64)

	for _, msg := range history {
		switch msg.Origin {
		case session.OriginUser:
			sb.WriteString(userStyle.Render("You: "))
			sb.WriteString(msg.Text)
		case session.OriginBot:
			sb.WriteString(botStyle.Render("Bot: "))
			if msg.IsError {
				sb.WriteString(errorStyle.Render(msg.Text))
			} else {
				sb.WriteString(m.markdown.Render(msg.Text))
			}
			if msg.HasAudio() {
				sb.WriteString(" ♪")
			}
		}
		sb.WriteString("\n\n")
	}

	if m.Sending() {
		sb.WriteString(botStyle.Render("Bot: "))
		sb.WriteString(m.spinner.View())
		sb.WriteString(waitingStyle.Render(loadingLabel))
		sb.WriteString("\n\n")
	}

	if m.notice != "" {
		sb.WriteString(noticeStyle.Render(m.notice))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Model) helpView() string {
	if m.Sending() {
		return waitingStyle.Render("Waiting for the answer... sending is disabled") +
			helpStyle.Render(" • Esc: quit")
	}
	send := "Enter: send"
	if !m.controller.CanSubmit(m.textarea.Value()) {
		send = "type a question to send"
	}
	return helpStyle.Render(send + " • PgUp/PgDn: scroll • /help • /replay • Esc: quit")
}
