package tui

import (
	"regexp"
	"strings"
)

// CommandType 命令类型
type CommandType int

const (
	CommandTypeUnknown CommandType = iota
	CommandTypeHelp
	CommandTypeReplay
	CommandTypeQuit
)

// Command 解析后的命令
type Command struct {
	Type CommandType
	Raw  string
}

// CommandParser 命令解析器。只做整行精确匹配，其它输入都当作问题发送。
type CommandParser struct {
	helpPatterns   []*regexp.Regexp
	replayPatterns []*regexp.Regexp
	quitPatterns   []*regexp.Regexp
}

// NewCommandParser 创建新的命令解析器
func NewCommandParser() *CommandParser {
	parser := &CommandParser{}
	parser.initializePatterns()
	return parser
}

func (p *CommandParser) initializePatterns() {
	p.helpPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^/help$`),
		regexp.MustCompile(`^/\?$`),
	}
	p.replayPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^/replay$`),
	}
	p.quitPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^/quit$`),
		regexp.MustCompile(`^/exit$`),
	}
}

// Parse 解析命令字符串，不是命令时返回 nil
func (p *CommandParser) Parse(input string) *Command {
	input = strings.TrimSpace(input)
	if input == "" || !strings.HasPrefix(input, "/") {
		return nil
	}

	groups := []struct {
		cmdType  CommandType
		patterns []*regexp.Regexp
	}{
		{CommandTypeHelp, p.helpPatterns},
		{CommandTypeReplay, p.replayPatterns},
		{CommandTypeQuit, p.quitPatterns},
	}

	for _, g := range groups {
		for _, pattern := range g.patterns {
			if pattern.MatchString(input) {
				return &Command{Type: g.cmdType, Raw: input}
			}
		}
	}
	return nil
}

// IsCommand 检查字符串是否为命令
func (p *CommandParser) IsCommand(input string) bool {
	return p.Parse(input) != nil
}

// FormatCommandType 格式化命令类型为字符串
func FormatCommandType(cmdType CommandType) string {
	switch cmdType {
	case CommandTypeHelp:
		return "HELP"
	case CommandTypeReplay:
		return "REPLAY"
	case CommandTypeQuit:
		return "QUIT"
	default:
		return "UNKNOWN"
	}
}

const helpText = "Commands: /help  show this help • /replay  play the last answer's audio again • /quit  exit"
