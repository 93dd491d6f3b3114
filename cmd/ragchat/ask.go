package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// errAnswerFailed 表示后端或网络错误，错误文本已经打印给用户
var errAnswerFailed = errors.New("answer failed")

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask a single question and print the answer",
	Long: `Sends one question to the backend, prints the answer and plays its
audio (if any) before exiting. Exits with status 1 when the backend or the
network fails; the error text goes to stderr.

Example:
  ragchat ask "What was Galp's revenue in 2023?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var errorTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	logger, err := newFileLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := newController(ctx, cfg, logger)
	question := strings.Join(args, " ")

	msg, ok, err := controller.Send(ctx, question)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("问题不能为空")
	}

	if msg.IsError {
		fmt.Fprintln(cmd.ErrOrStderr(), errorTextStyle.Render(msg.Text))
		return errAnswerFailed
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg.Text)

	// 等待音频播完再退出
	controller.Wait()
	return nil
}
