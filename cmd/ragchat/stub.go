package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zacy-Sokach/RagChat/internal/logging"
	"github.com/Zacy-Sokach/RagChat/internal/stub"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	stubAddr      string
	stubAudioFile string
)

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Serve a local stand-in for the chatbot backend",
	Long: `Serves POST /api/chat with echo answers so the client can be tried
without the real retrieval backend. Logs go to stderr.`,
	RunE: runStub,
}

func init() {
	stubCmd.Flags().StringVar(&stubAddr, "addr", ":8000", "Listen address")
	stubCmd.Flags().StringVar(&stubAudioFile, "audio-file", "", "MPEG file returned as audio with every answer")
}

func runStub(cmd *cobra.Command, args []string) error {
	level := logLevelFlag
	if level == "" {
		level = "info"
	}
	logger, err := logging.New(logging.Options{Level: level})
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	opts := stub.Options{Logger: logger}
	if stubAudioFile != "" {
		data, err := os.ReadFile(stubAudioFile)
		if err != nil {
			return fmt.Errorf("读取音频文件失败: %w", err)
		}
		opts.Audio = data
	}

	server := &http.Server{
		Addr:              stubAddr,
		Handler:           stub.NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("stub backend listening", zap.String("addr", stubAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("启动服务失败: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down stub backend")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("关闭服务失败: %w", err)
	}
	return nil
}
