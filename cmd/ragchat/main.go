package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/Zacy-Sokach/RagChat/internal/api"
	"github.com/Zacy-Sokach/RagChat/internal/audio"
	"github.com/Zacy-Sokach/RagChat/internal/config"
	"github.com/Zacy-Sokach/RagChat/internal/logging"
	"github.com/Zacy-Sokach/RagChat/internal/session"
	"github.com/Zacy-Sokach/RagChat/internal/tui"
	"github.com/Zacy-Sokach/RagChat/internal/utils"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	Version = "dev"

	// 全局参数
	originFlag   string
	noAudio      bool
	logLevelFlag string
	configFile   string
	plainText    bool
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Terminal client for the PSI 20 RAG chatbot",
	Long: `ragchat sends your questions to a retrieval-augmented chatbot backend
(POST {origin}/api/chat) and shows the answers in an interactive terminal UI.
Answers that carry audio are played through an external player.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runInteractive,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ragchat %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&originFlag, "origin", "", "Backend origin, \"/api\" is appended (or set RAGCHAT_ORIGIN)")
	rootCmd.PersistentFlags().BoolVar(&noAudio, "no-audio", false, "Disable audio playback")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: <config dir>/config.yaml)")
	rootCmd.Flags().BoolVar(&plainText, "plain", false, "Show answers without Markdown rendering")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(stubCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	// 添加panic恢复
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "程序发生panic: %v\n", r)
			fmt.Fprintln(os.Stderr, "堆栈跟踪:")
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errAnswerFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// loadSettings 加载配置并叠加命令行参数
func loadSettings() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadConfigFrom(configFile)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	if originFlag != "" {
		cfg.Origin = originFlag
	}
	if noAudio {
		cfg.Audio.Enabled = false
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}
	return cfg, nil
}

// newFileLogger 把日志写到文件，终端留给界面输出
func newFileLogger(cfg *config.Config) (*zap.Logger, error) {
	path, err := cfg.LogFilePath()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, File: path})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return logger, nil
}

// newController 按配置组装客户端、播放器和会话控制器
func newController(ctx context.Context, cfg *config.Config, logger *zap.Logger) *session.Controller {
	client := api.NewClient(cfg.Origin,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(logger),
	)
	player := audio.New(cfg.Audio.Enabled, cfg.Audio.Player, cfg.Audio.PlayerArgs, logger)

	logger.Info("session started",
		zap.String("endpoint", client.Endpoint()),
		zap.Bool("audio", cfg.Audio.Enabled),
		zap.Duration("request_timeout", cfg.RequestTimeout),
	)
	return session.NewController(client, player,
		session.WithLogger(logger),
		session.WithPlaybackContext(ctx),
	)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	// 检查是否在交互式终端中
	if !isTerminal() {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "ragchat 运行在非交互式模式")
		fmt.Fprintln(out, "请在交互式终端中运行以获得完整TUI体验，或使用 `ragchat ask <问题>`")
		fmt.Fprintf(out, "当前后端: %s\n", api.BaseURL(cfg.Origin))
		fmt.Fprintf(out, "配置文件: %s\n", utils.GetConfigPathForDisplay())
		return nil
	}

	logger, err := newFileLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	controller := newController(ctx, cfg, logger)

	model := tui.InitialModel(controller, tui.Options{
		Title:       cfg.UI.Title,
		Description: cfg.UI.Description,
		PlainText:   plainText,
		Logger:      logger,
	})
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, runErr := p.Run()

	// 退出时停止仍在播放的音频
	cancel()
	controller.Wait()

	if runErr != nil {
		return fmt.Errorf("程序运行错误: %w", runErr)
	}
	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("8")).
		Render(fmt.Sprintf("%d messages this session", controller.Session().Len())))
	return nil
}

func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
