package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Zacy-Sokach/RagChat/internal/utils"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultOrigin      = "http://localhost:8000"
	DefaultTitle       = "PSI 20 Chatbot"
	minRequestTimeout  = time.Millisecond
	DefaultDescription = "This chatbot provides information about PSI 20 companies using Retrieval-Augmented Generation (RAG). Ask questions about Portuguese stock market companies!"
)

type Config struct {
	Origin         string        `yaml:"origin"`
	Audio          AudioConfig   `yaml:"audio"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Log            LogConfig     `yaml:"log"`
	UI             UIConfig      `yaml:"ui"`
}

type AudioConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Player     string   `yaml:"player"`
	PlayerArgs []string `yaml:"player_args"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type UIConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Origin: DefaultOrigin,
		Audio: AudioConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
		UI: UIConfig{
			Title:       DefaultTitle,
			Description: DefaultDescription,
		},
	}
}

// LoadConfig 从默认配置目录加载配置，再叠加 .env 与环境变量
func LoadConfig() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFrom(configPath)
}

// LoadConfigFrom 从指定文件加载配置，文件不存在时使用默认值。
// 不做校验：调用方叠加命令行参数后再调用 Validate。
func LoadConfigFrom(configPath string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	if err := config.applyEnvOverrides(); err != nil {
		return nil, err
	}
	config.fillDefaults()
	return config, nil
}

// loadDotEnv 加载当前目录下的 .env，不覆盖已存在的环境变量
func loadDotEnv() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("加载 .env 失败: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := strings.TrimSpace(os.Getenv("RAGCHAT_ORIGIN")); v != "" {
		c.Origin = v
	}
	if v := strings.TrimSpace(os.Getenv("RAGCHAT_AUDIO")); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("无效的 RAGCHAT_AUDIO %q: %w", v, err)
		}
		c.Audio.Enabled = enabled
	}
	if v := strings.TrimSpace(os.Getenv("RAGCHAT_PLAYER")); v != "" {
		fields := strings.Fields(v)
		c.Audio.Player = fields[0]
		c.Audio.PlayerArgs = fields[1:]
	}
	if v := strings.TrimSpace(os.Getenv("RAGCHAT_LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("RAGCHAT_REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("无效的 RAGCHAT_REQUEST_TIMEOUT %q: %w", v, err)
		}
		c.RequestTimeout = d
	}
	return nil
}

func (c *Config) fillDefaults() {
	if strings.TrimSpace(c.Origin) == "" {
		c.Origin = DefaultOrigin
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.UI.Title == "" {
		c.UI.Title = DefaultTitle
	}
}

// Validate 检查 origin 和超时
func (c *Config) Validate() error {
	u, err := url.Parse(c.Origin)
	if err != nil {
		return fmt.Errorf("无效的 origin %q: %w", c.Origin, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("origin 必须是 http(s) 绝对地址: %q", c.Origin)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout 不能为负数: %s", c.RequestTimeout)
	}
	// 不带单位的整数会被解析为纳秒
	if c.RequestTimeout > 0 && c.RequestTimeout < minRequestTimeout {
		return fmt.Errorf("request_timeout 过小 (%s)，需要带单位，例如 30s", c.RequestTimeout)
	}
	return nil
}

// LogFilePath 返回日志文件路径，未配置时放在配置目录下
func (c *Config) LogFilePath() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	configDir, err := utils.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("获取配置目录失败: %w", err)
	}
	return filepath.Join(configDir, "ragchat.log"), nil
}

func SaveConfig(config *Config) error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}
	return SaveConfigTo(config, configPath)
}

func SaveConfigTo(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// ConfigPath 返回默认配置文件路径
func ConfigPath() (string, error) {
	return getConfigPath()
}

func getConfigPath() (string, error) {
	configDir, err := utils.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("获取配置目录失败: %w", err)
	}
	return filepath.Join(configDir, "config.yaml"), nil
}
