package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Zacy-Sokach/RagChat/internal/config"
	"github.com/Zacy-Sokach/RagChat/internal/utils"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var writeDefaults bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Prints the configuration after applying the config file, .env,
environment variables and flags. With --init a default config file is
written when none exists yet.`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&writeDefaults, "init", false, "Write a default config file if missing")
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if writeDefaults {
		path := configFile
		if path == "" {
			var err error
			if path, err = config.ConfigPath(); err != nil {
				return err
			}
		}
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(out, "配置文件已存在: %s\n", path)
		} else if errors.Is(err, os.ErrNotExist) {
			if err := config.SaveConfigTo(config.Default(), path); err != nil {
				return fmt.Errorf("保存配置失败: %w", err)
			}
			fmt.Fprintln(out, lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("默认配置已保存: "+path))
		} else {
			return fmt.Errorf("检查配置文件失败: %w", err)
		}
	}

	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	source := configFile
	if source == "" {
		source = utils.GetConfigPathForDisplay()
	}
	fmt.Fprintf(out, "# %s\n%s", source, data)
	return nil
}
