package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/memberopt/internal/config"
	"github.com/John-Robertt/memberopt/internal/infra/runlock"
	"github.com/John-Robertt/memberopt/internal/logging"
)

type commandContext struct {
	configFlag    *string
	logLevelFlag  *string
	logFormatFlag *string

	// lockDir 为空时锁文件放在 os.TempDir()；测试可替换。
	lockDir string
}

func newCommandContext(configFlag, logLevelFlag, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
	}
}

// load 合并配置文件与 CLI 参数，并按生效配置安装默认 slog logger。
func (c *commandContext) load(cmd *cobra.Command, cli config.CLIArgs) (config.EffectiveConfig, error) {
	cli.ConfigPath = deref(c.configFlag)
	cli.LogLevel = deref(c.logLevelFlag)
	cli.LogFormat = deref(c.logFormatFlag)

	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, fmt.Errorf("读取当前目录失败：%w", err)
	}

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		return config.EffectiveConfig{}, err
	}

	logger, err := logging.New(logging.Options{
		Level:  eff.LogLevel,
		Format: eff.LogFormat,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return config.EffectiveConfig{}, err
	}
	slog.SetDefault(logger)

	if eff.Source != "" {
		logger.Debug("config loaded", slog.String("file", eff.Source))
	}
	return eff, nil
}

func (c *commandContext) acquireLock(root string) (*runlock.Lock, error) {
	l, err := runlock.Acquire(c.lockDir, root)
	if err != nil {
		return nil, err
	}
	slog.Debug("lock acquired", slog.String("lock", l.Path))
	return l, nil
}

func releaseLock(l *runlock.Lock) {
	if err := l.Release(); err != nil {
		slog.Warn("failed to release lock", slog.String("lock", l.Path), slog.Any("error", err))
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
