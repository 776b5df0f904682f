package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag, logLevelFlag, logFormatFlag string

	ctx := newCommandContext(&configFlag, &logLevelFlag, &logFormatFlag)

	rootCmd := &cobra.Command{
		Use:           "memberopt",
		Short:         "缩小团队成员图片：超过阈值的图片按最大宽度缩放并原地重写为 PNG",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "配置文件路径（默认尝试 ./memberopt.toml）")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "诊断日志级别：debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "诊断日志格式：console|json")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))

	return rootCmd
}
