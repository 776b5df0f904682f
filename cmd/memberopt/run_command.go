package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/memberopt/internal/app/run"
	"github.com/John-Robertt/memberopt/internal/config"
	"github.com/John-Robertt/memberopt/internal/domain"
	"github.com/John-Robertt/memberopt/internal/infra/fsx"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var report string

	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "遍历目录并优化所有超过阈值的成员图片（原地覆盖）",
		Long: `遍历 path（默认 public/images/team）下的所有文件：
文件名包含 marker（默认 "member"，区分大小写）且扩展名为 .png/.jpg/.jpeg（不区分大小写）、
大小超过阈值（默认 1 MiB）的图片，宽度超过 1200px 时等比缩放到 1200px，
然后以 PNG 格式原地覆盖原文件。单个文件失败不影响其他文件（退出码仍为 0）；
path 不存在或无法读取、配置无效、目录已被另一个进程锁定时退出码为 1。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := config.CLIArgs{
				DryRun:    dryRun,
				DryRunSet: cmd.Flags().Changed("dry-run"),
				Report:    report,
			}
			if len(args) == 1 {
				cli.Path = args[0]
			}

			eff, err := ctx.load(cmd, cli)
			if err != nil {
				return err
			}

			lock, err := ctx.acquireLock(eff.Path)
			if err != nil {
				return err
			}
			defer releaseLock(lock)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return executeRun(runCtx, cmd, eff)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "只报告将要处理的文件，不写入（支持 --dry-run=false 覆盖配置）")
	cmd.Flags().StringVar(&report, "report", "", "把 JSON 运行报告写到该文件（默认不写）")

	return cmd
}

func executeRun(ctx context.Context, cmd *cobra.Command, eff config.EffectiveConfig) error {
	ui := newProgressUI(cmd.OutOrStdout(), cmd.ErrOrStderr())
	rr := run.ExecuteWithObserver(ctx, eff, ui)

	if eff.Report != "" {
		if err := writeReportFile(eff.Report, rr); err != nil {
			return fmt.Errorf("写入报告 %q 失败：%w", eff.Report, err)
		}
	}

	ui.Finish(rr)

	if err := fatalItem(rr); err != nil {
		return err
	}
	return ctx.Err()
}

// fatalItem 找出 path=="" 的合成失败条目（例如根目录无法扫描）：这类错误使进程以非 0 退出。
// 单个文件的失败不影响退出码。
func fatalItem(rr domain.RunReport) error {
	for _, it := range rr.Items {
		if it.Path == "" && it.Status == domain.StatusFailed {
			return fmt.Errorf("%s：%s", it.ErrorCode, it.ErrorMsg)
		}
	}
	return nil
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), b)
}
