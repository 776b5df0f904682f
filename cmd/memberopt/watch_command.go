package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/memberopt/internal/app/watch"
	"github.com/John-Robertt/memberopt/internal/config"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var noInitial bool

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "持续监听目录，新增或修改的成员图片超过阈值时立即优化",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := config.CLIArgs{}
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

			ui := newProgressUI(cmd.OutOrStdout(), cmd.ErrOrStderr())
			w, err := watch.New(eff, ui, watch.Options{Initial: !noInitial})
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return w.Run(runCtx)
		},
	}

	cmd.Flags().BoolVar(&noInitial, "no-initial", false, "跳过开始监听时的首轮完整遍历")

	return cmd
}
