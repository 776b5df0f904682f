package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/John-Robertt/memberopt/internal/app/run"
	"github.com/John-Robertt/memberopt/internal/config"
	"github.com/John-Robertt/memberopt/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 把 run/watch 的事件渲染为终端输出。
//
// 约束：
// - 每个文件的 Optimizing/Reduced/Failed 行总是写到 out（stdout），格式固定
// - 配置头、阶段统计与汇总表只在 diag（stderr）是终端时输出，避免污染管道/日志
type progressUI struct {
	out  io.Writer
	diag io.Writer

	interactive bool

	mu        sync.Mutex
	startedAt time.Time
}

func newProgressUI(out, diag io.Writer) *progressUI {
	return &progressUI{
		out:         out,
		diag:        diag,
		interactive: isTerminal(diag),
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}
	if !p.interactive {
		return
	}

	mode := "apply"
	modeHint := ""
	if eff.DryRun {
		mode = "dry-run"
		modeHint = " (不写入)"
	}

	fmt.Fprintf(p.diag, "[%s] memberopt (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.diag, "配置（生效）:")
	fmt.Fprintf(p.diag, "  path: %s\n", eff.Path)
	fmt.Fprintf(p.diag, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.diag, "  marker: %q\n", eff.Marker)
	fmt.Fprintf(p.diag, "  extensions: %s\n", strings.Join(eff.Extensions, ", "))
	fmt.Fprintf(p.diag, "  min_size: %.2f MB\n", domain.BytesToMiB(eff.MinSizeBytes))
	fmt.Fprintf(p.diag, "  max_width: %d\n", eff.MaxWidth)
	if len(eff.ExcludeDirs) > 0 {
		fmt.Fprintf(p.diag, "  exclude_dirs: %s\n", strings.Join(eff.ExcludeDirs, ", "))
	}
	if eff.Source != "" {
		fmt.Fprintf(p.diag, "  config: %s\n", eff.Source)
	}
	fmt.Fprintln(p.diag)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.interactive {
		return
	}

	switch name {
	case "scan":
		fmt.Fprintf(p.diag, "扫描: files=%d (%s)\n", intField(fields, "files"), formatShortDuration(dur))
	case "plan":
		fmt.Fprintf(p.diag, "规划: optimize=%d skip=%d (%s)\n\n",
			intField(fields, "optimize"), intField(fields, "skip"), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.diag, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnFileStart(idx, total int, f domain.ImageFile) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "Optimizing %s (%.2f MB)...\n", f.Name, f.SizeMiB())
}

func (p *progressUI) OnFileDone(idx, total int, f domain.ImageFile, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch res.Status {
	case domain.StatusFailed:
		fmt.Fprintf(p.out, "  Failed: %s\n", res.ErrorMsg)
	case domain.StatusPlanned:
		if res.NewWidth != res.Width || res.NewHeight != res.Height {
			fmt.Fprintf(p.out, "  -> Would resize to %dx%d (dry-run)\n", res.NewWidth, res.NewHeight)
		} else {
			fmt.Fprintln(p.out, "  -> Would re-encode as PNG (dry-run)")
		}
	default:
		fmt.Fprintf(p.out, "  -> Reduced to %.2f MB\n", domain.BytesToMiB(res.SizeAfter))
	}
}

// Finish 在一次完整遍历结束后调用；交互终端下打印汇总表。
func (p *progressUI) Finish(rr domain.RunReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.interactive {
		return
	}

	elapsed := time.Duration(0)
	if !p.startedAt.IsZero() {
		elapsed = time.Since(p.startedAt)
	}
	fmt.Fprintln(p.diag)
	fmt.Fprintln(p.diag, renderSummary(rr))
	fmt.Fprintf(p.diag, "完成: run_id=%s elapsed=%s\n", rr.RunID, formatShortDuration(elapsed))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	default:
		return 0
	}
}
