package run

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/memberopt/internal/app/planner"
	"github.com/John-Robertt/memberopt/internal/config"
	"github.com/John-Robertt/memberopt/internal/domain"
	"github.com/John-Robertt/memberopt/internal/infra/fsx"
	"github.com/John-Robertt/memberopt/internal/infra/imgx"
	"github.com/John-Robertt/memberopt/internal/scan"
)

// Execute 执行一次完整遍历，并返回 RunReport。
// 单个文件的失败只体现在对应条目上，不影响其他文件。
func Execute(ctx context.Context, eff config.EffectiveConfig) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度（由上层决定是否启用）。
//
// 处理严格串行：一次只持有一个文件的解码缓冲；ctx 取消后在当前文件结束时停止。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	logger := slog.Default()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Path:      eff.Path,
		DryRun:    eff.DryRun,
		StartedAt: time.Now().UTC(),
		Items:     make([]domain.ItemResult, 0, 32),
	}

	scanStarted := time.Now()
	files, err := scan.ScanImages(eff.Path, FilterFor(eff))
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{"files": len(files)}, time.Since(scanStarted))
	}
	logger.Debug("scan done", slog.String("root", eff.Path), slog.Int("files", len(files)))

	planStarted := time.Now()
	plans := planner.PlanAll(files, eff.MinSizeBytes)
	total := planner.CountOptimize(plans)
	if obs != nil {
		obs.OnPhaseDone("plan", map[string]any{
			"optimize": total,
			"skip":     len(plans) - total,
		}, time.Since(planStarted))
	}

	idx := 0
	for _, p := range plans {
		if p.Action == domain.ActionSkip {
			logger.Debug("below threshold", slog.String("file", p.File.RelPath), slog.Int64("size", p.File.Size))
			rr.Items = append(rr.Items, skippedItem(p))
			continue
		}

		if err := ctx.Err(); err != nil {
			logger.Warn("run cancelled", slog.Int("done", idx), slog.Int("total", total))
			break
		}

		idx++
		if obs != nil {
			obs.OnFileStart(idx, total, p.File)
		}
		started := time.Now()

		var res domain.ItemResult
		if eff.DryRun {
			res = PlanOne(p, eff)
		} else {
			res = ProcessFile(p.File, eff)
		}
		rr.Items = append(rr.Items, res)

		if res.Status == domain.StatusFailed {
			logger.Debug("file failed", slog.String("file", p.File.RelPath), slog.String("error_code", res.ErrorCode), slog.String("error", res.ErrorMsg))
		}
		if obs != nil {
			obs.OnFileDone(idx, total, p.File, res, time.Since(started))
		}
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

// FilterFor 把生效配置映射为扫描过滤规则（run 与 watch 共用）。
func FilterFor(eff config.EffectiveConfig) scan.Filter {
	return scan.Filter{
		Marker:      eff.Marker,
		Extensions:  eff.Extensions,
		ExcludeDirs: eff.ExcludeDirs,
	}
}

// ProcessFile 对单个文件执行 打开 -> 按宽缩放 -> PNG 编码 -> 原地覆盖 -> 重新 stat。
//
// 调用方负责阈值判断；这里不再检查大小。
// 新内容先完整编码到内存再写回同一路径（同一 inode）：解码/缩放/编码失败时原文件不被打开写入。
func ProcessFile(f domain.ImageFile, eff config.EffectiveConfig) domain.ItemResult {
	item := domain.ItemResult{
		Path:       f.RelPath,
		Status:     domain.StatusOptimized,
		Reason:     domain.ReasonOversize,
		SizeBefore: f.Size,
	}

	in, err := os.Open(f.AbsPath)
	if err != nil {
		return failItem(item, err)
	}
	res, err := imgx.Optimize(bufio.NewReader(in), eff.MaxWidth, imgx.EncodeOptions{Quality: eff.Quality})
	_ = in.Close()
	if err != nil {
		return failItem(item, err)
	}
	item.Width, item.Height = res.Width, res.Height
	item.NewWidth, item.NewHeight = res.NewWidth, res.NewHeight

	if err := fsx.OverwriteFile(f.AbsPath, res.PNG); err != nil {
		return failItem(item, err)
	}

	fi, err := os.Stat(f.AbsPath)
	if err != nil {
		return failItem(item, err)
	}
	item.SizeAfter = fi.Size()
	return item
}

// PlanOne 是 dry-run 下的单文件处理：只探测头部尺寸，不写入任何内容。
func PlanOne(p domain.FilePlan, eff config.EffectiveConfig) domain.ItemResult {
	item := domain.ItemResult{
		Path:       p.File.RelPath,
		Status:     domain.StatusPlanned,
		Reason:     p.Reason,
		SizeBefore: p.File.Size,
		SizeAfter:  p.File.Size,
	}

	probed, err := planner.Probe(p, eff.MaxWidth)
	if err != nil {
		return failItem(item, err)
	}
	item.Width, item.Height = probed.Width, probed.Height
	item.NewWidth, item.NewHeight = probed.TargetWidth, probed.TargetHeight
	return item
}

// ErrorCodeOf 把单文件错误映射为 report 的 error_code。
func ErrorCodeOf(err error) string {
	switch {
	case errors.Is(err, imgx.ErrDecode):
		return domain.ErrCodeDecodeFailed
	case errors.Is(err, imgx.ErrResize):
		return domain.ErrCodeResizeFailed
	case errors.Is(err, imgx.ErrEncode):
		return domain.ErrCodeEncodeFailed
	default:
		return domain.ErrCodeIOFailed
	}
}

func failItem(item domain.ItemResult, err error) domain.ItemResult {
	item.Status = domain.StatusFailed
	item.ErrorCode = ErrorCodeOf(err)
	item.ErrorMsg = err.Error()
	item.SizeAfter = item.SizeBefore
	return item
}

func skippedItem(p domain.FilePlan) domain.ItemResult {
	return domain.ItemResult{
		Path:       p.File.RelPath,
		Status:     domain.StatusSkipped,
		Reason:     p.Reason,
		SizeBefore: p.File.Size,
		SizeAfter:  p.File.Size,
	}
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Path:      "",
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}
