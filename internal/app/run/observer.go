package run

import (
	"time"

	"github.com/John-Robertt/memberopt/internal/config"
	"github.com/John-Robertt/memberopt/internal/domain"
)

// Observer 用于把“运行进度/阶段/文件结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出
// - 低于阈值而跳过的文件不产生 OnFileStart/OnFileDone（静默跳过）
type Observer interface {
	// OnStart 在执行开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在 scan/plan 阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnFileStart 在开始处理一个超过阈值的文件时调用（idx 从 1 开始）。
	OnFileStart(idx, total int, f domain.ImageFile)
	// OnFileDone 在该文件处理结束（成功/失败/dry-run 规划）时调用。
	OnFileDone(idx, total int, f domain.ImageFile, res domain.ItemResult, dur time.Duration)
}
