package planner

import (
	"bufio"
	"os"

	"github.com/John-Robertt/memberopt/internal/domain"
	"github.com/John-Robertt/memberopt/internal/infra/imgx"
)

// PlanFile 只根据 stat 得到的大小做决定（不读文件内容）。
//
// 阈值比较是严格大于：Size == minSizeBytes 仍然跳过。
func PlanFile(f domain.ImageFile, minSizeBytes int64) domain.FilePlan {
	if f.Size <= minSizeBytes {
		return domain.FilePlan{
			File:   f,
			Action: domain.ActionSkip,
			Reason: domain.ReasonBelowThreshold,
		}
	}
	return domain.FilePlan{
		File:   f,
		Action: domain.ActionOptimize,
		Reason: domain.ReasonOversize,
	}
}

// PlanAll 对扫描结果逐个调用 PlanFile，顺序与输入一致。
func PlanAll(files []domain.ImageFile, minSizeBytes int64) []domain.FilePlan {
	plans := make([]domain.FilePlan, 0, len(files))
	for _, f := range files {
		plans = append(plans, PlanFile(f, minSizeBytes))
	}
	return plans
}

// Probe 读取图片头部补全宽高与目标尺寸（dry-run 使用；只读，不解码像素）。
// 对 skip 计划直接原样返回。
func Probe(p domain.FilePlan, maxWidth int) (domain.FilePlan, error) {
	if p.Action != domain.ActionOptimize {
		return p, nil
	}

	f, err := os.Open(p.File.AbsPath)
	if err != nil {
		return p, err
	}
	defer f.Close()

	w, h, err := imgx.Probe(bufio.NewReader(f))
	if err != nil {
		return p, err
	}
	tw, th, need, err := imgx.TargetSize(w, h, maxWidth)
	if err != nil {
		return p, err
	}

	p.Width, p.Height = w, h
	p.TargetWidth, p.TargetHeight = tw, th
	p.NeedResize = need
	return p, nil
}

// CountOptimize 统计需要处理的计划数（用于进度展示的分母）。
func CountOptimize(plans []domain.FilePlan) int {
	n := 0
	for i := range plans {
		if plans[i].Action == domain.ActionOptimize {
			n++
		}
	}
	return n
}
