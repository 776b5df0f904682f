package planner

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/memberopt/internal/domain"
	"github.com/John-Robertt/memberopt/internal/infra/imgx"
)

func TestPlanFile_SizeGate(t *testing.T) {
	const mib = domain.MiB

	small := PlanFile(domain.ImageFile{Size: mib}, mib)
	if small.Action != domain.ActionSkip || small.Reason != domain.ReasonBelowThreshold {
		t.Fatalf("恰好 1 MiB 应跳过：%+v", small)
	}

	big := PlanFile(domain.ImageFile{Size: mib + 1}, mib)
	if big.Action != domain.ActionOptimize {
		t.Fatalf("超过 1 MiB 应处理：%+v", big)
	}
}

func TestPlanAll_CountOptimize(t *testing.T) {
	files := []domain.ImageFile{
		{RelPath: "a", Size: 10},
		{RelPath: "b", Size: 2 * domain.MiB},
		{RelPath: "c", Size: 3 * domain.MiB},
	}
	plans := PlanAll(files, domain.MiB)
	if len(plans) != 3 || CountOptimize(plans) != 2 {
		t.Fatalf("计划不符合预期：%+v", plans)
	}
}

func TestProbe_FillsTargetSize(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "member_wide.png")
	writePNG(t, p, 2400, 10)

	plan := domain.FilePlan{File: domain.ImageFile{AbsPath: p}, Action: domain.ActionOptimize}
	got, err := Probe(plan, 1200)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !got.NeedResize || got.Width != 2400 || got.Height != 10 || got.TargetWidth != 1200 || got.TargetHeight != 5 {
		t.Fatalf("probe 结果不符合预期：%+v", got)
	}
}

func TestProbe_SkipUntouched(t *testing.T) {
	plan := domain.FilePlan{File: domain.ImageFile{AbsPath: "/nope"}, Action: domain.ActionSkip}
	got, err := Probe(plan, 1200)
	if err != nil || got != plan {
		t.Fatalf("skip 计划应原样返回：%+v err=%v", got, err)
	}
}

func TestProbe_Corrupt(t *testing.T) {
	p := filepath.Join(t.TempDir(), "member_broken.png")
	if err := os.WriteFile(p, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	_, err := Probe(domain.FilePlan{File: domain.ImageFile{AbsPath: p}, Action: domain.ActionOptimize}, 1200)
	if !errors.Is(err, imgx.ErrDecode) {
		t.Fatalf("期望 ErrDecode，实际 %v", err)
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("创建文件失败：%v", err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png 失败：%v", err)
	}
}
