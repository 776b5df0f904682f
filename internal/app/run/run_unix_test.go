//go:build unix

package run

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/John-Robertt/memberopt/internal/domain"
)

func TestExecute_OverwritesInPlace_SameInode(t *testing.T) {
	root := t.TempDir()
	photo := filepath.Join(root, "member_a.png")
	writeNoisePNG(t, photo, 1500, 900)
	twin := filepath.Join(t.TempDir(), "twin.png")
	if err := os.Link(photo, twin); err != nil {
		t.Skipf("文件系统不支持硬链接：%v", err)
	}
	before := inodeOf(t, photo)

	rr := Execute(context.Background(), defaults(root))
	if rr.Summary.Optimized != 1 {
		t.Fatalf("期望 1 个文件被优化：%+v items=%+v", rr.Summary, rr.Items)
	}

	if after := inodeOf(t, photo); after != before {
		t.Fatalf("应原地覆盖（inode 不变）：before=%d after=%d", before, after)
	}
	if !os.SameFile(mustStat(t, photo), mustStat(t, twin)) {
		t.Fatalf("硬链接不应被拆开")
	}
	assertDims(t, twin, 1200, 720)

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("读取目录失败：%v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("根目录下不应创建额外文件，实际 %d 项", len(entries))
	}
}

func TestExecute_ReadOnlyDirWritableFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "team")
	photo := filepath.Join(dir, "member_b.png")
	writeNoisePNG(t, photo, 1500, 900)
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatalf("chmod 失败：%v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	rr := Execute(context.Background(), defaults(root))
	if rr.Summary.Optimized != 1 || rr.Summary.Failed != 0 {
		t.Fatalf("目录不可写但文件可写时应成功：%+v items=%+v", rr.Summary, rr.Items)
	}
	assertDims(t, photo, 1200, 720)
}

func TestExecute_SymlinkedMemberImage(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(t.TempDir(), "portrait.png")
	writeNoisePNG(t, target, 1500, 300)
	link := filepath.Join(root, "member_link.png")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("不支持符号链接：%v", err)
	}

	rr := Execute(context.Background(), defaults(root))
	if rr.Summary.Inspected != 1 || rr.Summary.Optimized != 1 {
		t.Fatalf("符号链接指向的图片应被处理：%+v items=%+v", rr.Summary, rr.Items)
	}
	if rr.Items[0].Path != "member_link.png" || rr.Items[0].Status != domain.StatusOptimized {
		t.Fatalf("条目不符合预期：%+v", rr.Items[0])
	}

	fi, err := os.Lstat(link)
	if err != nil {
		t.Fatalf("Lstat 失败：%v", err)
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("链接本身应保持为符号链接")
	}
	assertDims(t, target, 1200, 240)
}

func inodeOf(t *testing.T, path string) uint64 {
	t.Helper()
	st, ok := mustStat(t, path).Sys().(*syscall.Stat_t)
	if !ok {
		t.Skip("无法读取 inode")
	}
	return uint64(st.Ino)
}

func assertDims(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("打开文件失败：%v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("结果不是 PNG：%v", err)
	}
	if cfg.Width != w || cfg.Height != h {
		t.Fatalf("尺寸不符合预期：期望 %dx%d，实际 %dx%d", w, h, cfg.Width, cfg.Height)
	}
}
