package runlock

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquire_SecondHolderRejected(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(t.TempDir(), "team")

	l1, err := Acquire(dir, root)
	if err != nil {
		t.Fatalf("第一次获取不期望错误：%v", err)
	}

	if _, err := Acquire(dir, root); !errors.Is(err, ErrLocked) {
		t.Fatalf("期望 ErrLocked，实际 %v", err)
	}

	if err := l1.Release(); err != nil {
		t.Fatalf("Release 失败：%v", err)
	}

	l2, err := Acquire(dir, root)
	if err != nil {
		t.Fatalf("释放后应能再次获取：%v", err)
	}
	_ = l2.Release()
}

func TestPathFor_NotUnderRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "team")
	dir := t.TempDir()

	p := PathFor(dir, root)
	if strings.HasPrefix(p, root) {
		t.Fatalf("锁文件不应位于 root 内：%q", p)
	}
	if PathFor(dir, root+string(filepath.Separator)) != p {
		t.Fatalf("同一 root（clean 后）应得到同一锁文件")
	}
	if PathFor(dir, root+"2") == p {
		t.Fatalf("不同 root 不应共享锁文件")
	}
}
