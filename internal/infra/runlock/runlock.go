package runlock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked 表示同一 root 上已有另一个 run/watch 在执行。
var ErrLocked = errors.New("runlock: 该目录已被另一个 memberopt 进程占用")

// Lock 是针对某个扫描根目录的进程级 advisory lock。
//
// 锁文件放在 os.TempDir() 下，文件名由 root 的绝对路径哈希得到：
// 不在 root 内创建任何文件。
type Lock struct {
	Root string
	Path string

	fl *flock.Flock
}

// PathFor 返回 root 对应的锁文件路径（dir 为空时使用 os.TempDir()）。
func PathFor(dir, root string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return filepath.Join(dir, "memberopt-"+hex.EncodeToString(sum[:8])+".lock")
}

// Acquire 以非阻塞方式获取 root 的锁；已被占用时返回 ErrLocked。
func Acquire(dir, root string) (*Lock, error) {
	p := PathFor(dir, root)
	fl := flock.New(p)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("获取锁 %q 失败：%w", p, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w（锁文件 %s）", ErrLocked, p)
	}
	return &Lock{Root: root, Path: p, fl: fl}, nil
}

// Release 释放锁。锁文件本身保留（删除会与并发的 TryLock 产生竞争）。
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
