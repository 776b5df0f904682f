package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/John-Robertt/memberopt/internal/app/planner"
	"github.com/John-Robertt/memberopt/internal/app/run"
	"github.com/John-Robertt/memberopt/internal/config"
	"github.com/John-Robertt/memberopt/internal/domain"
	"github.com/John-Robertt/memberopt/internal/scan"
)

// Options 控制 watch 的附加行为。
type Options struct {
	// Initial 为 true 时，开始监听后先对整棵目录执行一次完整遍历。
	Initial bool
	Logger  *slog.Logger
}

// Watcher 监听 root 下的新建/修改事件，并对候选图片执行与 run 相同的单文件处理。
//
// 约束：
// - 事件按路径 debounce，处理始终在 Run 所在的 goroutine 中串行进行
// - 自己写回的文件按 (size, mtime) 识别并忽略，避免写回再次触发处理
type Watcher struct {
	eff    config.EffectiveConfig
	filter scan.Filter
	obs    run.Observer
	opts   Options
	logger *slog.Logger

	fsw   *fsnotify.Watcher
	ready chan string

	mu      sync.Mutex
	timers  map[string]*time.Timer
	written map[string]stamp

	started chan struct{}
	seq     int
}

type stamp struct {
	size    int64
	modTime time.Time
}

// New 创建 Watcher（此时尚未开始监听）。
func New(eff config.EffectiveConfig, obs run.Observer, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建 fsnotify watcher 失败：%w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		eff:     eff,
		filter:  run.FilterFor(eff),
		obs:     obs,
		opts:    opts,
		logger:  logger,
		fsw:     fsw,
		ready:   make(chan string, 64),
		timers:  map[string]*time.Timer{},
		written: map[string]stamp{},
		started: make(chan struct{}),
	}, nil
}

// Started 在目录监听就绪（以及可选的首轮遍历完成）后关闭。
func (w *Watcher) Started() <-chan struct{} { return w.started }

// Run 阻塞直到 ctx 取消或 fsnotify 关闭；返回 nil 表示正常退出。
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	defer w.stopTimers()

	if err := w.addTree(w.eff.Path); err != nil {
		return err
	}

	if w.opts.Initial {
		rr := run.ExecuteWithObserver(ctx, w.eff, w.obs)
		for _, it := range rr.Items {
			if it.Status == domain.StatusOptimized {
				w.remember(filepath.Join(w.eff.Path, it.Path))
			}
		}
	}
	close(w.started)
	w.logger.Info("watching", slog.String("root", w.eff.Path), slog.Duration("debounce", w.debounce()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.Any("error", err))
		case path := <-w.ready:
			w.processPath(path)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if scan.IsExcluded(w.eff.Path, path, w.eff.ExcludeDirs) {
		return
	}

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.forget(path)
		return
	case ev.Has(fsnotify.Create):
		fi, err := os.Stat(path)
		if err != nil {
			return
		}
		if fi.IsDir() {
			// 新目录：加入监听，并补扫在加入监听之前就已写入的文件。
			if err := w.addTree(path); err != nil {
				w.logger.Warn("watch new dir failed", slog.String("dir", path), slog.Any("error", err))
			}
			files, err := scan.ScanImages(path, scan.Filter{Marker: w.filter.Marker, Extensions: w.filter.Extensions})
			if err != nil {
				return
			}
			for _, f := range files {
				w.schedule(ctx, f.AbsPath)
			}
			return
		}
		if w.filter.Match(filepath.Base(path)) {
			w.schedule(ctx, path)
		}
	case ev.Has(fsnotify.Write):
		if w.filter.Match(filepath.Base(path)) {
			w.schedule(ctx, path)
		}
	}
}

// schedule 对同一路径的连续事件做 debounce：只在最后一次事件之后的 debounce 时长处理一次。
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce(), func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case w.ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) processPath(path string) {
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return
	}
	if scan.IsExcluded(w.eff.Path, path, w.eff.ExcludeDirs) {
		return
	}
	if w.isOwnWrite(path, fi) {
		w.logger.Debug("ignore own write", slog.String("file", path))
		return
	}

	rel, err := filepath.Rel(w.eff.Path, path)
	if err != nil {
		rel = path
	}
	f := domain.ImageFile{
		AbsPath: path,
		RelPath: rel,
		Name:    fi.Name(),
		Ext:     strings.ToLower(filepath.Ext(fi.Name())),
		Size:    fi.Size(),
		ModUnix: fi.ModTime().Unix(),
	}

	p := planner.PlanFile(f, w.eff.MinSizeBytes)
	if p.Action == domain.ActionSkip {
		return
	}

	w.seq++
	if w.obs != nil {
		w.obs.OnFileStart(w.seq, 0, f)
	}
	started := time.Now()

	var res domain.ItemResult
	if w.eff.DryRun {
		res = run.PlanOne(p, w.eff)
	} else {
		res = run.ProcessFile(f, w.eff)
		if res.Status == domain.StatusOptimized {
			w.remember(path)
		}
	}

	if w.obs != nil {
		w.obs.OnFileDone(w.seq, 0, f, res, time.Since(started))
	}
}

func (w *Watcher) remember(path string) {
	fi, err := os.Stat(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.written[path] = stamp{size: fi.Size(), modTime: fi.ModTime()}
	w.mu.Unlock()
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.written, path)
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) isOwnWrite(path string, fi os.FileInfo) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, ok := w.written[path]
	return ok && st.size == fi.Size() && st.modTime.Equal(fi.ModTime())
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p, t := range w.timers {
		t.Stop()
		delete(w.timers, p)
	}
}

func (w *Watcher) debounce() time.Duration {
	return time.Duration(w.eff.DebounceMS) * time.Millisecond
}

// addTree 递归加入目录监听（fsnotify 本身不递归）。
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			return filepath.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if scan.IsExcluded(w.eff.Path, path, w.eff.ExcludeDirs) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			if path == root {
				return err
			}
			if !errors.Is(err, fs.ErrNotExist) {
				w.logger.Warn("watch dir failed", slog.String("dir", path), slog.Any("error", err))
			}
		}
		return nil
	})
}
