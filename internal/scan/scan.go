package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/memberopt/internal/domain"
)

// DefaultExtensions 是默认参与检查的扩展名（小写，含 '.'）。
var DefaultExtensions = []string{".png", ".jpg", ".jpeg"}

// Filter 描述“候选图片”的判定规则。
type Filter struct {
	// Marker 必须原样（区分大小写）出现在文件名中。
	Marker string
	// Extensions 与小写化后的文件名后缀比较；为空时使用 DefaultExtensions。
	Extensions []string
	// ExcludeDirs 均视为相对 root 的路径（若是绝对路径，则按绝对路径处理）。
	ExcludeDirs []string
}

// Match 判断文件名是否为候选图片：扩展名大小写不敏感，marker 区分大小写。
func (f Filter) Match(name string) bool {
	if !hasImageExt(name, f.Extensions) {
		return false
	}
	return strings.Contains(name, f.Marker)
}

// ScanImages 扫描 root 下所有候选图片，并应用目录排除规则。
//
// 规则：
// - root 本身不可读：返回错误
// - 子目录不可读：跳过该目录（不中断整次扫描）
// - 只做 stat（DirEntry.Info），不读文件内容
// - 指向普通文件的符号链接按其目标计入；目录链接不跟随
func ScanImages(root string, f Filter) ([]domain.ImageFile, error) {
	root = filepath.Clean(root)
	excluded := buildExcluded(root, f.ExcludeDirs)

	files := make([]domain.ImageFile, 0, 64)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		symlink := d.Type()&fs.ModeSymlink != 0
		if !symlink && !d.Type().IsRegular() {
			return nil
		}

		name := d.Name()
		if !f.Match(name) {
			return nil
		}

		info, err := fileInfo(path, d, symlink)
		if err != nil || !info.Mode().IsRegular() {
			// 扫描与 stat 之间文件被删除、悬空链接、链接指向目录：跳过。
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, domain.ImageFile{
			AbsPath: path,
			RelPath: rel,
			Name:    name,
			Ext:     strings.ToLower(filepath.Ext(name)),
			Size:    info.Size(),
			ModUnix: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func fileInfo(path string, d fs.DirEntry, symlink bool) (fs.FileInfo, error) {
	if symlink {
		return os.Stat(path)
	}
	return d.Info()
}

// IsExcluded 供 watch 模式复用同一套排除规则。
func IsExcluded(root, path string, excludeDirs []string) bool {
	return isExcluded(path, buildExcluded(filepath.Clean(root), excludeDirs))
}

func hasImageExt(name string, exts []string) bool {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	low := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(low, ext) {
			return true
		}
	}
	return false
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(excludeDirs))
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
