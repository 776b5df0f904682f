package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// ErrCodeNotFound 表示 --config 显式指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

// FileName 是在 cwd 下自动发现的配置文件名。
const FileName = "memberopt.toml"

const (
	DefaultPath       = "public/images/team"
	DefaultMarker     = "member"
	DefaultMinSizeMiB = 1.0
	DefaultMaxWidth   = 1200
	DefaultQuality    = 80
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "console"
	DefaultDebounceMS = 500
)

// DefaultExtensions 与 scan.DefaultExtensions 保持一致（config 不依赖 scan）。
var DefaultExtensions = []string{".png", ".jpg", ".jpeg"}

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --dry-run=false 必须能覆盖 dry_run=true。
type CLIArgs struct {
	ConfigPath string

	Path string

	DryRun    bool
	DryRunSet bool

	Report string

	LogLevel  string
	LogFormat string
}

// FileConfig 对应 memberopt.toml 的解析结构。
type FileConfig struct {
	Path        string        `toml:"path"`
	Marker      *string       `toml:"marker"`
	Extensions  []string      `toml:"extensions"`
	MinSizeMiB  *float64      `toml:"min_size_mib"`
	MaxWidth    *int          `toml:"max_width"`
	Quality     *int          `toml:"quality"`
	ExcludeDirs []string      `toml:"exclude_dirs"`
	DryRun      *bool         `toml:"dry_run"`
	Report      string        `toml:"report"`
	Logging     LoggingConfig `toml:"logging"`
	Watch       WatchConfig   `toml:"watch"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type WatchConfig struct {
	DebounceMS *int `toml:"debounce_ms"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path string

	Marker       string
	Extensions   []string
	MinSizeBytes int64
	MaxWidth     int
	Quality      int
	ExcludeDirs  []string

	DryRun bool
	Report string

	LogLevel  string
	LogFormat string

	DebounceMS int

	// Source 是实际读取到的配置文件路径（未读取任何文件时为空）。
	Source string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则尝试读取 <cwd>/memberopt.toml（可选）
//
// 覆盖优先级（固定）：
// - path：CLI path > config path > 默认 public/images/team（均相对 cwd）
// - dry_run：CLI --dry-run/--dry-run=false > config > 默认 false
// - report / logging：CLI > config > 默认
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
		exists  bool
	)

	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		cfgPath = filepath.Join(cwdAbs, FileName)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}

	eff, err := merge(cwdAbs, cli, fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if exists {
		eff.Source = cfgPath
	}
	return eff, nil
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	path := DefaultPath
	if strings.TrimSpace(cli.Path) != "" {
		path = cli.Path
	} else if strings.TrimSpace(fc.Path) != "" {
		path = fc.Path
	}

	marker := DefaultMarker
	if fc.Marker != nil {
		marker = *fc.Marker
	}
	if marker == "" {
		return EffectiveConfig{}, fmt.Errorf("marker 不能为空")
	}

	exts, err := normalizeExtensions(fc.Extensions)
	if err != nil {
		return EffectiveConfig{}, err
	}

	minMiB := DefaultMinSizeMiB
	if fc.MinSizeMiB != nil {
		minMiB = *fc.MinSizeMiB
	}
	if minMiB < 0 {
		return EffectiveConfig{}, fmt.Errorf("min_size_mib 不能为负数，实际 %v", minMiB)
	}

	maxWidth := DefaultMaxWidth
	if fc.MaxWidth != nil {
		maxWidth = *fc.MaxWidth
	}
	if maxWidth < 1 {
		return EffectiveConfig{}, fmt.Errorf("max_width 必须 >= 1，实际 %d", maxWidth)
	}

	quality := DefaultQuality
	if fc.Quality != nil {
		quality = *fc.Quality
	}
	if quality < 1 || quality > 100 {
		return EffectiveConfig{}, fmt.Errorf("quality 必须在 [1, 100]，实际 %d", quality)
	}

	dryRun := false
	if cli.DryRunSet {
		dryRun = cli.DryRun
	} else if fc.DryRun != nil {
		dryRun = *fc.DryRun
	}

	report := strings.TrimSpace(fc.Report)
	if strings.TrimSpace(cli.Report) != "" {
		report = strings.TrimSpace(cli.Report)
	}
	if report != "" {
		report = absCleanFrom(cwdAbs, report)
	}

	level := firstNonEmpty(cli.LogLevel, fc.Logging.Level, DefaultLogLevel)
	if err := validateLogLevel(level); err != nil {
		return EffectiveConfig{}, err
	}
	format := firstNonEmpty(cli.LogFormat, fc.Logging.Format, DefaultLogFormat)
	if err := validateLogFormat(format); err != nil {
		return EffectiveConfig{}, err
	}

	debounce := DefaultDebounceMS
	if fc.Watch.DebounceMS != nil {
		debounce = *fc.Watch.DebounceMS
	}
	if debounce < 0 {
		return EffectiveConfig{}, fmt.Errorf("watch.debounce_ms 不能为负数，实际 %d", debounce)
	}

	return EffectiveConfig{
		Path:         absCleanFrom(cwdAbs, path),
		Marker:       marker,
		Extensions:   exts,
		MinSizeBytes: int64(minMiB * (1 << 20)),
		MaxWidth:     maxWidth,
		Quality:      quality,
		ExcludeDirs:  append([]string(nil), fc.ExcludeDirs...),
		DryRun:       dryRun,
		Report:       report,
		LogLevel:     strings.ToLower(level),
		LogFormat:    strings.ToLower(format),
		DebounceMS:   debounce,
	}, nil
}

func normalizeExtensions(in []string) ([]string, error) {
	if len(in) == 0 {
		return append([]string(nil), DefaultExtensions...), nil
	}
	out := make([]string, 0, len(in))
	for _, x := range in {
		x = strings.ToLower(strings.TrimSpace(x))
		if !strings.HasPrefix(x, ".") || len(x) < 2 {
			return nil, fmt.Errorf("extensions 中的 %q 必须形如 .png", x)
		}
		out = append(out, x)
	}
	return out, nil
}

func validateLogLevel(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level 只能是 debug|info|warn|error，实际是 %q", s)
	}
}

func validateLogFormat(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format 只能是 console 或 json，实际是 %q", s)
	}
}

func firstNonEmpty(xs ...string) string {
	for _, x := range xs {
		if s := strings.TrimSpace(x); s != "" {
			return s
		}
	}
	return ""
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件（未知字段视为错误，避免拼写错误被静默忽略）。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
