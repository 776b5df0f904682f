package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_JSONShape(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	l.Info("scan done", slog.Int("files", 3))
	l.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("debug 不应输出；实际 %d 行：%q", len(lines), buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("输出不是 JSON：%v", err)
	}
	if m["level"] != "info" || m["msg"] != "scan done" || m["files"] != float64(3) {
		t.Fatalf("字段不符合预期：%v", m)
	}
	if _, ok := m["ts"]; !ok {
		t.Fatalf("缺少 ts 字段：%v", m)
	}
}

func TestNew_ConsoleDebugIncludesSource(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "debug", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	l.Debug("probe", slog.String("file", "member.png"))
	out := buf.String()
	if !strings.Contains(out, "level=debug") || !strings.Contains(out, "logging_test.go:") {
		t.Fatalf("console 输出不符合预期：%q", out)
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatalf("期望未知格式返回错误")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("WARN") != slog.LevelWarn || ParseLevel("") != slog.LevelInfo || ParseLevel("nope") != slog.LevelInfo {
		t.Fatalf("ParseLevel 映射不符合预期")
	}
}
