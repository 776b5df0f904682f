package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/memberopt/internal/domain"
)

func TestRunCommand_ConsoleLines(t *testing.T) {
	root := t.TempDir()
	writeNoisePNG(t, filepath.Join(root, "a", "member_alice.png"), 1600, 1000)
	writeBytes(t, filepath.Join(root, "b", "member_broken.png"), bytes.Repeat([]byte{0x42}, 1<<20+1))
	writeNoisePNG(t, filepath.Join(root, "logo.png"), 1600, 1000)
	logoBefore := readBytes(t, filepath.Join(root, "logo.png"))

	stdout, _, err := execute(t, "run", root)
	if err != nil {
		t.Fatalf("单个文件失败不应导致命令失败：%v", err)
	}

	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("期望 4 行输出，实际 %d 行：%q", len(lines), stdout)
	}
	if !strings.HasPrefix(lines[0], "Optimizing member_alice.png (") || !strings.HasSuffix(lines[0], " MB)...") {
		t.Fatalf("第 1 行不符合预期：%q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "  -> Reduced to ") || !strings.HasSuffix(lines[1], " MB") {
		t.Fatalf("第 2 行不符合预期：%q", lines[1])
	}
	if lines[2] != "Optimizing member_broken.png (1.00 MB)..." {
		t.Fatalf("第 3 行不符合预期：%q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "  Failed: ") {
		t.Fatalf("第 4 行不符合预期：%q", lines[3])
	}
	if strings.Contains(stdout, "logo.png") {
		t.Fatalf("logo.png 不应出现在输出中：%q", stdout)
	}
	if !bytes.Equal(readBytes(t, filepath.Join(root, "logo.png")), logoBefore) {
		t.Fatalf("logo.png 不应被修改")
	}

	f, err := os.Open(filepath.Join(root, "a", "member_alice.png"))
	if err != nil {
		t.Fatalf("打开结果失败：%v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("结果不是 PNG：%v", err)
	}
	if cfg.Width != 1200 || cfg.Height != 750 {
		t.Fatalf("期望 1200x750，实际 %dx%d", cfg.Width, cfg.Height)
	}
}

func TestRunCommand_DryRunWritesReportOnly(t *testing.T) {
	root := t.TempDir()
	img := filepath.Join(root, "member_bob.png")
	writeNoisePNG(t, img, 1600, 1000)
	before := readBytes(t, img)

	reportPath := filepath.Join(t.TempDir(), "report.json")
	stdout, _, err := execute(t, "run", root, "--dry-run", "--report", reportPath)
	if err != nil {
		t.Fatalf("dry-run 不应失败：%v", err)
	}
	if !strings.Contains(stdout, "  -> Would resize to 1200x750 (dry-run)") {
		t.Fatalf("期望 dry-run 输出缩放目标，实际：%q", stdout)
	}
	if !bytes.Equal(readBytes(t, img), before) {
		t.Fatalf("dry-run 不应修改文件")
	}

	var rr domain.RunReport
	if err := json.Unmarshal(readBytes(t, reportPath), &rr); err != nil {
		t.Fatalf("report 不是合法 JSON：%v", err)
	}
	if !rr.DryRun || rr.Summary.Planned != 1 || rr.Summary.Failed != 0 {
		t.Fatalf("report summary 不符合预期：%+v dry_run=%v", rr.Summary, rr.DryRun)
	}
	if len(rr.Items) != 1 || rr.Items[0].NewWidth != 1200 || rr.Items[0].NewHeight != 750 {
		t.Fatalf("report items 不符合预期：%+v", rr.Items)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("读取目录失败：%v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("根目录下不应出现额外文件，实际 %d 个", len(entries))
	}
}

func TestRunCommand_MissingRootFails(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nope")
	stdout, _, err := execute(t, "run", root)
	if err == nil {
		t.Fatalf("根目录不存在时期望返回错误")
	}
	if !strings.Contains(err.Error(), domain.ErrCodeIOFailed) {
		t.Fatalf("期望错误包含 %s，实际：%v", domain.ErrCodeIOFailed, err)
	}
	if stdout != "" {
		t.Fatalf("期望无 stdout 输出，实际：%q", stdout)
	}
}

func TestRunCommand_ConfigNotFound(t *testing.T) {
	_, _, err := execute(t, "run", t.TempDir(), "--config", filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatalf("--config 指向不存在的文件时期望失败")
	}
}

func TestRunCommand_ConfigMarker(t *testing.T) {
	root := t.TempDir()
	writeNoisePNG(t, filepath.Join(root, "staff_carol.png"), 1300, 1000)
	writeNoisePNG(t, filepath.Join(root, "member_dave.png"), 1300, 1000)

	cfg := filepath.Join(t.TempDir(), "memberopt.toml")
	writeBytes(t, cfg, []byte("marker = \"staff\"\n"))

	stdout, _, err := execute(t, "--config", cfg, "run", root, "--dry-run")
	if err != nil {
		t.Fatalf("命令失败：%v", err)
	}
	if !strings.Contains(stdout, "Optimizing staff_carol.png") {
		t.Fatalf("期望处理 staff_carol.png，实际：%q", stdout)
	}
	if strings.Contains(stdout, "member_dave.png") {
		t.Fatalf("marker 改为 staff 后不应处理 member_dave.png：%q", stdout)
	}
}

func TestRunCommand_HelpDocumentsExitCode(t *testing.T) {
	stdout, _, err := execute(t, "run", "--help")
	if err != nil {
		t.Fatalf("--help 不应失败：%v", err)
	}
	if !strings.Contains(stdout, "path 不存在或无法读取") || !strings.Contains(stdout, "退出码为 1") {
		t.Fatalf("run 帮助应说明根目录不存在时的退出码：\n%s", stdout)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeNoisePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	r := rand.New(rand.NewSource(int64(w*31 + h)))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	r.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png 失败：%v", err)
	}
	writeBytes(t, path, buf.Bytes())
}

func writeBytes(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func readBytes(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	return b
}
