package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusOptimized = "optimized"
	StatusPlanned   = "planned"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

const (
	ErrCodeIOFailed     = "io_failed"
	ErrCodeDecodeFailed = "decode_failed"
	ErrCodeResizeFailed = "resize_failed"
	ErrCodeEncodeFailed = "encode_failed"
)

// RunReport 是 --report 落盘的稳定结构。
type RunReport struct {
	RunID  string `json:"run_id"`
	Path   string `json:"path"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Inspected int `json:"inspected"`
	Optimized int `json:"optimized"`
	Planned   int `json:"planned"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// ItemResult 对应一个通过扩展名 + marker 过滤的文件。
// 未通过过滤的文件不产生条目。
type ItemResult struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`

	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`

	SizeBefore int64 `json:"size_before"`
	SizeAfter  int64 `json:"size_after"`

	Width     int `json:"width,omitempty"`
	Height    int `json:"height,omitempty"`
	NewWidth  int `json:"new_width,omitempty"`
	NewHeight int `json:"new_height,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 path 字典序；path=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Path
		b := r.Items[j].Path
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	s := ReportSummary{Inspected: len(r.Items)}
	for _, it := range r.Items {
		switch it.Status {
		case StatusOptimized:
			s.Optimized++
		case StatusPlanned:
			s.Planned++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 集中约束输出的稳定性：items 为 nil 时输出 []，而不是 null。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	a := Alias(r)
	if a.Items == nil {
		a.Items = []ItemResult{}
	}
	return json.Marshal(a)
}
