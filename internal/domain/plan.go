package domain

const (
	ActionSkip     = "skip"
	ActionOptimize = "optimize"
)

const (
	ReasonBelowThreshold = "below_threshold"
	ReasonOversize       = "oversize"
)

// FilePlan 是对单个文件的最小执行计划（只描述要做什么；真正读写由 run 包负责）。
//
// Width/Height 仅在 dry-run 的头部探测中填充；apply 模式下解码后才知道尺寸。
type FilePlan struct {
	File   ImageFile
	Action string
	Reason string

	Width        int
	Height       int
	NeedResize   bool
	TargetWidth  int
	TargetHeight int
}
