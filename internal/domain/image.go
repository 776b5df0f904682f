package domain

// MiB 是尺寸阈值与日志使用的单位（1 MiB = 1,048,576 字节）。
const MiB = 1024 * 1024

// ImageFile 描述一次扫描得到的候选图片（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - Name 保留原始大小写（marker 判断区分大小写）
// - Ext 已转小写（".png" / ".jpg" / ".jpeg"）
type ImageFile struct {
	AbsPath string
	RelPath string
	Name    string
	Ext     string
	Size    int64
	ModUnix int64
}

// SizeMiB 返回以 MiB 计的文件大小（用于阈值判断之外的展示）。
func (f ImageFile) SizeMiB() float64 {
	return BytesToMiB(f.Size)
}

func BytesToMiB(n int64) float64 {
	return float64(n) / MiB
}
