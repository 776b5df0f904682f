package imgx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // 注册 JPEG 解码器（.jpg/.jpeg 输入）
	"image/png"
	"io"

	"github.com/nfnt/resize"
)

// DefaultQuality 是“质量提示”的默认值。PNG 为无损编码，该值只被接受、不生效。
const DefaultQuality = 80

var (
	ErrDecode = errors.New("imgx: 解码失败")
	ErrResize = errors.New("imgx: 缩放失败")
	ErrEncode = errors.New("imgx: 编码失败")
)

// EncodeOptions 对应“optimize + quality”两项编码请求。
type EncodeOptions struct {
	// Quality 仅为接口兼容而保留（1-100）；PNG 编码忽略它。
	Quality int
}

// Decode 按内容（而不是扩展名）识别格式并解码：输入允许是 PNG/JPEG。
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w：%v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, "", fmt.Errorf("%w：图片尺寸无效 %dx%d", ErrDecode, b.Dx(), b.Dy())
	}
	return img, format, nil
}

// Probe 只读取图片头部得到宽高（dry-run 规划使用，不解码像素）。
func Probe(r io.Reader) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, fmt.Errorf("%w：%v", ErrDecode, err)
	}
	return cfg.Width, cfg.Height, nil
}

// TargetSize 计算按最大宽度等比缩放后的尺寸。
//
// 规则：
// - width <= maxWidth：不缩放，原样返回
// - 否则：宽度固定为 maxWidth，高度 = floor(height * maxWidth / width)（整数运算，无浮点误差）
// - 缩放后高度为 0：返回 ErrResize
func TargetSize(width, height, maxWidth int) (w, h int, needResize bool, err error) {
	if width <= 0 || height <= 0 {
		return 0, 0, false, fmt.Errorf("%w：图片尺寸无效 %dx%d", ErrResize, width, height)
	}
	if maxWidth <= 0 || width <= maxWidth {
		return width, height, false, nil
	}
	h64 := int64(height) * int64(maxWidth) / int64(width)
	if h64 <= 0 {
		return 0, 0, false, fmt.Errorf("%w：%dx%d 缩放到宽 %d 后高度为 0", ErrResize, width, height, maxWidth)
	}
	return maxWidth, int(h64), true, nil
}

// FitWidth 在宽度超过 maxWidth 时用 Lanczos3 重采样到精确的目标尺寸；否则原样返回 img。
func FitWidth(img image.Image, maxWidth int) (image.Image, bool, error) {
	b := img.Bounds()
	w, h, need, err := TargetSize(b.Dx(), b.Dy(), maxWidth)
	if err != nil || !need {
		return img, false, err
	}
	out := resize.Resize(uint(w), uint(h), img, resize.Lanczos3)
	ob := out.Bounds()
	if ob.Dx() != w || ob.Dy() != h {
		return nil, false, fmt.Errorf("%w：期望 %dx%d，实际 %dx%d", ErrResize, w, h, ob.Dx(), ob.Dy())
	}
	return out, true, nil
}

// EncodePNG 以最高压缩级别编码为 PNG（对应“optimize”请求）。
func EncodePNG(img image.Image, opts EncodeOptions) ([]byte, error) {
	var out bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("%w：%v", ErrEncode, err)
	}
	return out.Bytes(), nil
}

// Optimize 串起 解码 -> 按宽缩放 -> PNG 编码，返回新内容与前后尺寸。
func Optimize(r io.Reader, maxWidth int, opts EncodeOptions) (Result, error) {
	img, format, err := Decode(r)
	if err != nil {
		return Result{}, err
	}
	b := img.Bounds()
	res := Result{SourceFormat: format, Width: b.Dx(), Height: b.Dy()}

	out, resized, err := FitWidth(img, maxWidth)
	if err != nil {
		return Result{}, err
	}
	ob := out.Bounds()
	res.Resized = resized
	res.NewWidth, res.NewHeight = ob.Dx(), ob.Dy()

	data, err := EncodePNG(out, opts)
	if err != nil {
		return Result{}, err
	}
	res.PNG = data
	return res, nil
}

// Result 是 Optimize 的输出。
type Result struct {
	SourceFormat string
	Width        int
	Height       int
	NewWidth     int
	NewHeight    int
	Resized      bool
	PNG          []byte
}
