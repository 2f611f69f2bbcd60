package uploader

import (
	"bytes"

	"catalog-hub/app/logger"

	"github.com/disintegration/imaging"
)

// 压缩参数，与前台上传约定一致
const (
	// OptimizeThreshold 小于该大小的文件不做压缩
	OptimizeThreshold = 500 * 1024
	// MaxDimension 压缩后长边不超过的像素数
	MaxDimension = 1200
	// JPEGQuality 重编码质量
	JPEGQuality = 80
	// TargetMaxSize 压缩的目标大小（尽力而为，不保证）
	TargetMaxSize = 1024 * 1024
)

// AssetOptimizer 图片压缩器。压缩失败时返回原始内容，绝不阻断上传。
type AssetOptimizer struct {
	log *logger.Logger
}

// NewAssetOptimizer 创建图片压缩器
func NewAssetOptimizer(log *logger.Logger) *AssetOptimizer {
	return &AssetOptimizer{log: log}
}

// Optimize 压缩一张图片：
// 长边缩到 MaxDimension 以内并重编码为 JPEG。
// 小文件原样返回；解码或编码失败也原样返回。
func (o *AssetOptimizer) Optimize(name string, data []byte) []byte {
	if len(data) < OptimizeThreshold {
		o.log.Debugf("文件 %s 较小（%d 字节），跳过压缩", name, len(data))
		return data
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		o.log.Warnf("解码图片 %s 失败，使用原图上传: %v", name, err)
		return data
	}

	bounds := img.Bounds()
	if bounds.Dx() > MaxDimension || bounds.Dy() > MaxDimension {
		img = imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		o.log.Warnf("编码图片 %s 失败，使用原图上传: %v", name, err)
		return data
	}

	o.log.Infof("压缩图片 %s: %d 字节 -> %d 字节", name, len(data), buf.Len())
	return buf.Bytes()
}
