package uploader

import "errors"

// 提交与接收阶段的结构性错误，直接返回给调用方
var (
	// ErrQuotaExceeded 本批文件会超出图片数量上限，整批拒绝
	ErrQuotaExceeded = errors.New("uploader: image quota exceeded")
	// ErrUploadsInProgress 仍有任务未到终态，不能提交
	ErrUploadsInProgress = errors.New("uploader: uploads still in progress")
	// ErrNoImages 商品至少需要一张图片
	ErrNoImages = errors.New("uploader: product has no images")
	// ErrVideoTooLarge 视频文件超出大小上限
	ErrVideoTooLarge = errors.New("uploader: video file too large")
	// ErrPersistFailed 预写入失败，提交中止
	ErrPersistFailed = errors.New("uploader: optimistic persist failed")
	// ErrReconcileFailed 最终写入失败，记录保留已成功的资源
	ErrReconcileFailed = errors.New("uploader: reconcile persist failed")
)
