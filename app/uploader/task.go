package uploader

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// UploadStatus 上传任务状态
type UploadStatus string

const (
	StatusPending   UploadStatus = "pending"
	StatusUploading UploadStatus = "uploading"
	StatusSuccess   UploadStatus = "success"
	StatusError     UploadStatus = "error"
)

// AssetKind 资源类型
type AssetKind string

const (
	KindImage AssetKind = "image"
	KindVideo AssetKind = "video"
)

// 固定配额，与前台表单约定一致
const (
	// MaxImages 每个商品最多的图片数量
	MaxImages = 6
	// MaxVideoSize 视频文件大小上限
	MaxVideoSize = 100 * 1024 * 1024
)

// IncomingFile 待上传的原始文件
type IncomingFile struct {
	Name string
	Data []byte
}

// UploadTask 单个资源的上传任务
type UploadTask struct {
	ID           string       `json:"id"`
	FileName     string       `json:"file_name"`
	Kind         AssetKind    `json:"kind"`
	Status       UploadStatus `json:"status"`
	Progress     int          `json:"progress"` // 0-100，上传期间单调递增
	ResultURL    string       `json:"result_url,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`

	data []byte // 原始文件内容，任务独占
}

// IsTerminal 任务是否已到终态
func (t *UploadTask) IsTerminal() bool {
	return t.Status == StatusSuccess || t.Status == StatusError
}

// newTaskID 生成任务ID：毫秒时间戳 + 随机 base36 后缀，避免同一会话内碰撞
func newTaskID(kind AssetKind) string {
	suffix := strconv.FormatInt(rand.Int63(), 36)
	if len(suffix) > 7 {
		suffix = suffix[:7]
	}
	return fmt.Sprintf("%s-%d-%s", kind, time.Now().UnixMilli(), suffix)
}
