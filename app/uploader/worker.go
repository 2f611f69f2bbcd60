package uploader

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sync"
	"time"

	"catalog-hub/app/logger"
	"catalog-hub/app/storage"
)

// Event worker 发布的任务事件：进度变化或到达终态
type Event struct {
	TaskID   string       `json:"task_id"`
	Status   UploadStatus `json:"status"`
	Progress int          `json:"progress"`
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.]`)

// SanitizeFileName 把文件名中字母、数字、点号以外的字符替换为下划线
func SanitizeFileName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// ObjectKey 生成存储键：时间戳 + 清洗后的文件名，避免碰撞与不安全路径
func ObjectKey(kind AssetKind, fileName string) string {
	safe := SanitizeFileName(fileName)
	millis := time.Now().UnixMilli()
	if kind == KindVideo {
		return fmt.Sprintf("products/videos/%d_%s", millis, safe)
	}
	return fmt.Sprintf("products/%d_%s", millis, safe)
}

// Worker 执行单个任务的上传。多个 worker 并发运行，
// 彼此只通过注册表写各自的任务槽位，没有其他共享状态。
type Worker struct {
	registry  *TaskRegistry
	optimizer *AssetOptimizer
	store     storage.BlobStore
	log       *logger.Logger
	events    chan<- Event
}

// NewWorker 创建上传 worker
func NewWorker(registry *TaskRegistry, optimizer *AssetOptimizer, store storage.BlobStore, log *logger.Logger, events chan<- Event) *Worker {
	return &Worker{
		registry:  registry,
		optimizer: optimizer,
		store:     store,
		log:       log,
		events:    events,
	}
}

// Dispatch 为每个任务启动一个 goroutine，立即开始上传
func (w *Worker) Dispatch(ctx context.Context, tasks []*UploadTask) {
	for _, t := range tasks {
		go w.Run(ctx, t.ID)
	}
}

// DispatchWait 并发上传并等待全部任务到终态，供提交期的第二波上传使用
func (w *Worker) DispatchWait(ctx context.Context, tasks []*UploadTask) {
	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			w.Run(ctx, id)
		}(t.ID)
	}
	wg.Wait()
}

// Run 驱动一个任务走完生命周期：
// pending -> uploading -> success 或 error。压缩失败被吸收，不会使任务失败。
func (w *Worker) Run(ctx context.Context, taskID string) {
	if !w.registry.setUploading(taskID) {
		// 任务在启动前被移除
		return
	}

	data, ok := w.registry.takeData(taskID)
	if !ok {
		return
	}

	tasks := w.registry.All()
	var name string
	var kind AssetKind
	for _, t := range tasks {
		if t.ID == taskID {
			name = t.FileName
			kind = t.Kind
			break
		}
	}

	if kind == KindImage {
		data = w.optimizer.Optimize(name, data)
	}

	key := ObjectKey(kind, name)
	url, err := w.store.Put(ctx, key, data, func(done, total int64) {
		progress := 0
		if total > 0 {
			progress = int(math.Round(float64(done) / float64(total) * 100))
		}
		w.registry.setProgress(taskID, progress)
		w.emit(Event{TaskID: taskID, Status: StatusUploading, Progress: progress})
	})

	if err != nil {
		w.log.Errorf("上传任务失败: TaskID=%s, 文件=%s, 错误: %v", taskID, name, err)
		w.registry.setError(taskID, err.Error())
		w.emit(Event{TaskID: taskID, Status: StatusError, Progress: 0})
		return
	}

	w.registry.setSuccess(taskID, url)
	w.emit(Event{TaskID: taskID, Status: StatusSuccess, Progress: 100})
	w.log.Infof("上传任务完成: TaskID=%s, 文件=%s, 地址=%s", taskID, name, url)
}

// emit 发布事件。通道未设置或已满时丢弃，进度以注册表快照为准。
func (w *Worker) emit(ev Event) {
	if w.events == nil {
		return
	}
	select {
	case w.events <- ev:
	default:
	}
}
