package uploader

import (
	"sync"
)

// TaskRegistry 持有一次表单会话内的全部上传任务。
// 所有字段变更都经过注册表方法，worker 之间不直接共享任务指针。
type TaskRegistry struct {
	mu    sync.Mutex
	tasks map[string]*UploadTask
	order []string // 按接收顺序记录任务ID
}

// NewTaskRegistry 创建任务注册表
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		tasks: make(map[string]*UploadTask),
	}
}

// Admit 接收一批图片文件。配额检查与插入在同一把锁内完成：
// 已有图片数 + 当前任务数 + 本批数量 > 上限时整批拒绝，不产生任何任务。
func (r *TaskRegistry) Admit(files []IncomingFile, existingCount int) ([]*UploadTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	imageTasks := 0
	for _, t := range r.tasks {
		if t.Kind == KindImage {
			imageTasks++
		}
	}
	if existingCount+imageTasks+len(files) > MaxImages {
		return nil, ErrQuotaExceeded
	}

	admitted := make([]*UploadTask, 0, len(files))
	for _, f := range files {
		task := &UploadTask{
			ID:       newTaskID(KindImage),
			FileName: f.Name,
			Kind:     KindImage,
			Status:   StatusPending,
			data:     f.Data,
		}
		r.tasks[task.ID] = task
		r.order = append(r.order, task.ID)
		admitted = append(admitted, task.snapshot())
	}
	return admitted, nil
}

// AdmitVideo 接收视频文件。视频不占用图片配额，但受大小上限约束。
func (r *TaskRegistry) AdmitVideo(f IncomingFile) (*UploadTask, error) {
	if len(f.Data) > MaxVideoSize {
		return nil, ErrVideoTooLarge
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	task := &UploadTask{
		ID:       newTaskID(KindVideo),
		FileName: f.Name,
		Kind:     KindVideo,
		Status:   StatusPending,
		data:     f.Data,
	}
	r.tasks[task.ID] = task
	r.order = append(r.order, task.ID)
	return task.snapshot(), nil
}

// Remove 删除一个任务。调用方保证不对 uploading 状态的任务调用。
func (r *TaskRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return
	}
	delete(r.tasks, id)
	for i, tid := range r.order {
		if tid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// All 按接收顺序返回全部任务的快照
func (r *TaskRegistry) All() []UploadTask {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]UploadTask, 0, len(r.order))
	for _, id := range r.order {
		if t, ok := r.tasks[id]; ok {
			out = append(out, *t.snapshot())
		}
	}
	return out
}

// Len 当前任务数量
func (r *TaskRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Clear 清空注册表（会话结束或表单丢弃时调用）
func (r *TaskRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = make(map[string]*UploadTask)
	r.order = nil
}

// takeData 取出任务的原始文件内容，仅 worker 使用
func (r *TaskRegistry) takeData(id string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, false
	}
	return t.data, true
}

// setUploading 将任务置为上传中。任务已被移除或已到终态时返回 false。
func (r *TaskRegistry) setUploading(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status != StatusPending {
		return false
	}
	t.Status = StatusUploading
	return true
}

// setProgress 更新上传进度。终态任务不再变更，进度只增不减。
func (r *TaskRegistry) setProgress(id string, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.IsTerminal() {
		return
	}
	if progress > t.Progress {
		t.Progress = progress
	}
}

// setSuccess 标记任务成功并记录结果地址
func (r *TaskRegistry) setSuccess(id, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.IsTerminal() {
		return
	}
	t.Status = StatusSuccess
	t.Progress = 100
	t.ResultURL = url
	t.data = nil
}

// setError 标记任务失败并记录错误信息
func (r *TaskRegistry) setError(id, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.IsTerminal() {
		return
	}
	t.Status = StatusError
	t.ErrorMessage = message
	t.data = nil
}

// snapshot 复制任务的对外可见字段
func (t *UploadTask) snapshot() *UploadTask {
	return &UploadTask{
		ID:           t.ID,
		FileName:     t.FileName,
		Kind:         t.Kind,
		Status:       t.Status,
		Progress:     t.Progress,
		ResultURL:    t.ResultURL,
		ErrorMessage: t.ErrorMessage,
	}
}
