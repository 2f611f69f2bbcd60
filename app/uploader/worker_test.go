package uploader

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"catalog-hub/app/logger"
	"catalog-hub/app/storage"

	"go.uber.org/zap/zaptest"
)

// fakeBlobStore 按四等份上报进度的内存对象存储。
// 文件名包含 fail 的键会上传失败。
type fakeBlobStore struct {
	mu   sync.Mutex
	puts map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{puts: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(ctx context.Context, key string, data []byte, onProgress storage.ProgressFunc) (string, error) {
	total := int64(len(data))
	for i := int64(1); i <= 4; i++ {
		if onProgress != nil {
			onProgress(total*i/4, total)
		}
	}

	if strings.Contains(key, "fail") {
		return "", errors.New("network unreachable")
	}

	f.mu.Lock()
	f.puts[key] = data
	f.mu.Unlock()
	return "https://cdn.test/" + key, nil
}

func newTestWorker(t *testing.T, registry *TaskRegistry, store storage.BlobStore, events chan<- Event) *Worker {
	log := logger.NewWithZap(zaptest.NewLogger(t))
	return NewWorker(registry, NewAssetOptimizer(log), store, log, events)
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"my photo (1)!.png", "my_photo__1__.png"},
		{"normal.jpg", "normal.jpg"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"中文名.png", "___.png"},
	}

	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, 期望 %q", tt.in, got, tt.want)
		}
	}
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey(KindImage, "my photo.jpg")
	if !strings.HasPrefix(key, "products/") {
		t.Errorf("图片键前缀错误: %s", key)
	}
	if !strings.HasSuffix(key, "_my_photo.jpg") {
		t.Errorf("图片键后缀错误: %s", key)
	}

	videoKey := ObjectKey(KindVideo, "demo.mp4")
	if !strings.HasPrefix(videoKey, "products/videos/") {
		t.Errorf("视频键前缀错误: %s", videoKey)
	}
}

func TestWorkerRun_Success(t *testing.T) {
	registry := NewTaskRegistry()
	store := newFakeBlobStore()
	events := make(chan Event, 64)
	worker := newTestWorker(t, registry, store, events)

	tasks, _ := registry.Admit(makeFiles("a.jpg"), 0)
	worker.Run(context.Background(), tasks[0].ID)

	snap := registry.All()[0]
	if snap.Status != StatusSuccess {
		t.Fatalf("期望 success，得到 %s（%s）", snap.Status, snap.ErrorMessage)
	}
	if snap.Progress != 100 {
		t.Errorf("成功任务进度应为 100，得到 %d", snap.Progress)
	}
	if !strings.HasPrefix(snap.ResultURL, "https://cdn.test/products/") {
		t.Errorf("结果地址错误: %s", snap.ResultURL)
	}
	if !strings.HasSuffix(snap.ResultURL, "_a.jpg") {
		t.Errorf("结果地址应包含清洗后的文件名: %s", snap.ResultURL)
	}
}

func TestWorkerRun_ProgressEventsMonotonic(t *testing.T) {
	registry := NewTaskRegistry()
	events := make(chan Event, 64)
	worker := newTestWorker(t, registry, newFakeBlobStore(), events)

	tasks, _ := registry.Admit(makeFiles("a.jpg"), 0)
	worker.Run(context.Background(), tasks[0].ID)
	close(events)

	last := -1
	sawTerminal := false
	for ev := range events {
		if ev.TaskID != tasks[0].ID {
			t.Errorf("意外的任务事件: %s", ev.TaskID)
		}
		switch ev.Status {
		case StatusUploading:
			if ev.Progress < last {
				t.Errorf("进度回退: %d -> %d", last, ev.Progress)
			}
			last = ev.Progress
		case StatusSuccess:
			sawTerminal = true
			if ev.Progress != 100 {
				t.Errorf("终态事件进度应为 100，得到 %d", ev.Progress)
			}
		}
	}
	if !sawTerminal {
		t.Error("未收到终态事件")
	}
	if last != 100 {
		t.Errorf("最后一次进度应为 100，得到 %d", last)
	}
}

func TestWorkerRun_TransferFailureIsolated(t *testing.T) {
	registry := NewTaskRegistry()
	worker := newTestWorker(t, registry, newFakeBlobStore(), nil)

	tasks, _ := registry.Admit(makeFiles("ok.jpg", "fail.jpg"), 0)
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			worker.Run(context.Background(), id)
		}(task.ID)
	}
	wg.Wait()

	all := registry.All()
	if !IsComplete(all) {
		t.Fatal("所有任务都应到终态")
	}

	counts := Summarize(all)
	if counts.Succeeded != 1 || counts.Failed != 1 {
		t.Errorf("期望成功 1 失败 1，得到 %+v", counts)
	}

	for _, task := range all {
		if task.FileName == "fail.jpg" {
			if task.Status != StatusError || task.ErrorMessage == "" {
				t.Errorf("失败任务状态错误: %+v", task)
			}
		}
	}
}

func TestWorkerRun_RemovedBeforeStart(t *testing.T) {
	registry := NewTaskRegistry()
	store := newFakeBlobStore()
	worker := newTestWorker(t, registry, store, nil)

	tasks, _ := registry.Admit(makeFiles("a.jpg"), 0)
	registry.Remove(tasks[0].ID)

	// 移除后 worker 启动应直接返回，不产生上传
	worker.Run(context.Background(), tasks[0].ID)

	if len(store.puts) != 0 {
		t.Error("已移除的任务不应上传")
	}
}

func TestWorkerDispatchWait(t *testing.T) {
	registry := NewTaskRegistry()
	worker := newTestWorker(t, registry, newFakeBlobStore(), nil)

	tasks, _ := registry.Admit(makeFiles("1.jpg", "2.jpg", "3.jpg"), 0)
	worker.DispatchWait(context.Background(), tasks)

	if !IsComplete(registry.All()) {
		t.Error("DispatchWait 返回后所有任务都应到终态")
	}
}
