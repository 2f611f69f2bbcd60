package uploader

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"catalog-hub/app/logger"

	"go.uber.org/zap/zaptest"
)

// fakeRecordStore 记录两段式写入的内存实现
type fakeRecordStore struct {
	saveErr      error
	reconcileErr error

	savedID     uint
	images      []string
	videoURL    string
	uploading   bool
	clearCalled bool
}

func (f *fakeRecordStore) SaveDraft(ctx context.Context) (uint, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.savedID = 42
	f.uploading = true
	return f.savedID, nil
}

func (f *fakeRecordStore) Reconcile(ctx context.Context, id uint, images []string, videoURL string) error {
	if f.reconcileErr != nil {
		return f.reconcileErr
	}
	f.images = images
	f.videoURL = videoURL
	f.uploading = false
	return nil
}

func (f *fakeRecordStore) ClearUploading(ctx context.Context, id uint) error {
	f.clearCalled = true
	f.uploading = false
	return nil
}

func newTestCoordinator(t *testing.T, registry *TaskRegistry) *Coordinator {
	log := logger.NewWithZap(zaptest.NewLogger(t))
	worker := NewWorker(registry, NewAssetOptimizer(log), newFakeBlobStore(), log, nil)
	c := NewCoordinator(registry, worker, log)
	c.pollInterval = time.Millisecond
	return c
}

func TestSubmit_NoImages(t *testing.T) {
	registry := NewTaskRegistry()
	c := newTestCoordinator(t, registry)
	store := &fakeRecordStore{}

	_, err := c.Submit(context.Background(), Draft{}, store)
	if err != ErrNoImages {
		t.Fatalf("期望 ErrNoImages，得到 %v", err)
	}
	if store.savedID != 0 {
		t.Error("校验失败不应触发写入")
	}
}

func TestSubmit_UploadsInProgress(t *testing.T) {
	registry := NewTaskRegistry()
	c := newTestCoordinator(t, registry)

	// 已接收但未上传的任务阻止提交
	if _, err := registry.Admit(makeFiles("a.jpg"), 0); err != nil {
		t.Fatalf("接收失败: %v", err)
	}

	_, err := c.Submit(context.Background(), Draft{}, &fakeRecordStore{})
	if err != ErrUploadsInProgress {
		t.Fatalf("期望 ErrUploadsInProgress，得到 %v", err)
	}
}

func TestSubmit_EndToEnd(t *testing.T) {
	registry := NewTaskRegistry()
	c := newTestCoordinator(t, registry)
	store := &fakeRecordStore{}

	draft := Draft{
		ExistingImages: []string{"https://cdn.test/products/old_a.jpg"},
		Batch:          makeFiles("b.jpg"),
	}
	result, err := c.Submit(context.Background(), draft, store)
	if err != nil {
		t.Fatalf("提交失败: %v", err)
	}

	if result.RecordID != 42 {
		t.Errorf("记录ID错误: %d", result.RecordID)
	}
	if len(result.Images) != 2 {
		t.Fatalf("期望 2 张图片，得到 %v", result.Images)
	}
	// 已有图片在前，新上传的在后
	if result.Images[0] != draft.ExistingImages[0] {
		t.Errorf("已有图片应排在最前: %v", result.Images)
	}
	if !strings.HasSuffix(result.Images[1], "_b.jpg") {
		t.Errorf("新图片地址错误: %s", result.Images[1])
	}

	if store.uploading {
		t.Error("回填后 uploading 标记应清除")
	}
	if len(store.images) != 2 {
		t.Errorf("回填的图片列表错误: %v", store.images)
	}
}

func TestSubmit_PartialFailureKeepsSucceeded(t *testing.T) {
	registry := NewTaskRegistry()
	c := newTestCoordinator(t, registry)
	store := &fakeRecordStore{}

	draft := Draft{Batch: makeFiles("x.jpg", "fail.jpg")}
	result, err := c.Submit(context.Background(), draft, store)
	if err != nil {
		t.Fatalf("单个文件失败不应中止提交: %v", err)
	}

	if result.Counts.Succeeded != 1 || result.Counts.Failed != 1 {
		t.Errorf("期望成功 1 失败 1，得到 %+v", result.Counts)
	}
	if len(result.Images) != 1 || !strings.HasSuffix(result.Images[0], "_x.jpg") {
		t.Errorf("失败的资源应从最终列表剔除: %v", result.Images)
	}
	if store.uploading {
		t.Error("uploading 标记应清除")
	}
}

func TestSubmit_TrackedTasksCollected(t *testing.T) {
	registry := NewTaskRegistry()
	c := newTestCoordinator(t, registry)

	// 第一波：提交前已经通过选择器上传完成的任务
	tasks, _ := registry.Admit(makeFiles("picked.jpg"), 0)
	c.worker.DispatchWait(context.Background(), tasks)

	store := &fakeRecordStore{}
	result, err := c.Submit(context.Background(), Draft{}, store)
	if err != nil {
		t.Fatalf("提交失败: %v", err)
	}
	if len(result.Images) != 1 || !strings.HasSuffix(result.Images[0], "_picked.jpg") {
		t.Errorf("已完成任务的结果应进入最终列表: %v", result.Images)
	}
}

func TestSubmit_VideoFile(t *testing.T) {
	registry := NewTaskRegistry()
	c := newTestCoordinator(t, registry)
	store := &fakeRecordStore{}

	draft := Draft{
		Batch:     makeFiles("a.jpg"),
		VideoFile: &IncomingFile{Name: "demo.mp4", Data: []byte("video bytes")},
	}
	result, err := c.Submit(context.Background(), draft, store)
	if err != nil {
		t.Fatalf("提交失败: %v", err)
	}
	if !strings.HasPrefix(result.VideoURL, "https://cdn.test/products/videos/") {
		t.Errorf("视频地址错误: %s", result.VideoURL)
	}
	if store.videoURL != result.VideoURL {
		t.Errorf("回填的视频地址错误: %s", store.videoURL)
	}
}

func TestSubmit_PersistFailed(t *testing.T) {
	registry := NewTaskRegistry()
	c := newTestCoordinator(t, registry)
	store := &fakeRecordStore{saveErr: errors.New("disk full")}

	_, err := c.Submit(context.Background(), Draft{Batch: makeFiles("a.jpg")}, store)
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("期望 ErrPersistFailed，得到 %v", err)
	}
}

func TestSubmit_ReconcileFailedClearsFlag(t *testing.T) {
	registry := NewTaskRegistry()
	c := newTestCoordinator(t, registry)
	store := &fakeRecordStore{reconcileErr: errors.New("connection reset")}

	result, err := c.Submit(context.Background(), Draft{Batch: makeFiles("a.jpg")}, store)
	if !errors.Is(err, ErrReconcileFailed) {
		t.Fatalf("期望 ErrReconcileFailed，得到 %v", err)
	}
	if result == nil {
		t.Fatal("回填失败仍应返回已收集的结果")
	}
	if len(result.Images) != 1 {
		t.Errorf("结果应包含成功上传的图片: %v", result.Images)
	}
	if !store.clearCalled {
		t.Error("回填失败后应尽力清除 uploading 标记")
	}
}

func TestSubmit_BatchQuotaExceeded(t *testing.T) {
	registry := NewTaskRegistry()
	c := newTestCoordinator(t, registry)
	store := &fakeRecordStore{}

	draft := Draft{Batch: makeFiles("1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg", "6.jpg", "7.jpg")}
	_, err := c.Submit(context.Background(), draft, store)
	if err != ErrQuotaExceeded {
		t.Fatalf("期望 ErrQuotaExceeded，得到 %v", err)
	}
	if !store.clearCalled {
		t.Error("乐观写入后出错应清除 uploading 标记")
	}
}

func TestSubmit_VideoTooLarge(t *testing.T) {
	registry := NewTaskRegistry()
	c := newTestCoordinator(t, registry)
	store := &fakeRecordStore{}

	draft := Draft{
		Batch:     makeFiles("a.jpg"),
		VideoFile: &IncomingFile{Name: "huge.mp4", Data: make([]byte, MaxVideoSize+1)},
	}
	_, err := c.Submit(context.Background(), draft, store)
	if err != ErrVideoTooLarge {
		t.Fatalf("期望 ErrVideoTooLarge，得到 %v", err)
	}
	if !store.clearCalled {
		t.Error("乐观写入后出错应清除 uploading 标记")
	}
}
