package uploader

import (
	"context"
	"fmt"
	"time"

	"catalog-hub/app/logger"
)

// RecordStore 商品记录的持久化边界。
// 一次提交产生两次写：先写 uploading=true 的乐观记录，再做最终回填。
type RecordStore interface {
	// SaveDraft 乐观写入：保存非资源字段与已有图片，标记 uploading=true
	SaveDraft(ctx context.Context) (uint, error)
	// Reconcile 最终写入：回填完整图片列表与视频地址，标记 uploading=false
	Reconcile(ctx context.Context, id uint, images []string, videoURL string) error
	// ClearUploading 仅清除 uploading 标记，回填失败时的兜底
	ClearUploading(ctx context.Context, id uint) error
}

// Draft 一次提交中与资源相关的部分
type Draft struct {
	ExistingImages []string       // 编辑模式下已持久化的图片地址
	VideoURL       string         // 外部视频链接，与 VideoFile 互斥
	VideoFile      *IncomingFile  // 待上传的视频文件
	Batch          []IncomingFile // 旧式批量路径：提交时才上传的图片
}

// SubmitResult 提交结果
type SubmitResult struct {
	RecordID uint     `json:"record_id"`
	Images   []string `json:"images"`
	VideoURL string   `json:"video_url"`
	Counts   Counts   `json:"counts"`
}

// defaultPollInterval 等待上传收敛时的轮询间隔
const defaultPollInterval = 100 * time.Millisecond

// Coordinator 序列化一次提交：校验、乐观写入、等待上传收敛、最终回填
type Coordinator struct {
	registry     *TaskRegistry
	worker       *Worker
	log          *logger.Logger
	pollInterval time.Duration
}

// NewCoordinator 创建提交协调器
func NewCoordinator(registry *TaskRegistry, worker *Worker, log *logger.Logger) *Coordinator {
	return &Coordinator{
		registry:     registry,
		worker:       worker,
		log:          log,
		pollInterval: defaultPollInterval,
	}
}

// Submit 执行一次提交。
// 单个文件的上传失败不会中止提交，失败的资源只从最终列表中剔除；
// 结构性错误（配额、无图片、上传未完成、写入失败）直接返回。
func (c *Coordinator) Submit(ctx context.Context, draft Draft, store RecordStore) (*SubmitResult, error) {
	// 已追踪的任务必须全部到终态才允许提交
	if !IsComplete(c.registry.All()) {
		return nil, ErrUploadsInProgress
	}

	// 至少要有一张图片：已有的、已追踪的或本次批量附带的
	if len(draft.ExistingImages) == 0 && c.registry.Len() == 0 && len(draft.Batch) == 0 {
		return nil, ErrNoImages
	}

	// 乐观写入：先让记录可见，资源稍后回填
	recordID, err := store.SaveDraft(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	c.log.Infof("商品记录已预写入: ID=%d, 已有图片=%d", recordID, len(draft.ExistingImages))

	// 第二波上传：旧式批量路径的图片与视频走同一条接收管线，顺序上传
	if len(draft.Batch) > 0 {
		admitted, err := c.registry.Admit(draft.Batch, len(draft.ExistingImages))
		if err != nil {
			c.clearUploading(ctx, store, recordID)
			return nil, err
		}
		for _, t := range admitted {
			c.worker.Run(ctx, t.ID)
		}
	}
	if draft.VideoFile != nil {
		videoTask, err := c.registry.AdmitVideo(*draft.VideoFile)
		if err != nil {
			c.clearUploading(ctx, store, recordID)
			return nil, err
		}
		c.worker.Run(ctx, videoTask.ID)
	}

	// 等待所有追踪的任务收敛到终态
	if err := c.awaitCompletion(ctx); err != nil {
		c.clearUploading(ctx, store, recordID)
		return nil, err
	}

	// 收集成功的上传结果，失败的任务只上报不致命
	tasks := c.registry.All()
	images := append([]string{}, draft.ExistingImages...)
	videoURL := draft.VideoURL
	for _, t := range tasks {
		if t.Status != StatusSuccess {
			continue
		}
		switch t.Kind {
		case KindImage:
			images = append(images, t.ResultURL)
		case KindVideo:
			videoURL = t.ResultURL
		}
	}

	counts := Summarize(tasks)
	result := &SubmitResult{
		RecordID: recordID,
		Images:   images,
		VideoURL: videoURL,
		Counts:   counts,
	}

	// 最终回填。失败时尽力清除 uploading 标记，记录保留已成功的资源。
	if err := store.Reconcile(ctx, recordID, images, videoURL); err != nil {
		c.log.Errorf("商品记录回填失败: ID=%d, 错误: %v", recordID, err)
		c.clearUploading(ctx, store, recordID)
		return result, fmt.Errorf("%w: %v", ErrReconcileFailed, err)
	}

	if counts.Failed > 0 {
		c.log.Warnf("提交完成但有失败的上传: ID=%d, 成功=%d, 失败=%d", recordID, counts.Succeeded, counts.Failed)
	} else {
		c.log.Infof("提交完成: ID=%d, 图片=%d, 视频=%q", recordID, len(images), videoURL)
	}
	return result, nil
}

// awaitCompletion 轮询等待全部任务到终态，不阻塞其他任务推进
func (c *Coordinator) awaitCompletion(ctx context.Context) error {
	if IsComplete(c.registry.All()) {
		return nil
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if IsComplete(c.registry.All()) {
				return nil
			}
		}
	}
}

// clearUploading 兜底清除 uploading 标记，确保记录不会永远停在上传中
func (c *Coordinator) clearUploading(ctx context.Context, store RecordStore, id uint) {
	if err := store.ClearUploading(ctx, id); err != nil {
		c.log.Errorf("清除 uploading 标记失败: ID=%d, 错误: %v", id, err)
	}
}
