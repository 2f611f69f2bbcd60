package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"catalog-hub/app/logger"
	"catalog-hub/app/model"
	"catalog-hub/app/storage"
	"catalog-hub/app/uploader"

	"gorm.io/gorm"
)

// ErrTaskUploading 正在上传的任务不允许移除
var ErrTaskUploading = errors.New("service: task is uploading")

// ErrProductNotFound 商品不存在
var ErrProductNotFound = errors.New("service: product not found")

// sessionTTL 表单会话的空闲过期时间
const sessionTTL = 2 * time.Hour

// DraftSession 一次商品表单的上传会话，持有该会话的任务注册表
type DraftSession struct {
	ID        string
	Registry  *uploader.TaskRegistry
	Worker    *uploader.Worker
	VideoURL  string
	VideoFile *uploader.IncomingFile
	Batch     []uploader.IncomingFile

	events  chan uploader.Event
	done    chan struct{}
	touched time.Time
}

// ProductForm 提交商品时的非资源字段
type ProductForm struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Price          float64           `json:"price"`
	OriginalPrice  float64           `json:"original_price"`
	Category       string            `json:"category"`
	Featured       bool              `json:"featured"`
	Stock          int               `json:"stock"`
	Images         []string          `json:"images"` // 已持久化或直接粘贴的图片地址
	VideoURL       string            `json:"video_url"`
	Specifications map[string]string `json:"specifications"`
}

// ProductService 商品服务：表单会话管理、上传接收、提交协调
type ProductService struct {
	db    *gorm.DB
	store storage.BlobStore
	log   *logger.Logger

	mu       sync.Mutex
	sessions map[string]*DraftSession
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewProductService 创建商品服务并启动会话清理器
func NewProductService(db *gorm.DB, store storage.BlobStore, log *logger.Logger) *ProductService {
	s := &ProductService{
		db:       db,
		store:    store,
		log:      log,
		sessions: make(map[string]*DraftSession),
		stopCh:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupWorker()

	return s
}

// Stop 停止后台清理器
func (s *ProductService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// Session 获取或创建表单会话。sessionID 为空时生成新会话。
func (s *ProductService) Session(sessionID string) *DraftSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != "" {
		if sess, ok := s.sessions[sessionID]; ok {
			sess.touched = time.Now()
			return sess
		}
	}

	if sessionID == "" {
		sessionID = fmt.Sprintf("draft-%d-%s", time.Now().UnixMilli(), strconv.FormatInt(rand.Int63(), 36))
	}

	registry := uploader.NewTaskRegistry()
	events := make(chan uploader.Event, 64)
	sess := &DraftSession{
		ID:       sessionID,
		Registry: registry,
		Worker:   uploader.NewWorker(registry, uploader.NewAssetOptimizer(s.log), s.store, s.log, events),
		events:   events,
		done:     make(chan struct{}),
		touched:  time.Now(),
	}
	s.sessions[sessionID] = sess

	// 消费该会话的任务事件，落到日志供排查
	s.wg.Add(1)
	go s.drainEvents(sess)

	return sess
}

// AdmitImages 直接选择/拖拽路径：整批接收并立即并发上传。
// existingCount 为表单当前已有的图片数量，参与配额计算。
func (s *ProductService) AdmitImages(ctx context.Context, sess *DraftSession, files []uploader.IncomingFile, existingCount int) ([]*uploader.UploadTask, error) {
	tasks, err := sess.Registry.Admit(files, existingCount)
	if err != nil {
		return nil, err
	}
	sess.Worker.Dispatch(ctx, tasks)
	s.log.Infof("会话 %s 接收 %d 个图片上传任务", sess.ID, len(tasks))
	return tasks, nil
}

// AddBatch 旧式批量路径：文件先收集，提交时才统一上传
func (s *ProductService) AddBatch(sess *DraftSession, files []uploader.IncomingFile) {
	sess.Batch = append(sess.Batch, files...)
}

// SetVideoFile 设置待上传的视频文件，与外部链接互斥
func (s *ProductService) SetVideoFile(sess *DraftSession, f uploader.IncomingFile) error {
	if len(f.Data) > uploader.MaxVideoSize {
		return uploader.ErrVideoTooLarge
	}
	sess.VideoFile = &f
	sess.VideoURL = ""
	return nil
}

// SetVideoURL 设置外部视频链接，清除已选的视频文件
func (s *ProductService) SetVideoURL(sess *DraftSession, url string) {
	sess.VideoURL = url
	sess.VideoFile = nil
}

// RemoveTask 移除一个预览任务。上传中的任务拒绝移除。
func (s *ProductService) RemoveTask(sess *DraftSession, taskID string) error {
	for _, t := range sess.Registry.All() {
		if t.ID == taskID {
			if t.Status == uploader.StatusUploading {
				return ErrTaskUploading
			}
			sess.Registry.Remove(taskID)
			return nil
		}
	}
	return nil
}

// Status 返回会话的任务快照与汇总
func (s *ProductService) Status(sess *DraftSession) ([]uploader.UploadTask, uploader.Counts) {
	tasks := sess.Registry.All()
	return tasks, uploader.Summarize(tasks)
}

// Discard 丢弃会话（离开表单时调用）
func (s *ProductService) Discard(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.Registry.Clear()
		close(sess.done)
		delete(s.sessions, sessionID)
	}
}

// SubmitProduct 提交商品：乐观写入、等待上传收敛、回填资源地址。
// productID 为 0 表示新建，否则更新已有商品。
func (s *ProductService) SubmitProduct(ctx context.Context, sess *DraftSession, productID uint, form ProductForm) (*uploader.SubmitResult, error) {
	product := s.buildProduct(productID, form)
	store := &gormRecordStore{db: s.db, product: product}

	draft := uploader.Draft{
		ExistingImages: form.Images,
		VideoURL:       sess.VideoURL,
		VideoFile:      sess.VideoFile,
		Batch:          sess.Batch,
	}
	if draft.VideoURL == "" && draft.VideoFile == nil {
		draft.VideoURL = form.VideoURL
	}

	coordinator := uploader.NewCoordinator(sess.Registry, sess.Worker, s.log)
	result, err := coordinator.Submit(ctx, draft, store)

	// 提交已落库（包括回填失败的情况）后会话即结束
	if result != nil {
		s.Discard(sess.ID)
	}
	return result, err
}

// GetProduct 查询单个商品
func (s *ProductService) GetProduct(ctx context.Context, id uint) (*model.Product, error) {
	var product model.Product
	err := s.db.WithContext(ctx).First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts 查询商品列表，可按分类过滤
func (s *ProductService) ListProducts(ctx context.Context, category string) ([]model.Product, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if category != "" {
		query = query.Where("category = ?", category)
	}
	var products []model.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// DeleteProduct 删除商品
func (s *ProductService) DeleteProduct(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&model.Product{}, id).Error
}

// buildProduct 由表单构造商品记录，折扣按原价与售价推导
func (s *ProductService) buildProduct(productID uint, form ProductForm) *model.Product {
	discount := 0
	if form.OriginalPrice > 0 && form.Price > 0 && form.OriginalPrice > form.Price {
		discount = int(math.Round((form.OriginalPrice - form.Price) / form.OriginalPrice * 100))
	}

	images := form.Images
	if images == nil {
		images = []string{}
	}
	specs := form.Specifications
	if specs == nil {
		specs = map[string]string{}
	}

	return &model.Product{
		ID:             productID,
		Name:           form.Name,
		Description:    form.Description,
		Price:          form.Price,
		OriginalPrice:  form.OriginalPrice,
		Discount:       discount,
		Category:       form.Category,
		Featured:       form.Featured,
		Stock:          form.Stock,
		Images:         images,
		VideoURL:       form.VideoURL,
		Specifications: specs,
	}
}

// drainEvents 消费会话事件并写日志
func (s *ProductService) drainEvents(sess *DraftSession) {
	defer s.wg.Done()
	for {
		select {
		case <-sess.done:
			return
		case <-s.stopCh:
			return
		case ev := <-sess.events:
			if ev.Status == uploader.StatusUploading {
				s.log.Debugf("上传进度: 会话=%s, 任务=%s, %d%%", sess.ID, ev.TaskID, ev.Progress)
			} else {
				s.log.Infof("任务到达终态: 会话=%s, 任务=%s, 状态=%s", sess.ID, ev.TaskID, ev.Status)
			}
		}
	}
}

// cleanupWorker 定期清理空闲过期的会话
func (s *ProductService) cleanupWorker() {
	defer s.wg.Done()

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.cleanupSessions()
		}
	}
}

// cleanupSessions 移除长时间无操作的会话
func (s *ProductService) cleanupSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-sessionTTL)
	for id, sess := range s.sessions {
		if sess.touched.Before(cutoff) {
			sess.Registry.Clear()
			close(sess.done)
			delete(s.sessions, id)
			s.log.Infof("清理过期会话: %s", id)
		}
	}
}
