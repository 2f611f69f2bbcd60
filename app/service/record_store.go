package service

import (
	"context"

	"catalog-hub/app/model"

	"gorm.io/gorm"
)

// gormRecordStore 基于 gorm 的商品记录存储，实现 uploader.RecordStore。
// 每次提交构造一个实例，闭包持有本次提交的表单字段。
type gormRecordStore struct {
	db      *gorm.DB
	product *model.Product // 非资源字段 + 已有图片
}

// 乐观写入与回填涉及的字段
var draftColumns = []string{
	"name", "description", "price", "original_price", "discount",
	"category", "featured", "stock", "images", "video_url",
	"specifications", "uploading",
}

// SaveDraft 乐观写入：新记录直接创建，已有记录整体更新，uploading 置 true
func (s *gormRecordStore) SaveDraft(ctx context.Context) (uint, error) {
	s.product.Uploading = true

	if s.product.ID == 0 {
		if err := s.db.WithContext(ctx).Create(s.product).Error; err != nil {
			return 0, err
		}
		return s.product.ID, nil
	}

	err := s.db.WithContext(ctx).
		Model(&model.Product{ID: s.product.ID}).
		Select(draftColumns).
		Updates(s.product).Error
	if err != nil {
		return 0, err
	}
	return s.product.ID, nil
}

// Reconcile 回填最终图片列表与视频地址，清除 uploading 标记
func (s *gormRecordStore) Reconcile(ctx context.Context, id uint, images []string, videoURL string) error {
	return s.db.WithContext(ctx).
		Model(&model.Product{ID: id}).
		Select("images", "video_url", "uploading").
		Updates(model.Product{Images: images, VideoURL: videoURL, Uploading: false}).Error
}

// ClearUploading 仅清除 uploading 标记
func (s *gormRecordStore) ClearUploading(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Update("uploading", false).Error
}
