package model

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品模型
type Product struct {
	ID             uint              `json:"id" gorm:"primarykey"`
	Name           string            `json:"name" gorm:"size:200;not null;comment:商品名称"`
	Description    string            `json:"description" gorm:"type:text;comment:商品描述"`
	Price          float64           `json:"price" gorm:"not null;comment:售价"`
	OriginalPrice  float64           `json:"original_price" gorm:"default:0;comment:原价"`
	Discount       int               `json:"discount" gorm:"default:0;comment:折扣百分比"`
	Category       string            `json:"category" gorm:"size:100;index;comment:分类"`
	Featured       bool              `json:"featured" gorm:"default:false;comment:是否推荐"`
	Stock          int               `json:"stock" gorm:"default:0;comment:库存"`
	Images         []string          `json:"images" gorm:"serializer:json;comment:图片地址列表"`
	VideoURL       string            `json:"video_url" gorm:"size:500;comment:视频地址"`
	Specifications map[string]string `json:"specifications" gorm:"serializer:json;comment:规格参数"`
	Uploading      bool              `json:"uploading" gorm:"default:false;comment:资源是否仍在上传"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	DeletedAt      gorm.DeletedAt    `json:"-" gorm:"index"`
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// AfterFind 规范化可缺省字段，避免调用方到处判空
func (p *Product) AfterFind(tx *gorm.DB) error {
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
	return nil
}
