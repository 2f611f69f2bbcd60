package model

import (
	"time"
)

// Category 商品分类模型
type Category struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Name      string    `json:"name" gorm:"size:100;uniqueIndex;not null;comment:分类名称"`
	SortOrder int       `json:"sort_order" gorm:"default:0;comment:排序"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Category) TableName() string {
	return "categories"
}
