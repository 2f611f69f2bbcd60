package database

import "catalog-hub/app/model"

func AutoMigrate() error {
	// 自动迁移表结构
	return DB.AutoMigrate(
		&model.User{},
		&model.Category{},
		&model.Product{},
	)
}
