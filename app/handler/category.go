package handler

import (
	"net/http"
	"time"

	"catalog-hub/app/database"
	"catalog-hub/app/logger"
	"catalog-hub/app/model"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// categoryCacheKey 分类列表的缓存键
const categoryCacheKey = "categories"

// CategoryHandler 分类处理器。表单每次挂载都会拉取分类列表，加一层短缓存。
type CategoryHandler struct {
	logger  *logger.Logger
	goCache *cache.Cache
}

// NewCategoryHandler 创建分类处理器
func NewCategoryHandler(log *logger.Logger) *CategoryHandler {
	return &CategoryHandler{
		logger:  log,
		goCache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (h *CategoryHandler) success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{Code: 0, Message: message, Data: data})
}

func (h *CategoryHandler) error(c *gin.Context, statusCode int, errorCode int, message string) {
	c.JSON(statusCode, ApiResponse{Code: errorCode, Message: message})
}

// List 分类列表
func (h *CategoryHandler) List(c *gin.Context) {
	if cached, found := h.goCache.Get(categoryCacheKey); found {
		h.success(c, cached, "success")
		return
	}

	var categories []model.Category
	db := database.GetDB()
	if err := db.Order("sort_order ASC, name ASC").Find(&categories).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "查询分类失败: "+err.Error())
		return
	}

	h.goCache.Set(categoryCacheKey, categories, cache.DefaultExpiration)
	h.success(c, categories, "success")
}

// CreateCategoryRequest 新建分类请求
type CreateCategoryRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// Create 新建分类
func (h *CategoryHandler) Create(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, http.StatusBadRequest, 400, "请求参数错误: "+err.Error())
		return
	}

	db := database.GetDB()

	var existing model.Category
	if result := db.Where("name = ?", req.Name).First(&existing); result.Error == nil {
		h.error(c, http.StatusConflict, 409, "分类已存在")
		return
	}

	category := model.Category{Name: req.Name}
	if err := db.Create(&category).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "创建分类失败: "+err.Error())
		return
	}

	// 新建后使缓存失效
	h.goCache.Delete(categoryCacheKey)
	h.success(c, category, "分类创建成功")
}
