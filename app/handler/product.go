package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"catalog-hub/app/logger"
	"catalog-hub/app/service"
	"catalog-hub/app/uploader"

	"github.com/gin-gonic/gin"
)

// ProductHandler 商品处理器
type ProductHandler struct {
	service *service.ProductService
	logger  *logger.Logger
}

// NewProductHandler 创建商品处理器
func NewProductHandler(svc *service.ProductService, log *logger.Logger) *ProductHandler {
	return &ProductHandler{service: svc, logger: log}
}

func (h *ProductHandler) success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{Code: 0, Message: message, Data: data})
}

func (h *ProductHandler) error(c *gin.Context, statusCode int, errorCode int, message string) {
	c.JSON(statusCode, ApiResponse{Code: errorCode, Message: message})
}

// List 商品列表，可按分类过滤
func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.service.ListProducts(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.error(c, http.StatusInternalServerError, 500, "查询商品列表失败: "+err.Error())
		return
	}
	h.success(c, products, "success")
}

// Get 商品详情
func (h *ProductHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		h.error(c, http.StatusBadRequest, 400, "商品ID无效")
		return
	}

	product, err := h.service.GetProduct(c.Request.Context(), uint(id))
	if errors.Is(err, service.ErrProductNotFound) {
		h.error(c, http.StatusNotFound, 404, "商品不存在")
		return
	}
	if err != nil {
		h.error(c, http.StatusInternalServerError, 500, "查询商品失败: "+err.Error())
		return
	}
	h.success(c, product, "success")
}

// Create 新建商品并提交
func (h *ProductHandler) Create(c *gin.Context) {
	h.submit(c, 0)
}

// Update 更新已有商品并提交
func (h *ProductHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		h.error(c, http.StatusBadRequest, 400, "商品ID无效")
		return
	}
	h.submit(c, uint(id))
}

// Delete 删除商品
func (h *ProductHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		h.error(c, http.StatusBadRequest, 400, "商品ID无效")
		return
	}
	if err := h.service.DeleteProduct(c.Request.Context(), uint(id)); err != nil {
		h.error(c, http.StatusInternalServerError, 500, "删除商品失败: "+err.Error())
		return
	}
	h.success(c, nil, "已删除")
}

// submit 解析表单并走提交协调流程。
// 支持两条图片路径：session_id 关联的已上传任务，以及随表单附带的批量文件。
func (h *ProductHandler) submit(c *gin.Context, productID uint) {
	form, err := parseProductForm(c)
	if err != nil {
		h.error(c, http.StatusBadRequest, 400, "表单参数错误: "+err.Error())
		return
	}

	if verr := validateProductForm(form); verr != "" {
		h.error(c, http.StatusBadRequest, 400, verr)
		return
	}

	sess := h.service.Session(c.PostForm("session_id"))

	// 旧式批量路径：表单附带的图片文件在提交时统一上传
	if mf, err := c.MultipartForm(); err == nil {
		if headers := mf.File["images"]; len(headers) > 0 {
			files, err := readFiles(headers)
			if err != nil {
				h.error(c, http.StatusBadRequest, 400, "读取图片失败: "+err.Error())
				return
			}
			h.service.AddBatch(sess, files)
		}
		if headers := mf.File["video"]; len(headers) > 0 {
			files, err := readFiles(headers[:1])
			if err != nil {
				h.error(c, http.StatusBadRequest, 400, "读取视频失败: "+err.Error())
				return
			}
			if err := h.service.SetVideoFile(sess, files[0]); err != nil {
				h.error(c, http.StatusBadRequest, 400, "视频文件过大，最大 100MB")
				return
			}
		}
	}
	if form.VideoURL != "" && sess.VideoFile == nil {
		h.service.SetVideoURL(sess, form.VideoURL)
	}

	result, err := h.service.SubmitProduct(c.Request.Context(), sess, productID, *form)
	if err != nil {
		h.submitError(c, result, err)
		return
	}

	message := "商品已保存"
	if result.Counts.Failed > 0 {
		message = "商品已保存，但部分图片上传失败"
	}
	h.success(c, result, message)
}

// submitError 把提交错误映射为对应的HTTP响应
func (h *ProductHandler) submitError(c *gin.Context, result *uploader.SubmitResult, err error) {
	switch {
	case errors.Is(err, uploader.ErrUploadsInProgress):
		h.error(c, http.StatusConflict, 409, "请等待图片上传完成后再提交")
	case errors.Is(err, uploader.ErrNoImages):
		h.error(c, http.StatusBadRequest, 400, "至少需要一张商品图片")
	case errors.Is(err, uploader.ErrQuotaExceeded):
		h.error(c, http.StatusBadRequest, 400, "最多只能上传 6 张图片")
	case errors.Is(err, uploader.ErrVideoTooLarge):
		h.error(c, http.StatusBadRequest, 400, "视频文件过大，最大 100MB")
	case errors.Is(err, uploader.ErrPersistFailed):
		h.error(c, http.StatusInternalServerError, 500, "保存商品失败，请重试")
	case errors.Is(err, uploader.ErrReconcileFailed):
		// 记录已保存，只是资源回填失败
		c.JSON(http.StatusOK, ApiResponse{
			Code:    1,
			Message: "商品已保存，但资源地址回填失败",
			Data:    result,
		})
	default:
		h.error(c, http.StatusInternalServerError, 500, "提交失败: "+err.Error())
	}
}

// parseProductForm 解析 multipart 表单字段
func parseProductForm(c *gin.Context) (*service.ProductForm, error) {
	price, _ := strconv.ParseFloat(c.PostForm("price"), 64)
	originalPrice, _ := strconv.ParseFloat(c.PostForm("original_price"), 64)
	stock, _ := strconv.Atoi(c.PostForm("stock"))
	featured, _ := strconv.ParseBool(c.DefaultPostForm("featured", "false"))

	form := &service.ProductForm{
		Name:          c.PostForm("name"),
		Description:   c.PostForm("description"),
		Price:         price,
		OriginalPrice: originalPrice,
		Category:      c.PostForm("category"),
		Featured:      featured,
		Stock:         stock,
		VideoURL:      c.PostForm("video_url"),
	}

	// 已有图片与规格以 JSON 形式提交，缺省时落到空容器
	if raw := c.PostForm("images"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &form.Images); err != nil {
			return nil, err
		}
	}
	if form.Images == nil {
		form.Images = []string{}
	}
	if raw := c.PostForm("specifications"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &form.Specifications); err != nil {
			return nil, err
		}
	}
	if form.Specifications == nil {
		form.Specifications = map[string]string{}
	}

	return form, nil
}

// validateProductForm 校验必填字段，返回第一条错误信息
func validateProductForm(form *service.ProductForm) string {
	if form.Name == "" {
		return "商品名称不能为空"
	}
	if form.Description == "" {
		return "商品描述不能为空"
	}
	if form.Price <= 0 {
		return "售价必须大于 0"
	}
	if form.Category == "" {
		return "商品分类不能为空"
	}
	if form.Stock < 0 {
		return "库存不能为负数"
	}
	return ""
}
