package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"catalog-hub/app/logger"
	"catalog-hub/app/service"
	"catalog-hub/app/uploader"

	"github.com/gin-gonic/gin"
)

// UploadHandler 表单上传处理器：接收文件、查询进度、移除预览
type UploadHandler struct {
	service *service.ProductService
	logger  *logger.Logger
}

// NewUploadHandler 创建上传处理器
func NewUploadHandler(svc *service.ProductService, log *logger.Logger) *UploadHandler {
	return &UploadHandler{service: svc, logger: log}
}

func (h *UploadHandler) success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{Code: 0, Message: message, Data: data})
}

func (h *UploadHandler) error(c *gin.Context, statusCode int, errorCode int, message string) {
	c.JSON(statusCode, ApiResponse{Code: errorCode, Message: message})
}

// Admit 接收一批图片文件并立即开始上传。
// 表单字段：files（多文件）、session_id（可空，空则新建会话）、existing_count。
func (h *UploadHandler) Admit(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.error(c, http.StatusBadRequest, 400, "解析表单失败: "+err.Error())
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		h.error(c, http.StatusBadRequest, 400, "未选择任何文件")
		return
	}

	files, err := readFiles(headers)
	if err != nil {
		h.error(c, http.StatusBadRequest, 400, "读取文件失败: "+err.Error())
		return
	}

	existingCount, _ := strconv.Atoi(c.PostForm("existing_count"))
	sess := h.service.Session(c.PostForm("session_id"))

	tasks, err := h.service.AdmitImages(c.Request.Context(), sess, files, existingCount)
	if errors.Is(err, uploader.ErrQuotaExceeded) {
		h.error(c, http.StatusBadRequest, 400, "最多只能上传 6 张图片")
		return
	}
	if err != nil {
		h.error(c, http.StatusInternalServerError, 500, "接收文件失败: "+err.Error())
		return
	}

	h.success(c, gin.H{
		"session_id": sess.ID,
		"tasks":      tasks,
	}, "已开始上传")
}

// Status 查询会话的上传进度汇总
func (h *UploadHandler) Status(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		h.error(c, http.StatusBadRequest, 400, "session_id 不能为空")
		return
	}

	sess := h.service.Session(sessionID)
	tasks, counts := h.service.Status(sess)

	h.success(c, gin.H{
		"session_id": sess.ID,
		"tasks":      tasks,
		"counts":     counts,
		"complete":   uploader.IsComplete(tasks),
	}, "success")
}

// Remove 移除一个上传预览。正在上传的任务不允许移除。
func (h *UploadHandler) Remove(c *gin.Context) {
	sessionID := c.Query("session_id")
	taskID := c.Param("taskId")
	if sessionID == "" || taskID == "" {
		h.error(c, http.StatusBadRequest, 400, "session_id 和 taskId 不能为空")
		return
	}

	sess := h.service.Session(sessionID)
	if err := h.service.RemoveTask(sess, taskID); err != nil {
		h.error(c, http.StatusConflict, 409, "任务正在上传，无法移除")
		return
	}

	h.success(c, nil, "已移除")
}

// Discard 丢弃整个上传会话（离开表单时调用）
func (h *UploadHandler) Discard(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		h.error(c, http.StatusBadRequest, 400, "session_id 不能为空")
		return
	}
	h.service.Discard(sessionID)
	h.success(c, nil, "会话已丢弃")
}

// readFiles 把 multipart 文件读入内存
func readFiles(headers []*multipart.FileHeader) ([]uploader.IncomingFile, error) {
	files := make([]uploader.IncomingFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, uploader.IncomingFile{Name: fh.Filename, Data: data})
	}
	return files, nil
}
