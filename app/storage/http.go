package storage

import (
	"context"
	"fmt"
	"strings"

	"catalog-hub/app/config"
	"catalog-hub/app/logger"

	"resty.dev/v3"
)

// HTTPBlobStore 通过 HTTP PUT 上传到对象存储服务
type HTTPBlobStore struct {
	client    *resty.Client
	publicURL string
	log       *logger.Logger
}

// NewHTTPBlobStore 创建 HTTP 对象存储客户端
func NewHTTPBlobStore(cfg *config.Config, log *logger.Logger) *HTTPBlobStore {
	client := resty.New().SetBaseURL(strings.TrimRight(cfg.Storage.Endpoint, "/"))

	publicURL := cfg.Storage.PublicURL
	if publicURL == "" {
		publicURL = cfg.Storage.Endpoint
	}

	return &HTTPBlobStore{
		client:    client,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       log,
	}
}

// Put 上传内容并返回对外访问地址
func (s *HTTPBlobStore) Put(ctx context.Context, key string, data []byte, onProgress ProgressFunc) (string, error) {
	body := newProgressReader(data, onProgress)

	res, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetContentLength(true).
		SetBody(body).
		Put("/" + key)
	if err != nil {
		return "", fmt.Errorf("上传 %s 失败: %w", key, err)
	}

	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		return "", fmt.Errorf("上传 %s 失败，状态码: %d", key, res.StatusCode())
	}

	url := s.publicURL + "/" + key
	s.log.Debugf("上传完成: %s (%d 字节)", url, len(data))
	return url, nil
}

// Close 释放底层客户端
func (s *HTTPBlobStore) Close() error {
	return s.client.Close()
}
