package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"catalog-hub/app/config"
	"catalog-hub/app/logger"
)

// localChunkSize 本地写入的分块大小，每块写完上报一次进度
const localChunkSize = 256 * 1024

// LocalBlobStore 写入本地文件系统的对象存储实现，用于自托管部署
type LocalBlobStore struct {
	baseDir   string
	publicURL string
	log       *logger.Logger
}

// NewLocalBlobStore 创建本地文件存储
func NewLocalBlobStore(cfg *config.Config, log *logger.Logger) *LocalBlobStore {
	return &LocalBlobStore{
		baseDir:   cfg.Storage.LocalDir,
		publicURL: strings.TrimRight(cfg.Storage.PublicURL, "/"),
		log:       log,
	}
}

// Put 分块写入文件并上报进度。先写临时文件，完成后重命名，避免留下半成品。
func (s *LocalBlobStore) Put(ctx context.Context, key string, data []byte, onProgress ProgressFunc) (string, error) {
	target := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("创建存储目录失败: %w", err)
	}

	tmp := target + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("创建文件失败: %w", err)
	}

	reader := newProgressReader(data, onProgress)
	buf := make([]byte, localChunkSize)
	if _, err := io.CopyBuffer(file, readerWithContext(ctx, reader), buf); err != nil {
		file.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("写入文件失败: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("刷新文件到磁盘失败: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("关闭文件失败: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("重命名文件失败: %w", err)
	}

	url := s.publicURL + "/" + key
	s.log.Debugf("本地写入完成: %s (%d 字节)", target, len(data))
	return url, nil
}

// readerWithContext 在每次读取前检查上下文是否已取消
func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}
