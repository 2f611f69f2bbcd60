package storage

import (
	"bytes"
	"context"
	"io"
)

// ProgressFunc 上传进度回调，done 为已传输字节数，total 为总字节数
type ProgressFunc func(done, total int64)

// BlobStore 对象存储写入接口
type BlobStore interface {
	// Put 按 key 写入内容并返回可访问的地址，期间通过 onProgress 上报进度
	Put(ctx context.Context, key string, data []byte, onProgress ProgressFunc) (string, error)
}

// progressReader 包装读取端，按读取量上报进度
type progressReader struct {
	r          io.Reader
	total      int64
	done       int64
	onProgress ProgressFunc
}

func newProgressReader(data []byte, onProgress ProgressFunc) *progressReader {
	return &progressReader{
		r:          bytes.NewReader(data),
		total:      int64(len(data)),
		onProgress: onProgress,
	}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.done, p.total)
		}
	}
	return n, err
}
