package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"catalog-hub/app/config"
	"catalog-hub/app/logger"

	"go.uber.org/zap/zaptest"
)

func newTestLocalStore(t *testing.T) *LocalBlobStore {
	cfg := &config.Config{}
	cfg.Storage.LocalDir = t.TempDir()
	cfg.Storage.PublicURL = "/assets/"
	return NewLocalBlobStore(cfg, logger.NewWithZap(zaptest.NewLogger(t)))
}

func TestLocalPut_WritesFileAndReportsProgress(t *testing.T) {
	store := newTestLocalStore(t)
	data := bytes.Repeat([]byte("x"), 3*localChunkSize+17)

	var lastDone, lastTotal int64
	url, err := store.Put(context.Background(), "products/123_a.jpg", data, func(done, total int64) {
		if done < lastDone {
			t.Errorf("进度回退: %d -> %d", lastDone, done)
		}
		lastDone, lastTotal = done, total
	})
	if err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	if url != "/assets/products/123_a.jpg" {
		t.Errorf("返回地址错误: %s", url)
	}
	if lastDone != int64(len(data)) || lastTotal != int64(len(data)) {
		t.Errorf("进度未到达总量: done=%d total=%d", lastDone, lastTotal)
	}

	written, err := os.ReadFile(filepath.Join(store.baseDir, "products", "123_a.jpg"))
	if err != nil {
		t.Fatalf("读取写入的文件失败: %v", err)
	}
	if !bytes.Equal(written, data) {
		t.Error("写入内容与输入不一致")
	}
}

func TestLocalPut_NoTempFileLeftBehind(t *testing.T) {
	store := newTestLocalStore(t)

	if _, err := store.Put(context.Background(), "products/1_b.jpg", []byte("abc"), nil); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	if _, err := os.Stat(filepath.Join(store.baseDir, "products", "1_b.jpg.tmp")); !os.IsNotExist(err) {
		t.Error("临时文件应在写入完成后删除")
	}
}

func TestLocalPut_CanceledContext(t *testing.T) {
	store := newTestLocalStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Put(ctx, "products/1_c.jpg", []byte("abc"), nil); err == nil {
		t.Fatal("已取消的上下文应返回错误")
	}
	if _, err := os.Stat(filepath.Join(store.baseDir, "products", "1_c.jpg")); !os.IsNotExist(err) {
		t.Error("取消后不应留下目标文件")
	}
}
