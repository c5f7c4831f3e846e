package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"
)

// Store 对象存储，用于导出文件归档
type Store interface {
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Read(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
}

// Config 存储配置，Kind 为空时使用内存存储
type Config struct {
	Kind      string `envconfig:"STORAGE_KIND" default:"memory"`
	Endpoint  string `envconfig:"MINIO_ENDPOINT"`
	AccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	SecretKey string `envconfig:"MINIO_SECRET_KEY"`
	Bucket    string `envconfig:"MINIO_BUCKET" default:"safecircle-exports"`
	UseSSL    bool   `envconfig:"MINIO_USE_SSL"`
	BaseURL   string `envconfig:"MINIO_PUBLIC_BASE"` // 对外访问域名，可选
}

// New 按配置创建存储
func New(cfg Config) Store {
	if strings.ToLower(cfg.Kind) == "minio" {
		return NewMinioStore(cfg)
	}
	return NewMemoryStore()
}

// MemoryStore 进程内存储，会话结束即丢弃
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Write(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = b
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Read(_ context.Context, key string) (io.ReadCloser, int64, error) {
	m.mu.RLock()
	b, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, 0, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), int64(len(b)), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	return ok, nil
}

func (m *MemoryStore) PublicURL(key string) string {
	return "memory://" + key
}
