package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryUploader хранит объекты в памяти. Используется в тестах и без настроенного R2.
type MemoryUploader struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
	baseURL string
}

func NewMemoryUploader(baseURL string) *MemoryUploader {
	return &MemoryUploader{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		baseURL: baseURL,
	}
}

func (u *MemoryUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	u.mu.Lock()
	u.objects[key] = buf.Bytes()
	u.types[key] = contentType
	u.mu.Unlock()
	return &UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *MemoryUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.objects, key)
	delete(u.types, key)
	return nil
}

func (u *MemoryUploader) GetPublicURL(key string) string {
	link, _ := publicURL(u.baseURL, key)
	return link
}

// Object возвращает содержимое и content-type сохранённого объекта.
func (u *MemoryUploader) Object(key string) ([]byte, string, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	data, ok := u.objects[key]
	return data, u.types[key], ok
}
