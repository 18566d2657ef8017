package storage

import (
	"context"
	"fmt"
	"sync"
)

// BlobStore 音频对象存储抽象。
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	URLFor(key string) string
}

// UserAudioKey 孩子原始语音的对象键。
func UserAudioKey(childID, sessionID int64, seq int) string {
	return fmt.Sprintf("children/%d/sessions/%d/turn_%d_user.wav", childID, sessionID, seq)
}

// ReplyAudioKey 玩具回复语音的对象键。
func ReplyAudioKey(childID, sessionID int64, seq int) string {
	return fmt.Sprintf("children/%d/sessions/%d/turn_%d_reply.wav", childID, sessionID, seq)
}

// MemoryBlobStore 内存实现，测试用。
type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return nil
}

func (s *MemoryBlobStore) URLFor(key string) string {
	return "memory://" + key
}

// Get 测试用读取。
func (s *MemoryBlobStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}

// Len 测试用计数。
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
