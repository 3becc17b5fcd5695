package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTTL 未指定时缓存响应的保留时间
const DefaultTTL = time.Hour

// ErrConflict 同一个幂等键对应了不同的请求体
var ErrConflict = errors.New("idempotency key reused with a different request")

// Entry 一次已完成请求的缓存
type Entry struct {
	// Fingerprint 请求体指纹，用于识别键复用
	Fingerprint string `json:"fingerprint"`
	// Response 缓存的响应结果
	Response json.RawMessage `json:"response"`
	// CreatedAt 写入时间
	CreatedAt time.Time `json:"created_at"`
}

// Manager 幂等性管理器接口
type Manager interface {
	// Lookup 查找键对应的缓存。fingerprint 不一致时返回 ErrConflict。
	Lookup(ctx context.Context, key, fingerprint string) (*Entry, bool, error)

	// Save 保存响应；键已存在时保留先写入的结果
	Save(ctx context.Context, key string, entry *Entry, ttl time.Duration) error

	// Delete 删除缓存
	Delete(ctx context.Context, key string) error

	// Close 释放资源
	Close() error
}

// Key 由调用方与客户端提供的 Idempotency-Key 生成存储键，
// 不同调用方使用相同的键互不影响
func Key(caller, idempotencyKey string) string {
	return hashParts(caller, idempotencyKey)
}

// Fingerprint 根据输入生成请求指纹，相同输入得到相同结果
func Fingerprint(inputs ...any) (string, error) {
	if len(inputs) == 0 {
		return "", errors.New("at least one input is required")
	}
	data, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("marshal inputs: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func hashParts(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func checkFingerprint(entry *Entry, fingerprint string) (*Entry, bool, error) {
	if fingerprint != "" && entry.Fingerprint != "" && entry.Fingerprint != fingerprint {
		return nil, false, ErrConflict
	}
	return entry, true, nil
}

// =============================================================================
// Redis 实现
// =============================================================================

type redisManager struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisManager 创建基于 Redis 的幂等性管理器
func NewRedisManager(client *redis.Client, prefix string, logger *zap.Logger) Manager {
	if prefix == "" {
		prefix = "idempotency:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisManager{
		client: client,
		prefix: prefix,
		logger: logger.With(zap.String("component", "idempotency")),
	}
}

func (m *redisManager) Lookup(ctx context.Context, key, fingerprint string) (*Entry, bool, error) {
	data, err := m.client.Get(ctx, m.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("decode cached entry: %w", err)
	}

	m.logger.Debug("idempotency key hit", zap.String("key", key), zap.Int("data_size", len(data)))
	return checkFingerprint(&entry, fingerprint)
}

func (m *redisManager) Save(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	stored, err := m.client.SetNX(ctx, m.prefix+key, data, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	m.logger.Debug("idempotency key stored",
		zap.String("key", key),
		zap.Bool("stored", stored),
		zap.Duration("ttl", ttl),
	)
	return nil
}

func (m *redisManager) Delete(ctx context.Context, key string) error {
	if err := m.client.Del(ctx, m.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close 不关闭 Redis 客户端，客户端由创建者负责
func (m *redisManager) Close() error { return nil }

// =============================================================================
// 内存实现
// =============================================================================

type memoryManager struct {
	mu              sync.RWMutex
	cache           map[string]memoryEntry
	logger          *zap.Logger
	now             func() time.Time
	cleanupInterval time.Duration
	stopCh          chan struct{}
	closeOnce       sync.Once
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemoryManager 创建进程内幂等性管理器，未启用 Redis 时使用
func NewMemoryManager(logger *zap.Logger) Manager {
	return NewMemoryManagerWithCleanup(logger, 5*time.Minute)
}

// NewMemoryManagerWithCleanup 创建带自定义清理间隔的内存管理器
func NewMemoryManagerWithCleanup(logger *zap.Logger, cleanupInterval time.Duration) Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	m := &memoryManager{
		cache:           make(map[string]memoryEntry),
		logger:          logger.With(zap.String("component", "idempotency")),
		now:             time.Now,
		cleanupInterval: cleanupInterval,
		stopCh:          make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

func (m *memoryManager) cleanupLoop() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stopCh:
			return
		}
	}
}

func (m *memoryManager) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	expired := 0
	for key, e := range m.cache {
		if now.After(e.expiresAt) {
			delete(m.cache, key)
			expired++
		}
	}
	if expired > 0 {
		m.logger.Debug("cleaned up expired idempotency entries",
			zap.Int("expired", expired),
			zap.Int("remaining", len(m.cache)))
	}
}

func (m *memoryManager) Lookup(_ context.Context, key, fingerprint string) (*Entry, bool, error) {
	m.mu.RLock()
	e, ok := m.cache[key]
	m.mu.RUnlock()

	if !ok || m.now().After(e.expiresAt) {
		return nil, false, nil
	}
	entry := e.entry
	return checkFingerprint(&entry, fingerprint)
}

func (m *memoryManager) Save(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	if entry == nil {
		return errors.New("entry is nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.cache[key]; ok && !now.After(existing.expiresAt) {
		return nil
	}
	m.cache[key] = memoryEntry{entry: *entry, expiresAt: now.Add(ttl)}
	return nil
}

func (m *memoryManager) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.cache, key)
	m.mu.Unlock()
	return nil
}

func (m *memoryManager) Close() error {
	m.closeOnce.Do(func() { close(m.stopCh) })
	return nil
}
