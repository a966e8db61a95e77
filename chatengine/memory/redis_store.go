package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/chatflow/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultRedisKeyPrefix = "chatflow:chat:"

// RedisStoreConfig Redis 存储配置
type RedisStoreConfig struct {
	// KeyPrefix 会话 key 前缀
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`

	// TTL 会话过期时间，0 表示不过期；每次追加都会刷新
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

// RedisChatStore 每个会话对应一个 Redis List，元素为 JSON 编码的消息。
type RedisChatStore struct {
	client redis.UniversalClient
	config RedisStoreConfig
	logger *zap.Logger
}

// NewRedisChatStore 创建 Redis 存储
func NewRedisChatStore(client redis.UniversalClient, config RedisStoreConfig, logger *zap.Logger) *RedisChatStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaultRedisKeyPrefix
	}
	return &RedisChatStore{
		client: client,
		config: config,
		logger: logger.With(zap.String("component", "chat_store_redis")),
	}
}

func (s *RedisChatStore) redisKey(key string) string {
	return s.config.KeyPrefix + key
}

func (s *RedisChatStore) AddMessage(ctx context.Context, key string, msg types.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	rk := s.redisKey(key)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, rk, data)
	if s.config.TTL > 0 {
		pipe.Expire(ctx, rk, s.config.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append %s: %w", rk, err)
	}
	return nil
}

func (s *RedisChatStore) GetMessages(ctx context.Context, key string) ([]types.Message, error) {
	rk := s.redisKey(key)
	items, err := s.client.LRange(ctx, rk, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", rk, err)
	}

	msgs := make([]types.Message, 0, len(items))
	for i, item := range items {
		var msg types.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode message %d of %s: %w", i, rk, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *RedisChatStore) DeleteMessages(ctx context.Context, key string) error {
	rk := s.redisKey(key)
	if err := s.client.Del(ctx, rk).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", rk, err)
	}
	s.logger.Debug("chat history deleted", zap.String("key", rk))
	return nil
}
