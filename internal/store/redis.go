package store

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/docmirror/internal/models"
	"github.com/RecoveryAshes/docmirror/internal/utils"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey 默认的指纹哈希键
const DefaultRedisKey = "docmirror:fingerprints"

// RedisConfig Redis连接配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// RedisFingerprintStore 基于Redis哈希的指纹表
// 一个哈希键保存整张表: field=URL, value=摘要
type RedisFingerprintStore struct {
	client *redis.Client
	key    string
}

// NewRedisFingerprintStore 使用已有客户端创建
func NewRedisFingerprintStore(client *redis.Client, key string) *RedisFingerprintStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisFingerprintStore{client: client, key: key}
}

// DialRedis 按配置连接Redis并检查连通性
func DialRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接Redis失败 [%s]: %w", cfg.Addr, err)
	}
	return client, nil
}

// Load 读取整张指纹表
// 连接失败属于持久化状态不可读,按空表处理
func (s *RedisFingerprintStore) Load(ctx context.Context) (models.FingerprintMap, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		utils.Warnf("读取Redis指纹表失败 [%s],按空状态处理: %v", s.key, err)
		return models.FingerprintMap{}, nil
	}
	return models.FingerprintMap(values), nil
}

// Save 在一个事务内删除旧表并写入新表
func (s *RedisFingerprintStore) Save(ctx context.Context, m models.FingerprintMap) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(m) == 0 {
			return nil
		}
		fields := make([]interface{}, 0, len(m)*2)
		for u, digest := range m {
			fields = append(fields, u, digest)
		}
		pipe.HSet(ctx, s.key, fields...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("写入Redis指纹表失败 [%s]: %w", s.key, err)
	}
	return nil
}

// Describe 返回存储位置描述
func (s *RedisFingerprintStore) Describe() string {
	return "redis:" + s.key
}
