package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
)

// SessionStore 登录会话与Token黑名单
//
// Key设计：
//   - session:{user_id}   最近一次登录信息（hash），TTL与Refresh Token一致
//   - blacklist:{jti}     已注销的Token，TTL为Token剩余有效期
type SessionStore struct {
	client redis.Cmdable
}

// NewSessionStore 创建会话存储
func NewSessionStore(client redis.Cmdable) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(userID uint) string { return fmt.Sprintf("session:%d", userID) }

func blacklistKey(tokenID string) string { return "blacklist:" + tokenID }

// SaveSession 保存登录会话
func (s *SessionStore) SaveSession(ctx context.Context, userID uint, data map[string]interface{}, ttl time.Duration) error {
	key := sessionKey(userID)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, data)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.ErrRedisError.WithDetail(fmt.Errorf("保存会话失败: %w", err))
	}
	return nil
}

// GetSession 获取登录会话，不存在时返回ErrUnauthorized
func (s *SessionStore) GetSession(ctx context.Context, userID uint) (map[string]string, error) {
	result, err := s.client.HGetAll(ctx, sessionKey(userID)).Result()
	if err != nil {
		return nil, apperrors.ErrRedisError.WithDetail(fmt.Errorf("获取会话失败: %w", err))
	}
	if len(result) == 0 {
		return nil, apperrors.ErrUnauthorized
	}
	return result, nil
}

// DeleteSession 删除登录会话
func (s *SessionStore) DeleteSession(ctx context.Context, userID uint) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return apperrors.ErrRedisError.WithDetail(fmt.Errorf("删除会话失败: %w", err))
	}
	return nil
}

// Revoke 注销Token（按jti），ttl<=0时不写入（Token已过期）
func (s *SessionStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, blacklistKey(tokenID), "revoked", ttl).Err(); err != nil {
		return apperrors.ErrRedisError.WithDetail(fmt.Errorf("注销Token失败: %w", err))
	}
	return nil
}

// IsRevoked 检查Token是否已注销
func (s *SessionStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, blacklistKey(tokenID)).Result()
	if err != nil {
		return false, apperrors.ErrRedisError.WithDetail(fmt.Errorf("检查黑名单失败: %w", err))
	}
	return n > 0, nil
}
