package cache

import (
	"fmt"
	"time"
)

// OnlineTTL matches the websocket pong timeout.
const OnlineTTL = 90 * time.Second

const onlineSetKey = "online:users"

// PresenceCache tracks which users hold a live websocket.
type PresenceCache struct {
	redis *RedisCache
}

func NewPresenceCache(redis *RedisCache) *PresenceCache {
	return &PresenceCache{redis: redis}
}

func onlineKey(userID uint) string {
	return fmt.Sprintf("online:%d", userID)
}

// SetOnline marks userID online until OnlineTTL passes without a Refresh.
func (pc *PresenceCache) SetOnline(userID uint) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	if err := pc.redis.SetAdd(onlineSetKey, userID); err != nil {
		return err
	}
	return pc.redis.Set(onlineKey(userID), []byte("1"), OnlineTTL)
}

func (pc *PresenceCache) SetOffline(userID uint) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	if err := pc.redis.SetRemove(onlineSetKey, userID); err != nil {
		return err
	}
	return pc.redis.Delete(onlineKey(userID))
}

// Refresh extends the online TTL, called on every pong.
func (pc *PresenceCache) Refresh(userID uint) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	return pc.redis.Set(onlineKey(userID), []byte("1"), OnlineTTL)
}

func (pc *PresenceCache) IsOnline(userID uint) bool {
	if pc == nil || pc.redis == nil {
		return false
	}
	return pc.redis.Exists(onlineKey(userID))
}

func (pc *PresenceCache) OnlineCount() (int64, error) {
	if pc == nil || pc.redis == nil {
		return 0, nil
	}
	return pc.redis.SetCard(onlineSetKey)
}
