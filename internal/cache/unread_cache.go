package cache

import (
	"fmt"
	"strconv"
	"time"
)

const UnreadCountTTL = 1 * time.Minute

// UnreadCache holds per-user unread direct message counts.
type UnreadCache struct {
	redis *RedisCache
}

func NewUnreadCache(redis *RedisCache) *UnreadCache {
	return &UnreadCache{redis: redis}
}

func unreadKey(userID uint) string {
	return fmt.Sprintf("unread:%d", userID)
}

func (uc *UnreadCache) Get(userID uint) (int64, bool) {
	if uc == nil || uc.redis == nil {
		return 0, false
	}
	data, err := uc.redis.Get(unreadKey(userID))
	if err != nil || data == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (uc *UnreadCache) Set(userID uint, count int64) error {
	if uc == nil || uc.redis == nil {
		return nil
	}
	return uc.redis.Set(unreadKey(userID), []byte(strconv.FormatInt(count, 10)), UnreadCountTTL)
}

func (uc *UnreadCache) Invalidate(userID uint) error {
	if uc == nil || uc.redis == nil {
		return nil
	}
	return uc.redis.Delete(unreadKey(userID))
}
