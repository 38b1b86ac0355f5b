package cache

import (
	"fmt"
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

const ChainTTL = 5 * time.Minute

// ChainCache keeps msgpack-encoded chain details keyed by chain id.
type ChainCache struct {
	redis *RedisCache
}

func NewChainCache(redis *RedisCache) *ChainCache {
	return &ChainCache{redis: redis}
}

func chainKey(chainID uint) string {
	return fmt.Sprintf("chain:%d", chainID)
}

func (cc *ChainCache) Get(chainID uint) (*models.ChainResponse, bool) {
	if cc == nil || cc.redis == nil {
		return nil, false
	}
	data, err := cc.redis.Get(chainKey(chainID))
	if err != nil || data == nil {
		return nil, false
	}
	return decodeChain(data)
}

func (cc *ChainCache) Set(chain *models.ChainResponse) error {
	if cc == nil || cc.redis == nil || chain == nil {
		return nil
	}
	data, err := encodeChain(chain)
	if err != nil {
		return err
	}
	return cc.redis.Set(chainKey(chain.ID), data, ChainTTL)
}

// Invalidate drops the cached details of every given chain.
func (cc *ChainCache) Invalidate(chainIDs ...uint) error {
	if cc == nil || cc.redis == nil {
		return nil
	}
	keys := make([]string, 0, len(chainIDs))
	for _, id := range chainIDs {
		keys = append(keys, chainKey(id))
	}
	return cc.redis.Delete(keys...)
}

func encodeChain(chain *models.ChainResponse) ([]byte, error) {
	return msgpack.Marshal(chain)
}

func decodeChain(data []byte) (*models.ChainResponse, bool) {
	var chain models.ChainResponse
	if err := msgpack.Unmarshal(data, &chain); err != nil {
		return nil, false
	}
	return &chain, true
}
