package data

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// levelCache keeps copies of recently used levels so that repeated logins and
// saves do not have to go back to the database for reads.
type levelCache struct {
	cacheInstance *gocache.Cache
}

func newLevelCache(ttl time.Duration) *levelCache {
	if ttl == 0 {
		ttl = gocache.NoExpiration
	}
	return &levelCache{cacheInstance: gocache.New(ttl, 10*time.Minute)}
}

func cacheKey(id int64) string { return strconv.FormatInt(id, 10) }

// put stores a copy of level so later changes by the caller are not visible.
func (c *levelCache) put(level *LevelSave) {
	saved := *level
	c.cacheInstance.SetDefault(cacheKey(level.ID), &saved)
}

// get returns a copy of the cached level, if present.
func (c *levelCache) get(id int64) (*LevelSave, bool) {
	v, ok := c.cacheInstance.Get(cacheKey(id))
	if !ok {
		return nil, false
	}
	level := *v.(*LevelSave)
	return &level, true
}

func (c *levelCache) remove(id int64) {
	c.cacheInstance.Delete(cacheKey(id))
}
