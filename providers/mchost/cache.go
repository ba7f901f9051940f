package mchost

import "sync"

// zoneCache maps order ids to zone ids. The panel sends no invalidation
// signal, so entries live until Invalidate or Reset.
type zoneCache struct {
	mu    sync.RWMutex
	zones map[string]int
}

func newZoneCache() *zoneCache {
	return &zoneCache{zones: make(map[string]int)}
}

func (c *zoneCache) get(orderID string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.zones[orderID]
	return id, ok
}

func (c *zoneCache) put(orderID string, zoneID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zones[orderID] = zoneID
}

func (c *zoneCache) invalidate(orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.zones, orderID)
}

func (c *zoneCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zones = make(map[string]int)
}
