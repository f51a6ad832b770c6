package client

import (
	"strings"
	"sync"
)

// readCache keeps the answers of reads keyed by their request path including the query
type readCache struct {
	sync.Mutex
	entries map[string]result
	// Incremented whenever entries are dropped. Reads started before cannot be stored anymore
	generation uint64
}

func newReadCache() *readCache {
	return &readCache{entries: make(map[string]result)}
}

// get returns the cached answer and the generation a fetched answer has to be stored with
func (c *readCache) get(key string) (result, uint64, bool) {
	c.Lock()
	defer c.Unlock()
	res, ok := c.entries[key]
	return res, c.generation, ok
}

// put stores the answer unless the cache has been invalidated since the read started
func (c *readCache) put(key string, res result, generation uint64) bool {
	c.Lock()
	defer c.Unlock()
	if generation != c.generation {
		return false
	}
	c.entries[key] = res
	return true
}

// invalidate drops the event listing pages, the event itself and the event's registration pages
func (c *readCache) invalidate(eventsPath, eventID string) {
	c.Lock()
	defer c.Unlock()
	c.generation++
	eventPath := eventsPath + "/" + eventID
	for key := range c.entries {
		switch {
		case key == eventsPath, strings.HasPrefix(key, eventsPath+"?"):
		case eventID != "" && (key == eventPath || strings.HasPrefix(key, eventPath+"/") ||
			strings.HasPrefix(key, eventPath+"?")):
		default:
			continue
		}
		delete(c.entries, key)
	}
}

func (c *readCache) clear() {
	c.Lock()
	c.generation++
	c.entries = make(map[string]result)
	c.Unlock()
}
