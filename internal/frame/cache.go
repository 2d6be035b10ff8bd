package frame

import "sync"

// FrameCache keeps decoded frames keyed by path so repeated tool calls on
// the same file skip disk reads.
//
// FrameCache is safe for concurrent use. Cached frames stay resident until
// Evict or Clear. The cached *Frame is shared; its metadata may gain the
// ND-filter geometry cards once a geometry has been computed for it.
type FrameCache struct {
	mu     sync.RWMutex
	frames map[string]*Frame
}

// NewFrameCache returns an empty cache.
func NewFrameCache() *FrameCache {
	return &FrameCache{frames: make(map[string]*Frame)}
}

// Load returns the cached frame for path or reads it with Load.
func (c *FrameCache) Load(path string) (*Frame, error) {
	c.mu.RLock()
	if f, ok := c.frames[path]; ok {
		c.mu.RUnlock()
		return f, nil
	}
	c.mu.RUnlock()

	f, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if existing, ok := c.frames[path]; ok {
		f = existing
	} else {
		c.frames[path] = f
	}
	c.mu.Unlock()
	return f, nil
}

// Put stores an already decoded frame under path.
func (c *FrameCache) Put(path string, f *Frame) {
	c.mu.Lock()
	c.frames[path] = f
	c.mu.Unlock()
}

// Evict drops path from the cache.
func (c *FrameCache) Evict(path string) {
	c.mu.Lock()
	delete(c.frames, path)
	c.mu.Unlock()
}

// Clear drops every cached frame.
func (c *FrameCache) Clear() {
	c.mu.Lock()
	c.frames = make(map[string]*Frame)
	c.mu.Unlock()
}

// Len returns the number of cached frames.
func (c *FrameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.frames)
}
