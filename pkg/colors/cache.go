package colors

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	cacheFile = "keyword_colors.json"

	// DefaultColorID is used for the empty keyword.
	DefaultColorID = "8" // graphite

	maxColorID = 11
)

type KeywordState struct {
	ColorID  string    `json:"color_id"`
	LastUsed time.Time `json:"last_used"`
}

// ColorCache hands out a stable Google Calendar colorId per keyword so that
// events of different scans are told apart at a glance.
type ColorCache struct {
	Path     string                   `json:"-"`
	Keywords map[string]*KeywordState `json:"keywords"`
	mu       sync.Mutex
	dirty    bool
	now      func() time.Time
}

// DefaultPath returns the cache location inside dir.
func DefaultPath(dir string) string {
	return filepath.Join(dir, cacheFile)
}

// NewColorCache loads the cache at path. An empty path keeps the cache in
// memory only.
func NewColorCache(path string) (*ColorCache, error) {
	cache := &ColorCache{
		Path:     path,
		Keywords: make(map[string]*KeywordState),
		now:      time.Now,
	}

	if path == "" {
		return cache, nil
	}
	if _, err := os.Stat(path); err == nil {
		if err := cache.Load(); err != nil {
			return nil, err
		}
	}
	return cache, nil
}

func (c *ColorCache) Load() error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := json.NewDecoder(f).Decode(&c.Keywords); err != nil {
		return err
	}
	if c.Keywords == nil {
		c.Keywords = make(map[string]*KeywordState)
	}
	for k, s := range c.Keywords {
		if s == nil {
			delete(c.Keywords, k)
		}
	}
	return nil
}

func (c *ColorCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty || c.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0700); err != nil {
		return err
	}

	f, err := os.Create(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(c.Keywords); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// ColorID returns the color assigned to keyword, assigning a free one (or
// recycling the least recently used) on first sight.
func (c *ColorCache) ColorID(keyword string) string {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return DefaultColorID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.Keywords[keyword]; ok {
		state.LastUsed = c.now()
		c.dirty = true
		return state.ColorID
	}
	return c.assignColor(keyword)
}

func (c *ColorCache) assignColor(keyword string) string {
	used := make(map[string]bool)
	for _, s := range c.Keywords {
		used[s.ColorID] = true
	}

	for i := 1; i <= maxColorID; i++ {
		id := strconv.Itoa(i)
		if !used[id] {
			c.Keywords[keyword] = &KeywordState{ColorID: id, LastUsed: c.now()}
			c.dirty = true
			return id
		}
	}

	// All colors taken, recycle the least recently used one.
	var oldest string
	var oldestTime time.Time
	for k, s := range c.Keywords {
		if oldest == "" || s.LastUsed.Before(oldestTime) {
			oldest = k
			oldestTime = s.LastUsed
		}
	}

	recycled := c.Keywords[oldest].ColorID
	delete(c.Keywords, oldest)
	c.Keywords[keyword] = &KeywordState{ColorID: recycled, LastUsed: c.now()}
	c.dirty = true
	return recycled
}
