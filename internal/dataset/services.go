package dataset

import (
	"sort"
	"sync"
)

// Services is a set of facility locations. An empty set is valid and means
// no facility exists in the study area.
type Services struct {
	frame  Frame
	points []Point
}

// NewServices copies points into a new service set.
func NewServices(frame Frame, points []Point) *Services {
	return &Services{frame: frame, points: append([]Point(nil), points...)}
}

func (s *Services) Frame() Frame    { return s.frame }
func (s *Services) Len() int        { return len(s.points) }
func (s *Services) Empty() bool     { return len(s.points) == 0 }
func (s *Services) Points() []Point { return append([]Point(nil), s.points...) }

// Catalog maps service categories (e.g. "healthcare") to their datasets.
type Catalog struct {
	mu       sync.RWMutex
	services map[string]*Services
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{services: make(map[string]*Services)}
}

// Put stores or replaces the services for a category.
func (c *Catalog) Put(category string, s *Services) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[category] = s
}

// Get returns the services for a category, or a *NotFoundError listing the
// categories that were loaded.
func (c *Catalog) Get(category string) (*Services, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.services[category]
	if !ok {
		return nil, &NotFoundError{Kind: "service category", Key: category, Available: c.keysLocked()}
	}
	return s, nil
}

// Categories returns the loaded categories in sorted order.
func (c *Catalog) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keysLocked()
}

func (c *Catalog) keysLocked() []string {
	keys := make([]string, 0, len(c.services))
	for k := range c.services {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
