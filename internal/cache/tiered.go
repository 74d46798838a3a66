package cache

import "time"

// Tiered composes an in-process tier with a second, persistent tier
// (disk or Redis). A Set writes through to both tiers with the same
// TTL; a Get promotes hits found only in the second tier back into
// the first with a one-minute TTL.
type Tiered struct {
	first  Store
	second Store
}

// NewAuto builds the standard two-tier cache: an in-process Memory
// tier of maxEntries backed by Redis when redisAddr is non-empty, or a
// gob-file Disk tier rooted at diskDir otherwise. Grounded on the
// teacher's root-level data/cache.NewAuto env-switch pattern.
func NewAuto(maxEntries int, redisAddr, diskDir string) (*Tiered, error) {
	mem := NewMemory(maxEntries)
	if redisAddr != "" {
		return &Tiered{first: mem, second: NewRedis(redisAddr)}, nil
	}
	disk, err := NewDisk(diskDir)
	if err != nil {
		return nil, err
	}
	return &Tiered{first: mem, second: disk}, nil
}

func (t *Tiered) Get(key string) ([]byte, bool) {
	if v, ok := t.first.Get(key); ok {
		return v, true
	}
	if v, ok := t.second.Get(key); ok {
		t.first.Set(key, v, time.Minute)
		return v, true
	}
	return nil, false
}

func (t *Tiered) Set(key string, value []byte, ttl time.Duration) {
	t.first.Set(key, value, ttl)
	t.second.Set(key, value, ttl)
}

// Stats returns the in-process tier's stats, the figure operators
// care about for sizing memory (spec §4.9's hit-ratio logging).
func (t *Tiered) Stats() Stats { return t.first.Stats() }
