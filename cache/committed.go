package cache

import (
	"math"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"
)

// committed is the cache's belief about what is durably stored. It is only
// changed by promoting uncommitted states at commit time.
type committed[R any] struct {
	entries *simplelru.LRU
	expire  time.Duration
	now     func() time.Time
	evicted uint64
}

type committedEntry[R any] struct {
	row R
	at  time.Time
}

// newCommitted returns a committed store holding at most size rows, each for
// at most expire. Zero means unbounded.
func newCommitted[R any](size int, expire time.Duration, now func() time.Time) (*committed[R], error) {
	if size <= 0 {
		size = math.MaxInt32
	}
	c := &committed[R]{expire: expire, now: now}
	entries, err := simplelru.NewLRU(size, nil)
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

// get retrieves the row for key. Expired rows are dropped on the way.
func (c *committed[R]) get(key Key) (R, bool) {
	var zero R
	v, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	entry := v.(committedEntry[R])
	if c.expire > 0 && c.now().Sub(entry.at) >= c.expire {
		c.entries.Remove(key)
		c.evicted++
		return zero, false
	}
	return entry.row, true
}

func (c *committed[R]) has(key Key) bool {
	_, ok := c.get(key)
	return ok
}

func (c *committed[R]) upsert(key Key, row R) {
	if c.entries.Add(key, committedEntry[R]{row: row, at: c.now()}) {
		c.evicted++
	}
}

func (c *committed[R]) delete(key Key) {
	c.entries.Remove(key)
}

func (c *committed[R]) purge() {
	c.entries.Purge()
}

func (c *committed[R]) len() int {
	return c.entries.Len()
}

// snapshot copies the unexpired rows.
func (c *committed[R]) snapshot() map[Key]R {
	out := make(map[Key]R, c.entries.Len())
	for _, k := range c.entries.Keys() {
		v, ok := c.entries.Peek(k)
		if !ok {
			continue
		}
		entry := v.(committedEntry[R])
		if c.expire > 0 && c.now().Sub(entry.at) >= c.expire {
			continue
		}
		out[k.(Key)] = entry.row
	}
	return out
}

// overlay holds the uncommitted state of every key touched by the active
// transaction, in first-touch order.
type overlay[R any] struct {
	pending map[Key]state[R]
	order   []Key
}

func newOverlay[R any]() *overlay[R] {
	return &overlay[R]{pending: map[Key]state[R]{}}
}

// get returns a copy of the state for key, or nil.
func (o *overlay[R]) get(key Key) *state[R] {
	s, ok := o.pending[key]
	if !ok {
		return nil
	}
	return &s
}

func (o *overlay[R]) put(s state[R]) {
	if _, ok := o.pending[s.key]; !ok {
		o.order = append(o.order, s.key)
	}
	o.pending[s.key] = s
}

func (o *overlay[R]) states() []state[R] {
	out := make([]state[R], 0, len(o.order))
	for _, k := range o.order {
		out = append(out, o.pending[k])
	}
	return out
}

func (o *overlay[R]) len() int {
	return len(o.pending)
}

func (o *overlay[R]) reset() {
	o.pending = map[Key]state[R]{}
	o.order = nil
}

// commit promotes every pending state into c.
func (o *overlay[R]) commit(c *committed[R]) {
	for _, s := range o.states() {
		s.updateCommitted(c)
	}
	o.reset()
}
