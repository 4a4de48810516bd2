package store

import (
	"math/rand"
	"time"
)

// Clock abstracts time.Now so TTL arithmetic can be driven deterministically
// in tests. Any type with a Now() time.Time method satisfies this
// structurally — callers outside this package (see the root package's
// FakeClock) need not import it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// DefaultTTLSampleSize is the number of entries ActiveExpire examines when
// called with a non-positive sample size.
const DefaultTTLSampleSize = 20

// ttlEntry is one row of the deadlines array.
type ttlEntry struct {
	key      string
	deadline time.Time
}

// ErrWrongType marks an operation attempted against a key holding a value
// of an incompatible Kind. Dispatch maps this to a typed RESP error reply.
type ErrWrongType struct {
	Key  string
	Have Kind
	Want Kind
}

func (e *ErrWrongType) Error() string {
	return "WRONGTYPE Operation against a key holding the wrong kind of value"
}

// Keyspace holds the map key -> Value plus the parallel TTL index described
// in the design: deadlines is an insertion-swap-delete array, position maps
// a key with a TTL to its current slot in deadlines.
//
// Keyspace is not safe for concurrent use: by design, all mutation happens
// on a single reactor goroutine and no locking is required.
type Keyspace struct {
	data         map[string]Value
	deadlines    []ttlEntry
	position     map[string]int
	clock        Clock
	rng          *rand.Rand
	onLazyExpire func()
}

// NewKeyspace creates an empty Keyspace using the system clock.
func NewKeyspace() *Keyspace {
	return NewKeyspaceWithClock(systemClock{})
}

// NewKeyspaceWithClock creates an empty Keyspace driven by the given Clock,
// for deterministic TTL tests.
func NewKeyspaceWithClock(clock Clock) *Keyspace {
	return &Keyspace{
		data:     make(map[string]Value),
		position: make(map[string]int),
		clock:    clock,
		rng:      rand.New(rand.NewSource(1)),
	}
}

// Set stores value under key, replacing any existing value. If ttl is
// positive the key's deadline is (re)registered as now+ttl (Invariant I3);
// if ttl is zero or negative, any prior TTL for this key is cleared — a fresh Set never
// inherits an old deadline. Callers that need to register a zero or negative
// TTL (an immediately-expiring key) must use SetWithTTL instead: here ttl<=0
// means "no TTL option given", not "TTL of zero".
func (k *Keyspace) Set(key string, value Value, ttl time.Duration) {
	k.data[key] = value
	if ttl > 0 {
		k.setDeadline(key, k.clock.Now().Add(ttl))
	} else {
		k.clearDeadline(key)
	}
}

// SetWithTTL stores value under key and unconditionally registers a
// deadline of now+ttl, even when ttl is zero or negative — a zero TTL
// deadline is in the past the instant it's set, so the key is immediately
// subject to lazy/active expiration. Use this when the caller has
// explicitly requested a TTL (e.g. SET's EX/PX options), as distinct from
// Set, where ttl==0 means no TTL was requested at all.
func (k *Keyspace) SetWithTTL(key string, value Value, ttl time.Duration) {
	k.data[key] = value
	k.setDeadline(key, k.clock.Now().Add(ttl))
}

// OnLazyExpire registers fn to be called once for every key Get removes via
// lazy (on-access) expiration. Intended for wiring an observer's metrics
// hook in; nil clears any previously registered hook.
func (k *Keyspace) OnLazyExpire(fn func()) {
	k.onLazyExpire = fn
}

// Get returns the value stored at key, checking lazy expiration first: if
// the key has a deadline that has passed, it is deleted and Get reports
// absent, regardless of what is still in the map.
func (k *Keyspace) Get(key string) (Value, bool) {
	if k.expiredNow(key) {
		k.Delete(key)
		if k.onLazyExpire != nil {
			k.onLazyExpire()
		}
		return Value{}, false
	}
	v, ok := k.data[key]
	return v, ok
}

// Delete removes key from the keyspace and, if present, from the TTL index
// using the swap-with-last technique, preserving Invariant I1 in O(1).
func (k *Keyspace) Delete(key string) bool {
	_, existed := k.data[key]
	delete(k.data, key)
	k.clearDeadline(key)
	return existed
}

// Exists reports whether key is present and not lazily expired, without
// returning its value.
func (k *Keyspace) Exists(key string) bool {
	_, ok := k.Get(key)
	return ok
}

// AddToList pushes items onto the LIST value at key, creating an empty
// quicklist first if key is absent. If key holds a non-LIST value,
// ErrWrongType is returned and nothing is mutated. Elements are pushed in
// input order; prepend selects PushFront per element (so AddToList(k,
// [a,b,c], prepend=true) yields [c,b,a], matching repeated individual
// LPUSH calls).
func (k *Keyspace) AddToList(key string, items [][]byte, prepend bool, nodeCap int) (int, error) {
	var q *Quicklist

	if existing, ok := k.Get(key); ok {
		if existing.Kind != KindList {
			return 0, &ErrWrongType{Key: key, Have: existing.Kind, Want: KindList}
		}
		q = existing.List
	} else {
		q = NewQuicklist(nodeCap)
		k.data[key] = NewListValue(q)
	}

	for _, item := range items {
		if prepend {
			q.PushFront(item)
		} else {
			q.PushBack(item)
		}
	}
	return q.Len(), nil
}

// List returns the quicklist stored at key, or nil if absent. If key holds
// a non-LIST value, ErrWrongType is returned.
func (k *Keyspace) List(key string) (*Quicklist, error) {
	v, ok := k.Get(key)
	if !ok {
		return nil, nil
	}
	if v.Kind != KindList {
		return nil, &ErrWrongType{Key: key, Have: v.Kind, Want: KindList}
	}
	return v.List, nil
}

// ActiveExpire samples up to sampleSize entries from a random start index
// in the deadlines array, scanning forward only (never wrapping past the
// end — a deliberate simplification), collects keys whose deadline has
// passed, and deletes them. Collecting before deleting avoids
// concurrent-modification hazards from the swap-with-last technique during
// the scan itself. It returns the number of keys removed.
func (k *Keyspace) ActiveExpire(sampleSize int) int {
	if sampleSize <= 0 {
		sampleSize = DefaultTTLSampleSize
	}
	if len(k.deadlines) == 0 {
		return 0
	}

	start := k.rng.Intn(len(k.deadlines))
	end := start + sampleSize
	if end > len(k.deadlines) {
		end = len(k.deadlines)
	}

	now := k.clock.Now()
	var expired []string
	for i := start; i < end; i++ {
		if !now.Before(k.deadlines[i].deadline) {
			expired = append(expired, k.deadlines[i].key)
		}
	}

	for _, key := range expired {
		k.Delete(key)
	}
	return len(expired)
}

// Len returns the number of keys currently in the keyspace, including any
// not-yet-lazily-expired keys whose deadline has technically passed.
func (k *Keyspace) Len() int { return len(k.data) }

func (k *Keyspace) expiredNow(key string) bool {
	i, ok := k.position[key]
	if !ok {
		return false
	}
	return !k.clock.Now().Before(k.deadlines[i].deadline)
}

func (k *Keyspace) setDeadline(key string, deadline time.Time) {
	if i, ok := k.position[key]; ok {
		k.deadlines[i].deadline = deadline
		return
	}
	k.position[key] = len(k.deadlines)
	k.deadlines = append(k.deadlines, ttlEntry{key: key, deadline: deadline})
}

func (k *Keyspace) clearDeadline(key string) {
	i, ok := k.position[key]
	if !ok {
		return
	}
	last := len(k.deadlines) - 1
	if i != last {
		k.deadlines[i] = k.deadlines[last]
		k.position[k.deadlines[i].key] = i
	}
	k.deadlines = k.deadlines[:last]
	delete(k.position, key)
}
