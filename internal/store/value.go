// Package store implements the in-memory keyspace: the typed value union,
// the quicklist backing list values, and the TTL index with both lazy and
// active expiration.
package store

// Kind tags the payload a Value carries. STRING and LIST are implemented;
// SET, ZSET, and HASH are reserved so the dispatcher can report a typed
// "wrong kind of value" error without ambiguity even though this revision
// never constructs a value of those kinds.
type Kind int

const (
	KindString Kind = iota
	KindList
	KindSet
	KindZSet
	KindHash
)

// String renders a Kind for error messages and logging.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindZSet:
		return "zset"
	case KindHash:
		return "hash"
	default:
		return "unknown"
	}
}

// Value is the tagged union stored under every keyspace key. Exactly one of
// Str / List is meaningful, selected by Kind; this is enforced by
// construction via NewStringValue/NewListValue rather than by convention.
type Value struct {
	Kind Kind
	Str  []byte
	List *Quicklist
}

// NewStringValue wraps b as a STRING value.
func NewStringValue(b []byte) Value {
	return Value{Kind: KindString, Str: b}
}

// NewListValue wraps q as a LIST value.
func NewListValue(q *Quicklist) Value {
	return Value{Kind: KindList, List: q}
}
