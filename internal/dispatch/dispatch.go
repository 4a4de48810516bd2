// Package dispatch maps an uppercased command verb and its argument vector
// to a RESP reply, enforcing arity and type rules against a store.Keyspace.
package dispatch

import (
	"strconv"
	"strings"
	"time"

	"github.com/adrianmoss/rkv/internal/resp"
	"github.com/adrianmoss/rkv/internal/store"
)

// Dispatcher executes commands against a single Keyspace. It holds no
// per-connection state — the same Dispatcher can serve every connection on
// the reactor, since all of its mutation happens on the one loop thread.
type Dispatcher struct {
	Keyspace         *store.Keyspace
	QuicklistNodeCap int
}

// New creates a Dispatcher over ks using nodeCap for any quicklist it
// creates on behalf of RPUSH/LPUSH against a previously-absent key.
func New(ks *store.Keyspace, nodeCap int) *Dispatcher {
	return &Dispatcher{Keyspace: ks, QuicklistNodeCap: nodeCap}
}

// Dispatch executes one already-decoded argument vector and returns the
// exact reply bytes to append to the connection's outbound buffer. A
// command-level error (arity, unknown verb, wrong type, bad argument)
// never mutates the keyspace and is reported as a RESP error reply; it is
// not a Go error, since the connection stays open.
func (d *Dispatcher) Dispatch(args [][]byte) []byte {
	if len(args) == 0 {
		return errUnknownCommand()
	}

	verb := strings.ToUpper(string(args[0]))
	switch verb {
	case "PING":
		return d.ping(args)
	case "ECHO":
		return d.echo(args)
	case "SET":
		return d.set(args)
	case "GET":
		return d.get(args)
	case "DEL":
		return d.del(args)
	case "RPUSH":
		return d.pushBack(args)
	case "LPUSH":
		return d.pushFront(args)
	case "LPOP":
		return d.popFront(args)
	case "RPOP":
		return d.popBack(args)
	case "LLEN":
		return d.llen(args)
	case "LRANGE":
		return d.lrange(args)
	default:
		return errUnknownCommand()
	}
}

func errUnknownCommand() []byte {
	return resp.EncodeError("ERR unknown command")
}

func errArity(verb string) []byte {
	return resp.EncodeError("ERR wrong number of arguments for '" + strings.ToLower(verb) + "' command")
}

func errNotInteger() []byte {
	return resp.EncodeError("ERR value is not an integer or out of range")
}

func errSyntax() []byte {
	return resp.EncodeError("ERR syntax error")
}

func errWrongType(err error) []byte {
	return resp.EncodeError(err.Error())
}

func (d *Dispatcher) ping(args [][]byte) []byte {
	if len(args) != 1 {
		return errArity("PING")
	}
	return resp.EncodeSimpleString("PONG")
}

func (d *Dispatcher) echo(args [][]byte) []byte {
	if len(args) != 2 {
		return errArity("ECHO")
	}
	return resp.EncodeBulkString(args[1])
}

func (d *Dispatcher) set(args [][]byte) []byte {
	if len(args) != 3 && len(args) != 5 {
		return errArity("SET")
	}
	key := string(args[1])
	value := args[2]

	var ttl time.Duration
	var hasTTL bool
	if len(args) == 5 {
		opt := strings.ToUpper(string(args[3]))
		n, err := strconv.ParseInt(string(args[4]), 10, 64)
		if err != nil {
			return errNotInteger()
		}
		switch opt {
		case "EX":
			ttl = time.Duration(n) * time.Second
		case "PX":
			// Redis parity: PX is already milliseconds, kept as
			// milliseconds — not divided down to seconds.
			ttl = time.Duration(n) * time.Millisecond
		default:
			return errSyntax()
		}
		hasTTL = true
	}

	// An explicit EX/PX of 0 (or negative) must still register an
	// immediately-passed deadline, not be treated as "no TTL" — so an
	// explicit option always goes through SetWithTTL, even when ttl <= 0.
	if hasTTL {
		d.Keyspace.SetWithTTL(key, store.NewStringValue(value), ttl)
	} else {
		d.Keyspace.Set(key, store.NewStringValue(value), ttl)
	}
	return resp.EncodeSimpleString("OK")
}

func (d *Dispatcher) get(args [][]byte) []byte {
	if len(args) != 2 {
		return errArity("GET")
	}
	v, ok := d.Keyspace.Get(string(args[1]))
	if !ok {
		return resp.NullBulkString
	}
	if v.Kind != store.KindString {
		return errWrongType(&store.ErrWrongType{Key: string(args[1]), Have: v.Kind, Want: store.KindString})
	}
	return resp.EncodeBulkString(v.Str)
}

func (d *Dispatcher) del(args [][]byte) []byte {
	if len(args) != 2 {
		return errArity("DEL")
	}
	d.Keyspace.Delete(string(args[1]))
	// Pinned to +OK for this revision rather than Redis's integer count
	// (see the design notes on DEL's reply).
	return resp.EncodeSimpleString("OK")
}

func (d *Dispatcher) pushBack(args [][]byte) []byte {
	return d.push(args, "RPUSH", false)
}

func (d *Dispatcher) pushFront(args [][]byte) []byte {
	return d.push(args, "LPUSH", true)
}

func (d *Dispatcher) push(args [][]byte, verb string, prepend bool) []byte {
	if len(args) < 3 {
		return errArity(verb)
	}
	key := string(args[1])
	items := args[2:]
	n, err := d.Keyspace.AddToList(key, items, prepend, d.QuicklistNodeCap)
	if err != nil {
		return errWrongType(err)
	}
	return resp.EncodeInteger(int64(n))
}

func (d *Dispatcher) popFront(args [][]byte) []byte {
	return d.pop(args, "LPOP", func(q *store.Quicklist, n int) [][]byte { return q.PopFront(n) })
}

func (d *Dispatcher) popBack(args [][]byte) []byte {
	return d.pop(args, "RPOP", func(q *store.Quicklist, n int) [][]byte { return q.PopBack(n) })
}

func (d *Dispatcher) pop(args [][]byte, verb string, drain func(*store.Quicklist, int) [][]byte) []byte {
	if len(args) != 2 && len(args) != 3 {
		return errArity(verb)
	}
	key := string(args[1])

	hasCount := len(args) == 3
	count := 1
	if hasCount {
		n, err := strconv.Atoi(string(args[2]))
		if err != nil {
			return errNotInteger()
		}
		if n < 0 {
			return resp.EncodeError("ERR value is out of range, must be positive")
		}
		count = n
	}

	q, err := d.Keyspace.List(key)
	if err != nil {
		return errWrongType(err)
	}
	if q == nil {
		// Ground truth (original_source/app/server.py) replies with a null
		// bulk string here regardless of whether a count was given — a
		// missing key is "no value", not "an empty array".
		return resp.NullBulkString
	}

	popped := drain(q, count)
	if q.Len() == 0 {
		d.Keyspace.Delete(key)
	}

	if !hasCount {
		if len(popped) == 0 {
			return resp.NullBulkString
		}
		return resp.EncodeBulkString(popped[0])
	}
	return resp.EncodeArray(popped)
}

func (d *Dispatcher) llen(args [][]byte) []byte {
	if len(args) != 2 {
		return errArity("LLEN")
	}
	q, err := d.Keyspace.List(string(args[1]))
	if err != nil {
		return errWrongType(err)
	}
	if q == nil {
		return resp.EncodeInteger(0)
	}
	return resp.EncodeInteger(int64(q.Len()))
}

func (d *Dispatcher) lrange(args [][]byte) []byte {
	if len(args) != 4 {
		return errArity("LRANGE")
	}
	start, err := strconv.Atoi(string(args[2]))
	if err != nil {
		return errNotInteger()
	}
	end, err := strconv.Atoi(string(args[3]))
	if err != nil {
		return errNotInteger()
	}

	q, err := d.Keyspace.List(string(args[1]))
	if err != nil {
		return errWrongType(err)
	}
	if q == nil {
		return resp.EncodeArray([][]byte{})
	}

	length := q.Len()
	start, end, ok := normalizeRange(start, end, length)
	if !ok {
		return resp.EncodeArray([][]byte{})
	}
	return resp.EncodeArray(q.Range(start, end))
}

// normalizeRange applies the Redis LRANGE negative-index rule: a negative
// index is rewritten relative to length, start is clamped to >= 0, end is
// clamped to <= length-1. It reports ok=false when the resulting range is
// empty.
func normalizeRange(start, end, length int) (int, int, bool) {
	if length == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start += length
		if start < 0 {
			start = 0
		}
	}
	if end < 0 {
		end += length
	}
	if end >= length {
		end = length - 1
	}
	if start > end || start >= length {
		return 0, 0, false
	}
	return start, end, true
}
