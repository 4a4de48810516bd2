package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adrianmoss/rkv/internal/store"
)

func args(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

func newDispatcher() *Dispatcher {
	return New(store.NewKeyspace(), 128)
}

func TestPing(t *testing.T) {
	d := newDispatcher()
	assert.Equal(t, "+PONG\r\n", string(d.Dispatch(args("PING"))))
}

func TestPingCaseInsensitiveVerb(t *testing.T) {
	d := newDispatcher()
	assert.Equal(t, "+PONG\r\n", string(d.Dispatch(args("ping"))))
}

func TestEcho(t *testing.T) {
	d := newDispatcher()
	assert.Equal(t, "$5\r\nhello\r\n", string(d.Dispatch(args("ECHO", "hello"))))
}

func TestSetThenGet(t *testing.T) {
	d := newDispatcher()
	assert.Equal(t, "+OK\r\n", string(d.Dispatch(args("SET", "k", "v"))))
	assert.Equal(t, "$1\r\nv\r\n", string(d.Dispatch(args("GET", "k"))))
}

func TestGetMissing(t *testing.T) {
	d := newDispatcher()
	assert.Equal(t, "$-1\r\n", string(d.Dispatch(args("GET", "nope"))))
}

func TestSetWithExExpires(t *testing.T) {
	d := newDispatcher()
	d.Dispatch(args("SET", "k", "v", "EX", "0"))
	assert.Equal(t, "$-1\r\n", string(d.Dispatch(args("GET", "k"))))
}

func TestSetWithPxIsMilliseconds(t *testing.T) {
	d := newDispatcher()
	// 0ms TTL expires immediately, same as EX 0 — this exercises the PX
	// parse path without depending on wall-clock sleeps.
	d.Dispatch(args("SET", "k", "v", "PX", "0"))
	assert.Equal(t, "$-1\r\n", string(d.Dispatch(args("GET", "k"))))
}

func TestSetBadOption(t *testing.T) {
	d := newDispatcher()
	reply := d.Dispatch(args("SET", "k", "v", "ZZ", "10"))
	assert.Contains(t, string(reply), "-ERR")
}

func TestSetBadArity(t *testing.T) {
	d := newDispatcher()
	reply := d.Dispatch(args("SET", "k"))
	assert.Contains(t, string(reply), "-ERR wrong number of arguments")
}

func TestDelAlwaysReturnsOK(t *testing.T) {
	d := newDispatcher()
	assert.Equal(t, "+OK\r\n", string(d.Dispatch(args("DEL", "nope"))))
	d.Dispatch(args("SET", "k", "v"))
	assert.Equal(t, "+OK\r\n", string(d.Dispatch(args("DEL", "k"))))
	assert.Equal(t, "$-1\r\n", string(d.Dispatch(args("GET", "k"))))
}

func TestRpushAndLrange(t *testing.T) {
	d := newDispatcher()
	assert.Equal(t, ":2\r\n", string(d.Dispatch(args("RPUSH", "L", "a", "b"))))
	assert.Equal(t, "*2\r\n$1\r\na\r\n$1\r\nb\r\n", string(d.Dispatch(args("LRANGE", "L", "0", "-1"))))
}

func TestLpushPrependsInOrder(t *testing.T) {
	d := newDispatcher()
	d.Dispatch(args("RPUSH", "L", "a", "b"))
	assert.Equal(t, ":3\r\n", string(d.Dispatch(args("LPUSH", "L", "x"))))
	assert.Equal(t, "*3\r\n$1\r\nx\r\n$1\r\na\r\n$1\r\nb\r\n", string(d.Dispatch(args("LRANGE", "L", "0", "-1"))))
}

func TestLlen(t *testing.T) {
	d := newDispatcher()
	assert.Equal(t, ":0\r\n", string(d.Dispatch(args("LLEN", "missing"))))
	d.Dispatch(args("RPUSH", "L", "a"))
	assert.Equal(t, ":1\r\n", string(d.Dispatch(args("LLEN", "L"))))
}

func TestLpopSingle(t *testing.T) {
	d := newDispatcher()
	d.Dispatch(args("RPUSH", "L", "a", "b", "c"))
	assert.Equal(t, "$1\r\na\r\n", string(d.Dispatch(args("LPOP", "L"))))
}

func TestLpopEmptyIsNullBulk(t *testing.T) {
	d := newDispatcher()
	assert.Equal(t, "$-1\r\n", string(d.Dispatch(args("LPOP", "missing"))))
}

func TestLpopWithCountReturnsArray(t *testing.T) {
	d := newDispatcher()
	d.Dispatch(args("RPUSH", "L", "a", "b", "c"))
	assert.Equal(t, "*2\r\n$1\r\na\r\n$1\r\nb\r\n", string(d.Dispatch(args("LPOP", "L", "2"))))
}

func TestLpopWithCountOnMissingKeyIsNullBulk(t *testing.T) {
	d := newDispatcher()
	assert.Equal(t, "$-1\r\n", string(d.Dispatch(args("LPOP", "missing", "2"))))
	assert.Equal(t, "$-1\r\n", string(d.Dispatch(args("RPOP", "missing", "2"))))
}

func TestRpopSymmetricToLpop(t *testing.T) {
	d := newDispatcher()
	d.Dispatch(args("RPUSH", "L", "a", "b", "c"))
	assert.Equal(t, "$1\r\nc\r\n", string(d.Dispatch(args("RPOP", "L"))))
	assert.Equal(t, "*2\r\n$1\r\nb\r\n$1\r\na\r\n", string(d.Dispatch(args("RPOP", "L", "2"))))
}

func TestListEmptiedKeyIsRemoved(t *testing.T) {
	d := newDispatcher()
	d.Dispatch(args("RPUSH", "L", "a"))
	d.Dispatch(args("LPOP", "L"))
	assert.Equal(t, ":0\r\n", string(d.Dispatch(args("LLEN", "L"))))
}

func TestWrongTypeOnGetAgainstList(t *testing.T) {
	d := newDispatcher()
	d.Dispatch(args("RPUSH", "L", "a"))
	reply := d.Dispatch(args("GET", "L"))
	assert.Contains(t, string(reply), "WRONGTYPE")
}

func TestWrongTypeOnRpushAgainstString(t *testing.T) {
	d := newDispatcher()
	d.Dispatch(args("SET", "k", "v"))
	reply := d.Dispatch(args("RPUSH", "k", "a"))
	assert.Contains(t, string(reply), "WRONGTYPE")
	// Failed type-checked op leaves the original value untouched.
	assert.Equal(t, "$1\r\nv\r\n", string(d.Dispatch(args("GET", "k"))))
}

func TestLrangeNegativeIndices(t *testing.T) {
	d := newDispatcher()
	d.Dispatch(args("RPUSH", "L", "a", "b", "c", "d", "e"))
	assert.Equal(t, "*5\r\n$1\r\na\r\n$1\r\nb\r\n$1\r\nc\r\n$1\r\nd\r\n$1\r\ne\r\n",
		string(d.Dispatch(args("LRANGE", "L", "0", "-1"))))
	assert.Equal(t, "*2\r\n$1\r\nd\r\n$1\r\ne\r\n", string(d.Dispatch(args("LRANGE", "L", "-2", "-1"))))
}

func TestLrangeOutOfBoundsIsEmpty(t *testing.T) {
	d := newDispatcher()
	d.Dispatch(args("RPUSH", "L", "a"))
	assert.Equal(t, "*0\r\n", string(d.Dispatch(args("LRANGE", "L", "5", "10"))))
}

func TestLrangeMissingKeyIsEmpty(t *testing.T) {
	d := newDispatcher()
	assert.Equal(t, "*0\r\n", string(d.Dispatch(args("LRANGE", "missing", "0", "-1"))))
}

func TestUnknownCommand(t *testing.T) {
	d := newDispatcher()
	assert.Equal(t, "-ERR unknown command\r\n", string(d.Dispatch(args("NOPE"))))
}
