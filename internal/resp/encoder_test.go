package resp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adrianmoss/rkv/internal/store"
)

func TestEncodeSimpleString(t *testing.T) {
	assert.Equal(t, "+PONG\r\n", string(EncodeSimpleString("PONG")))
}

func TestEncodeError(t *testing.T) {
	assert.Equal(t, "-ERR unknown command\r\n", string(EncodeError("ERR unknown command")))
}

func TestEncodeInteger(t *testing.T) {
	assert.Equal(t, ":42\r\n", string(EncodeInteger(42)))
	assert.Equal(t, ":0\r\n", string(EncodeInteger(0)))
	assert.Equal(t, ":-1\r\n", string(EncodeInteger(-1)))
}

func TestEncodeBulkString(t *testing.T) {
	assert.Equal(t, "$1\r\nv\r\n", string(EncodeBulkString([]byte("v"))))
	assert.Equal(t, "$0\r\n\r\n", string(EncodeBulkString([]byte(""))))
	assert.Equal(t, "$-1\r\n", string(EncodeBulkString(nil)))
}

func TestEncodeArray(t *testing.T) {
	assert.Equal(t, "*2\r\n$1\r\na\r\n$1\r\nb\r\n", string(EncodeArray([][]byte{[]byte("a"), []byte("b")})))
	assert.Equal(t, "*0\r\n", string(EncodeArray([][]byte{})))
	assert.Equal(t, "*-1\r\n", string(EncodeArray(nil)))
}

func TestEncodeValueString(t *testing.T) {
	v := store.NewStringValue([]byte("v"))
	assert.Equal(t, "$1\r\nv\r\n", string(EncodeValue(v)))
}

func TestEncodeValueList(t *testing.T) {
	q := store.NewQuicklist(128)
	q.PushBack([]byte("a"))
	q.PushBack([]byte("b"))
	v := store.NewListValue(q)
	assert.Equal(t, "*2\r\n$1\r\na\r\n$1\r\nb\r\n", string(EncodeValue(v)))
}

func TestEncodeValueEmptyList(t *testing.T) {
	v := store.NewListValue(store.NewQuicklist(128))
	assert.Equal(t, "*0\r\n", string(EncodeValue(v)))
}
