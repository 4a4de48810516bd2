package resp

import (
	"strconv"

	"github.com/adrianmoss/rkv/internal/store"
)

// EncodeSimpleString renders a RESP simple string: "+<s>\r\n". Callers are
// responsible for ensuring s contains no CR or LF — every simple string
// this server emits is a fixed literal (+OK, +PONG), never user data.
func EncodeSimpleString(s string) []byte {
	out := make([]byte, 0, len(s)+3)
	out = append(out, '+')
	out = append(out, s...)
	out = append(out, '\r', '\n')
	return out
}

// EncodeError renders a RESP error reply: "-<msg>\r\n".
func EncodeError(msg string) []byte {
	out := make([]byte, 0, len(msg)+3)
	out = append(out, '-')
	out = append(out, msg...)
	out = append(out, '\r', '\n')
	return out
}

// EncodeInteger renders a RESP integer reply: ":<d>\r\n".
func EncodeInteger(n int64) []byte {
	s := strconv.FormatInt(n, 10)
	out := make([]byte, 0, len(s)+3)
	out = append(out, ':')
	out = append(out, s...)
	out = append(out, '\r', '\n')
	return out
}

// NullBulkString is the RESP encoding of a missing value: "$-1\r\n".
var NullBulkString = []byte("$-1\r\n")

// NullArray is the RESP encoding of a missing array: "*-1\r\n".
var NullArray = []byte("*-1\r\n")

// EncodeBulkString renders a RESP bulk string: "$<n>\r\n<bytes>\r\n", or
// NullBulkString when b is nil.
func EncodeBulkString(b []byte) []byte {
	if b == nil {
		return NullBulkString
	}
	n := strconv.Itoa(len(b))
	out := make([]byte, 0, len(n)+len(b)+5)
	out = append(out, '$')
	out = append(out, n...)
	out = append(out, '\r', '\n')
	out = append(out, b...)
	out = append(out, '\r', '\n')
	return out
}

// EncodeArray renders a RESP array of bulk strings: "*<n>\r\n" followed by
// n bulk strings, or NullArray when elems is nil.
func EncodeArray(elems [][]byte) []byte {
	if elems == nil {
		return NullArray
	}
	n := strconv.Itoa(len(elems))
	out := make([]byte, 0, len(n)+3)
	out = append(out, '*')
	out = append(out, n...)
	out = append(out, '\r', '\n')
	for _, e := range elems {
		out = append(out, EncodeBulkString(e)...)
	}
	return out
}

// EncodeValue dispatches on v.Kind: a STRING encodes as a bulk string, a
// LIST encodes as an array of bulk strings drawn from its quicklist in
// head-to-tail order.
func EncodeValue(v store.Value) []byte {
	switch v.Kind {
	case store.KindString:
		return EncodeBulkString(v.Str)
	case store.KindList:
		n := v.List.Len()
		if n == 0 {
			return EncodeArray([][]byte{})
		}
		return EncodeArray(v.List.Range(0, n-1))
	default:
		return NullBulkString
	}
}
