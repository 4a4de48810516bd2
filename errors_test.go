package rkv

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuredError(t *testing.T) {
	err := NewError("DECODE", ErrCodeProtocol, "unsupported type byte")

	assert.Equal(t, "DECODE", err.Op)
	assert.Equal(t, ErrCodeProtocol, err.Code)
	assert.Equal(t, "rkv: unsupported type byte (op=DECODE)", err.Error())
}

func TestErrorWithErrno(t *testing.T) {
	err := NewErrorWithErrno("ACCEPT", ErrCodeResource, syscall.EMFILE)

	assert.Equal(t, syscall.EMFILE, err.Errno)
	assert.Equal(t, ErrCodeResource, err.Code)
}

func TestConnError(t *testing.T) {
	err := NewConnError("RECV", "127.0.0.1:5555", ErrCodeIO, "connection reset")

	assert.Equal(t, "127.0.0.1:5555", err.Peer)
	assert.Equal(t, "rkv: connection reset (op=RECV)", err.Error())
}

func TestWrapErrorPreservesStructuredFields(t *testing.T) {
	inner := NewConnError("DECODE", "10.0.0.1:1", ErrCodeProtocol, "bad length")
	wrapped := WrapError("FEED", inner)

	assert.Equal(t, "FEED", wrapped.Op)
	assert.Equal(t, ErrCodeProtocol, wrapped.Code)
	assert.Equal(t, "10.0.0.1:1", wrapped.Peer)
}

func TestWrapErrorMapsErrno(t *testing.T) {
	wrapped := WrapError("SEND", syscall.ENOMEM)
	assert.Equal(t, ErrCodeResource, wrapped.Code)
	assert.Equal(t, syscall.ENOMEM, wrapped.Errno)
}

func TestWrapErrorNil(t *testing.T) {
	assert.Nil(t, WrapError("ANY", nil))
}

func TestIsCode(t *testing.T) {
	err := NewError("X", ErrCodeWrongType, "wrong kind of value")
	assert.True(t, IsCode(err, ErrCodeWrongType))
	assert.False(t, IsCode(err, ErrCodeIO))
	assert.False(t, IsCode(errors.New("plain"), ErrCodeWrongType))
}

func TestIsErrno(t *testing.T) {
	err := NewErrorWithErrno("X", ErrCodeIO, syscall.ECONNRESET)
	assert.True(t, IsErrno(err, syscall.ECONNRESET))
	assert.False(t, IsErrno(err, syscall.EPIPE))
}

func TestErrorsIsByCode(t *testing.T) {
	a := NewError("A", ErrCodeCommand, "bad arity")
	b := NewError("B", ErrCodeCommand, "unknown verb")
	assert.True(t, errors.Is(a, b))
}
