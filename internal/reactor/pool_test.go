package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adrianmoss/rkv/internal/constants"
)

func TestReadBufferPoolSize(t *testing.T) {
	buf := GetReadBuffer()
	defer PutReadBuffer(buf)
	assert.Len(t, buf, constants.ReadChunkSize)
}

func TestReadBufferPoolReuse(t *testing.T) {
	buf := GetReadBuffer()
	buf[0] = 0xFF
	PutReadBuffer(buf)

	buf2 := GetReadBuffer()
	defer PutReadBuffer(buf2)
	assert.Len(t, buf2, constants.ReadChunkSize)
}
