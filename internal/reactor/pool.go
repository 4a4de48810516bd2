package reactor

import (
	"sync"

	"github.com/adrianmoss/rkv/internal/constants"
)

// readBufPool hands out fixed-size scratch buffers for recv() calls so the
// hot path doesn't allocate per readiness event. Every connection reads
// into a buffer from this pool and returns it before the loop moves on to
// the next ready fd.
var readBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, constants.ReadChunkSize)
		return &b
	},
}

// GetReadBuffer returns a pooled ReadChunkSize-byte buffer.
func GetReadBuffer() []byte {
	return *readBufPool.Get().(*[]byte)
}

// PutReadBuffer returns buf to the pool. buf must have been obtained from
// GetReadBuffer and not resliced beyond its original length.
func PutReadBuffer(buf []byte) {
	if cap(buf) != constants.ReadChunkSize {
		return
	}
	buf = buf[:constants.ReadChunkSize]
	readBufPool.Put(&buf)
}
