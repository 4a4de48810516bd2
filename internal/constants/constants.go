package constants

import "time"

// Default configuration constants, mirroring spec.md §6's configuration
// table. config.DefaultConfig starts from these values.
const (
	// DefaultBindAddr is the address the listener binds when none is given.
	DefaultBindAddr = "127.0.0.1:6379"

	// DefaultLoopTimeoutMs bounds the epoll wait and the active-expire cadence.
	DefaultLoopTimeoutMs = 100

	// DefaultTTLSampleSize is the number of keys sampled per active-expire pass.
	DefaultTTLSampleSize = 20

	// DefaultQuicklistNodeCap is the max element count per quicklist node.
	DefaultQuicklistNodeCap = 128

	// DefaultMaxOutboundBytes is the per-connection write buffer high-water mark.
	DefaultMaxOutboundBytes = 64 << 20
)

// ReadChunkSize is the size of each recv() attempt against a client socket.
const ReadChunkSize = 4096

// Timing constants for the reactor loop.
const (
	// MinLoopTimeout is the floor applied to a configured loop timeout so
	// that active expiration still runs even if a caller asks for 0.
	MinLoopTimeout = time.Millisecond
)
