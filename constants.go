package rkv

import "github.com/adrianmoss/rkv/internal/constants"

// Re-exported defaults, for callers that only want the root package import.
const (
	DefaultBindAddr         = constants.DefaultBindAddr
	DefaultLoopTimeoutMs    = constants.DefaultLoopTimeoutMs
	DefaultTTLSampleSize    = constants.DefaultTTLSampleSize
	DefaultQuicklistNodeCap = constants.DefaultQuicklistNodeCap
	DefaultMaxOutboundBytes = constants.DefaultMaxOutboundBytes
)
