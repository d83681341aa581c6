package model

import "time"

// Shared defaults used by both the server and CLI binaries.
const (
	DefaultUpdateInterval = 2 * time.Second
	DefaultLiveWindow     = 60 * time.Second
	DefaultInterval       = 1
	UnknownSource         = "unknown"
)
