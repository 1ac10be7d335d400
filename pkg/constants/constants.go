// Package constants defines magic numbers and default values used throughout go-rawget
package constants

import "time"

// Identification sent in the User-Agent request header
const (
	AppName    = "rawget"
	AppVersion = "0.1"
	UserAgent  = AppName + "/" + AppVersion
)

// Timeouts and redirect limits
const (
	DefaultRequestTimeout = 60 * time.Second
	DefaultMaxRedirects   = 7
)

// Response header limits
const (
	MaxHeaderBytes = 4096 // cumulative length of the status line and all header lines
	MaxHeaderCount = 100
)

// Body streaming
const (
	CopyChunkSize   = 4096
	MaxChunkSizeHex = 16 // hex digits that still fit in an int64
)

// URL defaults
const (
	DefaultScheme = "http"
	DefaultPort   = "80"
)

// Sink defaults
const (
	DefaultOutputFile    = "http.out"
	DefaultSpoolMemLimit = 4 * 1024 * 1024 // 4MB
)
