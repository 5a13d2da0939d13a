package model

import "time"

// SourceAuthKind selects how the fetch orchestrator authenticates to an ICS
// source.
type SourceAuthKind string

const (
	SourceAuthNone   SourceAuthKind = "none"
	SourceAuthBasic  SourceAuthKind = "basic"
	SourceAuthBearer SourceAuthKind = "bearer"
)

// SourceSpec describes one ICS feed to fetch.
type SourceSpec struct {
	ID       string
	URL      string
	Auth     SourceAuthKind
	Username string // basic auth
	Password string // basic auth
	Token    string // bearer auth

	RequestTimeout  time.Duration
	RefreshInterval time.Duration // zero means "use the global default"
	Headers         map[string]string
	TLSVerify       bool
}

// RawIcsResponse is the result of one successful fetch: the fully read body
// bytes plus caching hints.
type RawIcsResponse struct {
	StatusCode   int
	Body         []byte
	ETag         string
	LastModified string
}
