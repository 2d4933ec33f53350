package request

import "strings"

// Request is the decoded request line. Headers are consumed but not kept.
type Request struct {
	Method  string
	RawPath string // target as sent, query included
	Path    string // percent-decoded target, query dropped
	Proto   string
}

// IsGET reports whether the method is GET, ignoring case.
func (r *Request) IsGET() bool {
	return strings.EqualFold(r.Method, "GET")
}
