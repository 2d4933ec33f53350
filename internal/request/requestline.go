package request

import (
	"bytes"
	"errors"
	"strings"

	"github.com/Brownie44l1/epoll-web/internal/pathcodec"
)

var (
	ErrMalformedRequestLine = errors.New("malformed request line")
	ErrInvalidPath          = errors.New("invalid request path")
)

// parseRequestLine splits a request line into method, target and protocol.
// Tokens are whitespace-delimited; anything after the third token is ignored.
func parseRequestLine(line []byte) (*Request, error) {
	parts := bytes.Fields(line)
	if len(parts) < 3 {
		return nil, ErrMalformedRequestLine
	}

	method := string(parts[0])
	target := string(parts[1])
	proto := string(parts[2])

	if !isValidPath(target) {
		return nil, ErrInvalidPath
	}

	return &Request{
		Method:  method,
		RawPath: target,
		Path:    pathcodec.Decode(stripQuery(target)),
		Proto:   proto,
	}, nil
}

// isValidPath accepts origin-form targets only.
func isValidPath(target string) bool {
	return len(target) > 0 && target[0] == '/'
}

func stripQuery(target string) string {
	if idx := strings.IndexByte(target, '?'); idx != -1 {
		return target[:idx]
	}
	return target
}
