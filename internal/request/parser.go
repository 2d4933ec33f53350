package request

import (
	"errors"
	"fmt"

	"github.com/Brownie44l1/epoll-web/internal/headers"
)

// Size limits
const (
	maxRequestLineSize = 8192    // 8KB for request line
	maxHeaderSize      = 1 << 20 // 1MB total headers
)

var (
	ErrRequestLineTooLarge = errors.New("request line too large")
	ErrHeaderTooLarge      = errors.New("headers too large")
)

// State is the parse state of one connection.
type State int

const (
	StateAwaitingRequestLine State = iota
	StateAwaitingHeaders
	StateDispatched
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateAwaitingRequestLine:
		return "awaiting-request-line"
	case StateAwaitingHeaders:
		return "awaiting-headers"
	case StateDispatched:
		return "dispatched"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Parser is a resumable request parser. Bytes arrive through Feed in whatever
// pieces the socket hands out; a partial line stays buffered until the rest arrives.
type Parser struct {
	state       State
	buffer      []byte // Accumulates data between reads
	req         *Request
	headerBytes int
}

func NewParser() *Parser {
	return &Parser{
		state:  StateAwaitingRequestLine,
		buffer: make([]byte, 0, 1024),
	}
}

// State returns the current parse state.
func (p *Parser) State() State {
	return p.state
}

// Request returns the parsed request once the request line has been seen.
func (p *Parser) Request() *Request {
	return p.req
}

// Close moves the parser to StateClosing and drops anything buffered.
func (p *Parser) Close() {
	p.state = StateClosing
	p.buffer = nil
}

// Feed appends data and advances the state machine as far as the buffered
// bytes allow. Once dispatched, further data is ignored. A parse error moves
// the parser to StateClosing.
func (p *Parser) Feed(data []byte) (State, error) {
	if p.state == StateDispatched || p.state == StateClosing {
		return p.state, nil
	}

	p.buffer = append(p.buffer, data...)

	for {
		switch p.state {
		case StateAwaitingRequestLine:
			line, n, ok := headers.ScanLine(p.buffer)
			if !ok {
				if len(p.buffer) > maxRequestLineSize {
					return p.fail(ErrRequestLineTooLarge)
				}
				return p.state, nil
			}
			if n > maxRequestLineSize {
				return p.fail(ErrRequestLineTooLarge)
			}
			p.buffer = p.buffer[n:]

			// Skip empty lines ahead of the request line
			if len(line) == 0 {
				continue
			}

			req, err := parseRequestLine(line)
			if err != nil {
				return p.fail(err)
			}
			p.req = req
			p.state = StateAwaitingHeaders

		case StateAwaitingHeaders:
			n, done := headers.Discard(p.buffer)
			p.headerBytes += n
			p.buffer = p.buffer[n:]

			if p.headerBytes+len(p.buffer) > maxHeaderSize {
				return p.fail(ErrHeaderTooLarge)
			}
			if !done {
				return p.state, nil
			}

			// Anything after the blank line is not forwarded anywhere
			p.buffer = nil
			p.state = StateDispatched
			return p.state, nil

		default:
			return p.state, nil
		}
	}
}

func (p *Parser) fail(err error) (State, error) {
	p.Close()
	return p.state, err
}
