package request

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(t *testing.T, p *Parser, chunks ...string) (State, error) {
	t.Helper()
	var (
		state State
		err   error
	)
	for _, c := range chunks {
		state, err = p.Feed([]byte(c))
		if err != nil {
			return state, err
		}
	}
	return state, nil
}

func TestSimpleGETRequest(t *testing.T) {
	p := NewParser()
	state, err := p.Feed([]byte("GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n"))

	require.NoError(t, err)
	assert.Equal(t, StateDispatched, state)

	req := p.Request()
	require.NotNil(t, req)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/index.html", req.RawPath)
	assert.Equal(t, "/index.html", req.Path)
	assert.Equal(t, "HTTP/1.1", req.Proto)
	assert.True(t, req.IsGET())
}

func TestRequestLineSplitAcrossReads(t *testing.T) {
	// Test: the same request delivered whole and in two pieces parses identically
	whole := NewParser()
	_, err := whole.Feed([]byte("GET /x.html HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	split := NewParser()
	state, err := split.Feed([]byte("GET /x.html"))
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingRequestLine, state)
	assert.Nil(t, split.Request())

	state, err = feedAll(t, split, " HTTP/1.1\r\n", "\r\n")
	require.NoError(t, err)
	assert.Equal(t, StateDispatched, state)
	assert.Equal(t, whole.Request(), split.Request())
}

func TestIncrementalParsing(t *testing.T) {
	// Simulate a socket handing out a few bytes per readiness event
	data := "GET /a%20b.txt HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n"
	p := NewParser()

	var state State
	for i := 0; i < len(data); i += 5 {
		end := min(i+5, len(data))
		var err error
		state, err = p.Feed([]byte(data[i:end]))
		require.NoError(t, err)
		if end < len(data) {
			assert.NotEqual(t, StateDispatched, state)
		}
	}

	assert.Equal(t, StateDispatched, state)
	assert.Equal(t, "/a b.txt", p.Request().Path)
}

func TestBareLineFeeds(t *testing.T) {
	p := NewParser()
	state, err := p.Feed([]byte("GET /plain HTTP/1.0\nHost: a\n\n"))

	require.NoError(t, err)
	assert.Equal(t, StateDispatched, state)
	assert.Equal(t, "/plain", p.Request().Path)
}

func TestAwaitingHeaders(t *testing.T) {
	p := NewParser()
	state, err := p.Feed([]byte("GET / HTTP/1.1\r\nHost: exa"))

	require.NoError(t, err)
	assert.Equal(t, StateAwaitingHeaders, state)
	require.NotNil(t, p.Request())

	state, err = p.Feed([]byte("mple.com\r\n\r"))
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingHeaders, state)

	state, err = p.Feed([]byte("\n"))
	require.NoError(t, err)
	assert.Equal(t, StateDispatched, state)
}

func TestTrailingTokensIgnored(t *testing.T) {
	p := NewParser()
	_, err := p.Feed([]byte("GET   /a.txt\tHTTP/1.1 extra junk\r\n\r\n"))

	require.NoError(t, err)
	assert.Equal(t, "GET", p.Request().Method)
	assert.Equal(t, "/a.txt", p.Request().Path)
	assert.Equal(t, "HTTP/1.1", p.Request().Proto)
}

func TestMethodCaseInsensitive(t *testing.T) {
	for _, method := range []string{"GET", "get", "Get", "gEt"} {
		p := NewParser()
		_, err := p.Feed([]byte(method + " / HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)
		assert.True(t, p.Request().IsGET(), "method %s", method)
	}

	p := NewParser()
	_, err := p.Feed([]byte("POST / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	assert.False(t, p.Request().IsGET())
}

func TestQueryDropped(t *testing.T) {
	p := NewParser()
	_, err := p.Feed([]byte("GET /search%3F.txt?q=1 HTTP/1.1\r\n\r\n"))

	require.NoError(t, err)
	assert.Equal(t, "/search%3F.txt?q=1", p.Request().RawPath)
	assert.Equal(t, "/search?.txt", p.Request().Path)
}

func TestLeadingEmptyLinesSkipped(t *testing.T) {
	p := NewParser()
	state, err := p.Feed([]byte("\r\n\r\nGET / HTTP/1.1\r\n\r\n"))

	require.NoError(t, err)
	assert.Equal(t, StateDispatched, state)
	assert.Equal(t, "/", p.Request().Path)
}

func TestMalformedRequestLine(t *testing.T) {
	// Missing HTTP version
	p := NewParser()
	state, err := p.Feed([]byte("GET /path\r\nHost: example.com\r\n\r\n"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRequestLine)
	assert.Equal(t, StateClosing, state)
}

func TestInvalidPath(t *testing.T) {
	p := NewParser()
	_, err := p.Feed([]byte("GET index.html HTTP/1.1\r\n\r\n"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestRequestLineTooLarge(t *testing.T) {
	// Test: no terminator and already over the limit
	p := NewParser()
	_, err := p.Feed([]byte("GET /" + strings.Repeat("a", maxRequestLineSize)))
	assert.ErrorIs(t, err, ErrRequestLineTooLarge)

	// Test: terminated but too long
	p = NewParser()
	_, err = p.Feed([]byte("GET /" + strings.Repeat("a", maxRequestLineSize) + " HTTP/1.1\r\n"))
	assert.ErrorIs(t, err, ErrRequestLineTooLarge)
}

func TestHeaderTooLarge(t *testing.T) {
	p := NewParser()
	_, err := p.Feed([]byte("GET / HTTP/1.1\r\n"))
	require.NoError(t, err)

	line := "X-Filler: " + strings.Repeat("f", 1000) + "\r\n"
	var state State
	for i := 0; i < (maxHeaderSize/len(line))+2; i++ {
		state, err = p.Feed([]byte(line))
		if err != nil {
			break
		}
	}

	assert.ErrorIs(t, err, ErrHeaderTooLarge)
	assert.Equal(t, StateClosing, state)
}

func TestDataAfterDispatchIgnored(t *testing.T) {
	p := NewParser()
	state, err := p.Feed([]byte("GET / HTTP/1.1\r\n\r\nleftover body"))
	require.NoError(t, err)
	assert.Equal(t, StateDispatched, state)

	state, err = p.Feed([]byte("GARBAGE\r\n"))
	require.NoError(t, err)
	assert.Equal(t, StateDispatched, state)
	assert.Equal(t, "/", p.Request().Path)
}

func TestClose(t *testing.T) {
	p := NewParser()
	_, err := p.Feed([]byte("GET / HT"))
	require.NoError(t, err)

	p.Close()
	assert.Equal(t, StateClosing, p.State())

	state, err := p.Feed([]byte("TP/1.1\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, StateClosing, state)
}
