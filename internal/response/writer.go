package response

import (
	"errors"
	"fmt"
	"io"
)

// Protocol is the version every status line declares. Connections are still
// closed after each response.
const Protocol = "HTTP/1.1"

var (
	ErrStatusWritten    = errors.New("status line already written")
	ErrStatusNotWritten = errors.New("must write status line before headers")
	ErrHeadersNotDone   = errors.New("must write status line and headers before body")
)

// writerState tracks what's been written so far
type writerState int

const (
	stateStart writerState = iota
	stateStatusWritten
	stateHeadersWritten
	stateBodyWritten
)

// Writer writes the head of a response (and optionally a body) in wire order:
// status line, Content-Type, Content-Length, blank line, body.
type Writer struct {
	w     io.Writer
	state writerState
}

// NewWriter creates a new response writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:     w,
		state: stateStart,
	}
}

// WriteStatusLine writes "<protocol> <code> <reason>\r\n".
func (w *Writer) WriteStatusLine(code StatusCode) error {
	if w.state != stateStart {
		return ErrStatusWritten
	}

	if _, err := fmt.Fprintf(w.w, "%s %d %s\r\n", Protocol, code, StatusText(code)); err != nil {
		return err
	}

	w.state = stateStatusWritten
	return nil
}

// WriteHeaders writes the two response headers and the blank line after them.
// A negative contentLength is written as -1: the body is delimited by closing
// the connection.
func (w *Writer) WriteHeaders(contentType string, contentLength int64) error {
	if w.state != stateStatusWritten {
		return ErrStatusNotWritten
	}

	if contentLength < 0 {
		contentLength = -1
	}

	_, err := fmt.Fprintf(w.w, "Content-Type: %s\r\nContent-Length: %d\r\n\r\n", contentType, contentLength)
	if err != nil {
		return err
	}

	w.state = stateHeadersWritten
	return nil
}

// WriteBody writes body bytes after the headers.
func (w *Writer) WriteBody(p []byte) (int, error) {
	if w.state != stateHeadersWritten && w.state != stateBodyWritten {
		return 0, ErrHeadersNotDone
	}

	n, err := w.w.Write(p)
	if err != nil {
		return n, err
	}

	w.state = stateBodyWritten
	return n, nil
}

// TextResponse writes a complete plain-text response with an exact length.
func (w *Writer) TextResponse(code StatusCode, body string) error {
	if err := w.WriteStatusLine(code); err != nil {
		return err
	}
	if err := w.WriteHeaders("text/plain; charset=utf-8", int64(len(body))); err != nil {
		return err
	}
	_, err := w.WriteBody([]byte(body))
	return err
}
