package response

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Brownie44l1/epoll-web/internal/dirlist"
	"github.com/Brownie44l1/epoll-web/internal/request"
)

// DefaultNotFoundPage is looked up at the document root for 404 bodies.
const DefaultNotFoundPage = "404.html"

const htmlContentType = "text/html"

// ErrNotRegular is returned when a path that stat'ed as a regular file opens
// as something else.
var ErrNotRegular = errors.New("target is no longer a regular file")

// Response is a fully decided response: its head is fixed and its body is
// pulled by the connection as the socket accepts more bytes.
type Response struct {
	Status        StatusCode
	ContentType   string
	ContentLength int64 // -1 when the body is delimited by closing the connection
	Body          io.Reader
	closer        io.Closer
}

// Head renders the status line, both headers and the blank line.
func (r *Response) Head() []byte {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	// Writes into a bytes.Buffer cannot fail
	_ = w.WriteStatusLine(r.Status)
	_ = w.WriteHeaders(r.ContentType, r.ContentLength)
	return buf.Bytes()
}

// Close releases the body's file, if any.
func (r *Response) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Error builds the short plain-text response sent for protocol errors.
func Error(code StatusCode) *Response {
	body := fmt.Sprintf("Error %d: %s\n", code, StatusText(code))
	return &Response{
		Status:        code,
		ContentType:   DefaultContentType,
		ContentLength: int64(len(body)),
		Body:          strings.NewReader(body),
	}
}

// Responder resolves requests against a fixed document root.
type Responder struct {
	root         string
	notFoundPage string
}

func NewResponder(root, notFoundPage string) *Responder {
	if notFoundPage == "" {
		notFoundPage = DefaultNotFoundPage
	}
	return &Responder{
		root:         root,
		notFoundPage: notFoundPage,
	}
}

// Serve decides the response for a GET request. A returned error means the
// target changed between stat and open; the caller should close the
// connection without sending anything.
func (r *Responder) Serve(req *request.Request) (*Response, error) {
	target := dirlist.Resolve(r.root, req.Path)

	switch target.Kind {
	case dirlist.Directory:
		listing, err := dirlist.Open(r.root, target.Rel)
		if err != nil {
			return nil, err
		}
		return &Response{
			Status:        StatusOK,
			ContentType:   htmlContentType,
			ContentLength: -1,
			Body:          listing,
		}, nil

	case dirlist.File:
		return r.serveFile(target)

	default:
		return r.notFound(), nil
	}
}

// serveFile opens the file before anything is sent so the declared length
// comes from the descriptor that will be streamed.
func (r *Responder) serveFile(target dirlist.Target) (*Response, error) {
	f, err := os.Open(dirlist.FSPath(r.root, target.Rel))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", target.Rel, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", target.Rel, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%s: %w", target.Rel, ErrNotRegular)
	}

	return &Response{
		Status:        StatusOK,
		ContentType:   ContentType(path.Base(target.Rel)),
		ContentLength: info.Size(),
		Body:          &exactReader{r: f, remaining: info.Size()},
		closer:        f,
	}, nil
}

// notFound streams the 404 page; a missing page gives an empty body.
func (r *Responder) notFound() *Response {
	resp := &Response{
		Status:        StatusNotFound,
		ContentType:   htmlContentType,
		ContentLength: -1,
		Body:          bytes.NewReader(nil),
	}

	f, err := os.Open(filepath.Join(r.root, r.notFoundPage))
	if err != nil {
		return resp
	}
	if info, err := f.Stat(); err != nil || !info.Mode().IsRegular() {
		f.Close()
		return resp
	}

	resp.Body = f
	resp.closer = f
	return resp
}

// exactReader yields exactly remaining bytes, or io.ErrUnexpectedEOF if the
// underlying file runs out first.
type exactReader struct {
	r         io.Reader
	remaining int64
}

func (e *exactReader) Read(p []byte) (int, error) {
	if e.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > e.remaining {
		p = p[:e.remaining]
	}

	n, err := e.r.Read(p)
	e.remaining -= int64(n)

	if err == io.EOF {
		if e.remaining > 0 {
			return n, io.ErrUnexpectedEOF
		}
		return n, nil
	}
	return n, err
}
