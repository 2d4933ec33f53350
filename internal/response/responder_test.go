package response

import (
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/epoll-web/internal/request"
)

func get(path string) *request.Request {
	return &request.Request{Method: "GET", RawPath: path, Path: path, Proto: "HTTP/1.1"}
}

func readBody(t *testing.T, resp *Response) []byte {
	t.Helper()
	defer resp.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return body
}

func TestServeMissingFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "404.html"), []byte("X"), 0o644))

	resp, err := NewResponder(root, "").Serve(get("/missing-file.txt"))
	require.NoError(t, err)

	assert.Equal(t, StatusNotFound, resp.Status)
	assert.Equal(t, "text/html", resp.ContentType)
	assert.Equal(t, int64(-1), resp.ContentLength)
	assert.Equal(t, "HTTP/1.1 404 File Not Found\r\nContent-Type: text/html\r\nContent-Length: -1\r\n\r\n", string(resp.Head()))
	assert.Equal(t, "X", string(readBody(t, resp)))
}

func TestServeMissingFileWithoutNotFoundPage(t *testing.T) {
	resp, err := NewResponder(t.TempDir(), "").Serve(get("/missing"))
	require.NoError(t, err)

	assert.Equal(t, StatusNotFound, resp.Status)
	assert.Empty(t, readBody(t, resp))
}

func TestServeCustomNotFoundPage(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "missing.html"), []byte("gone"), 0o644))

	resp, err := NewResponder(root, "missing.html").Serve(get("/nope"))
	require.NoError(t, err)
	assert.Equal(t, "gone", string(readBody(t, resp)))
}

func TestServeFile(t *testing.T) {
	root := t.TempDir()
	content := make([]byte, 12345)
	for i := range content {
		content[i] = byte(i * 7)
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "photo.png"), content, 0o644))

	resp, err := NewResponder(root, "").Serve(get("/photo.png"))
	require.NoError(t, err)

	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, "image/png", resp.ContentType)
	assert.Equal(t, int64(12345), resp.ContentLength)
	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Type: image/png\r\nContent-Length: 12345\r\n\r\n", string(resp.Head()))
	assert.Equal(t, sha256.Sum256(content), sha256.Sum256(readBody(t, resp)))
}

func TestServeFileInSubdirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs.v1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs.v1", "my notes"), []byte("hi"), 0o644))

	resp, err := NewResponder(root, "").Serve(get("/docs.v1/my notes"))
	require.NoError(t, err)

	assert.Equal(t, DefaultContentType, resp.ContentType)
	assert.Equal(t, "hi", string(readBody(t, resp)))
}

func TestServeDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("0123456789"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	resp, err := NewResponder(root, "").Serve(get("/"))
	require.NoError(t, err)

	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, "text/html", resp.ContentType)
	assert.Equal(t, int64(-1), resp.ContentLength)

	page := string(readBody(t, resp))
	assert.Equal(t, 2, strings.Count(page, "<tr>"))
	assert.Less(t, strings.Index(page, "a.txt"), strings.Index(page, "sub/"))
	assert.Contains(t, page, `<a href="a.txt">a.txt</a></td><td>10</td>`)
}

func TestServeUnreadableDirectoryFails(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any directory")
	}
	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Mkdir(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	_, err := NewResponder(root, "").Serve(get("/locked"))
	require.Error(t, err)
}

func TestErrorResponse(t *testing.T) {
	resp := Error(StatusMethodNotAllowed)

	assert.Equal(t, StatusMethodNotAllowed, resp.Status)
	body := readBody(t, resp)
	assert.Equal(t, "Error 405: Method Not Allowed\n", string(body))
	assert.Equal(t, int64(len(body)), resp.ContentLength)
	assert.Contains(t, string(resp.Head()), "Content-Length: 30\r\n")
}

func TestExactReaderShortFile(t *testing.T) {
	// Test: a file that shrank after stat reports an unexpected EOF
	r := &exactReader{r: strings.NewReader("abc"), remaining: 10}
	got, err := io.ReadAll(r)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "abc", string(got))

	// Test: a file that grew is cut at the declared size
	r = &exactReader{r: strings.NewReader("abcdef"), remaining: 4}
	got, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(got))

	// Test: one byte per read still adds up
	r = &exactReader{r: iotest.OneByteReader(strings.NewReader("xyz")), remaining: 3}
	got, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(got))
}
