// Package dirlist resolves request paths against a document root and renders
// directory listings as HTML, one row at a time.
package dirlist

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Brownie44l1/epoll-web/internal/pathcodec"
)

// Kind classifies a resolved target.
type Kind int

const (
	NotFound Kind = iota
	Directory
	File
)

func (k Kind) String() string {
	switch k {
	case Directory:
		return "directory"
	case File:
		return "file"
	default:
		return "not-found"
	}
}

// Target is the result of resolving a decoded request path. Rel is the
// slash-separated path relative to the root ("." for the root itself).
type Target struct {
	Kind Kind
	Rel  string
	Size int64
}

// RelPath maps a decoded request path onto a path relative to the document root.
// "/" becomes "."; ".." segments are cleaned away so the result never leaves the root.
func RelPath(decoded string) string {
	if decoded == "/" {
		return "."
	}
	rel := strings.TrimPrefix(path.Clean("/"+decoded), "/")
	if rel == "" {
		return "."
	}
	return rel
}

// FSPath joins root and a relative path produced by RelPath.
func FSPath(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// Resolve stats the decoded path under root. A failed stat stops there and
// yields NotFound; so does anything that is neither a directory nor a regular
// file, and a regular file named with a trailing slash.
func Resolve(root, decoded string) Target {
	rel := RelPath(decoded)

	info, err := os.Stat(FSPath(root, rel))
	if err != nil {
		return Target{Kind: NotFound, Rel: rel}
	}

	switch {
	case info.IsDir():
		return Target{Kind: Directory, Rel: rel, Size: info.Size()}
	case info.Mode().IsRegular() && !strings.HasSuffix(decoded, "/"):
		return Target{Kind: File, Rel: rel, Size: info.Size()}
	default:
		return Target{Kind: NotFound, Rel: rel}
	}
}

type listingState int

const (
	listingHeader listingState = iota
	listingRows
	listingFooter
	listingDone
)

// Listing streams the HTML listing of one directory. Entries are read up front
// (sorted by name, without "." and ".."); each row is stat'ed and rendered only
// when the reader asks for more bytes.
type Listing struct {
	dir     string
	title   string
	entries []os.DirEntry
	next    int
	state   listingState
	pending bytes.Buffer
}

// Open reads the entries of root/rel. The error is returned before any byte
// is produced so a caller can still abort cleanly.
func Open(root, rel string) (*Listing, error) {
	dir := FSPath(root, rel)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", rel, err)
	}

	title := "/"
	if rel != "." {
		title = "/" + rel
	}

	return &Listing{
		dir:     dir,
		title:   title,
		entries: entries,
	}, nil
}

// Read implements io.Reader.
func (l *Listing) Read(p []byte) (int, error) {
	for l.pending.Len() == 0 {
		if l.state == listingDone {
			return 0, io.EOF
		}
		l.fill()
	}
	return l.pending.Read(p)
}

// fill renders the next piece of the page into pending.
func (l *Listing) fill() {
	switch l.state {
	case listingHeader:
		fmt.Fprintf(&l.pending, "<html><head><title>Index of %s</title></head>", l.title)
		fmt.Fprintf(&l.pending, "<body><h1>Index of %s</h1><table>\n", l.title)
		l.state = listingRows

	case listingRows:
		for l.next < len(l.entries) && l.pending.Len() == 0 {
			l.writeRow(l.entries[l.next].Name())
			l.next++
		}
		if l.next >= len(l.entries) {
			l.state = listingFooter
		}

	case listingFooter:
		l.pending.WriteString("</table></body></html>\n")
		l.state = listingDone
	}
}

// writeRow renders one entry. Entries that vanished or are neither files nor
// directories produce no row.
func (l *Listing) writeRow(name string) {
	info, err := os.Stat(filepath.Join(l.dir, name))
	if err != nil {
		return
	}

	href := pathcodec.Encode(name)
	switch {
	case info.Mode().IsRegular():
		fmt.Fprintf(&l.pending, "<tr><td><a href=\"%s\">%s</a></td><td>%d</td></tr>\n",
			href, name, info.Size())
	case info.IsDir():
		fmt.Fprintf(&l.pending, "<tr><td><a href=\"%s/\">%s/</a></td><td>%d</td></tr>\n",
			href, name, info.Size())
	}
}
