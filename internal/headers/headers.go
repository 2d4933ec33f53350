// Package headers scans request lines and skips over the header block.
// Header contents carry no meaning for the file server, so nothing is stored.
package headers

import "bytes"

// ScanLine returns the first complete line in data without its terminator,
// and the number of bytes consumed including the terminator. A line ends in
// "\r\n" or a bare "\n". ok is false when no terminator has arrived yet.
func ScanLine(data []byte) (line []byte, n int, ok bool) {
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		// Need more data
		return nil, 0, false
	}

	line = data[:idx]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, idx + 1, true
}

// Discard consumes complete header lines up to and including the blank line
// that ends the header block. It returns the bytes consumed and whether the
// blank line was seen. A trailing partial line is left for the next call.
func Discard(data []byte) (int, bool) {
	read := 0

	for {
		line, n, ok := ScanLine(data[read:])
		if !ok {
			return read, false
		}
		read += n

		if len(line) == 0 {
			// Empty line = end of headers
			return read, true
		}
	}
}
