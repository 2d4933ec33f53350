package response

import "fmt"

// StatusCode represents HTTP status codes
type StatusCode int

const (
	StatusOK               StatusCode = 200
	StatusBadRequest       StatusCode = 400
	StatusNotFound         StatusCode = 404
	StatusMethodNotAllowed StatusCode = 405
)

// statusText maps status codes to reason phrases
var statusText = map[StatusCode]string{
	StatusOK:               "OK",
	StatusBadRequest:       "Bad Request",
	StatusNotFound:         "File Not Found",
	StatusMethodNotAllowed: "Method Not Allowed",
}

// StatusText returns the reason phrase for a status code
func StatusText(code StatusCode) string {
	if text, ok := statusText[code]; ok {
		return text
	}
	return "Unknown Status"
}

func (code StatusCode) String() string {
	return fmt.Sprintf("%d %s", int(code), StatusText(code))
}

// IsClientError returns true for 4xx status codes
func (code StatusCode) IsClientError() bool {
	return code >= 400 && code < 500
}
