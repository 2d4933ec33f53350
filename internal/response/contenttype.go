package response

import "strings"

// DefaultContentType is used when the extension is unknown or absent.
const DefaultContentType = "text/plain; charset=utf-8"

// contentTypes is keyed by the file name suffix starting at its last dot.
var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".png":  "image/png",
	".css":  "text/css",
	".au":   "audio/basic",
	".wav":  "audio/wav",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".qt":   "video/quicktime",
	".mpeg": "video/mpeg",
	".mpe":  "video/mpeg",
	".vrml": "model/vrml",
	".wrl":  "model/vrml",
	".midi": "audio/midi",
	".mid":  "audio/midi",
	".mp3":  "audio/mpeg",
	".ogg":  "application/ogg",
	".pac":  "application/x-ns-proxy-autoconfig",
}

// ContentType maps a file name to its content type.
func ContentType(name string) string {
	dot := strings.LastIndexByte(name, '.')
	if dot == -1 {
		return DefaultContentType
	}
	if ct, ok := contentTypes[name[dot:]]; ok {
		return ct
	}
	return DefaultContentType
}
