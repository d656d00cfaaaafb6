package attachments

import (
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

var allowedTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"text/plain":      {},
	"text/csv":        {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

func init() {
	ensureMimeType(".csv", "text/csv")
	ensureMimeType(".webp", "image/webp")
	ensureMimeType(".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ensureMimeType(".docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		log.Printf("attachments: failed to register MIME type for %s: %v", ext, err)
	}
}

// resolveContentType trusts the declared type, then the extension, then the
// content itself. Parameters such as charset are dropped.
func resolveContentType(declared, name string, head []byte) string {
	candidates := []string{declared, mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))}
	for _, c := range candidates {
		if c == "" || c == "application/octet-stream" {
			continue
		}
		if base, _, err := mime.ParseMediaType(c); err == nil {
			return base
		}
	}
	base, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	return base
}

func contentTypeAllowed(typ string) bool {
	_, ok := allowedTypes[typ]
	return ok
}
