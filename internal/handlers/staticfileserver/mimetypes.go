package staticfileserver

import (
	"mime"
	"path/filepath"
	"strings"
)

// defaultMimeTypes is consulted before the platform MIME table so content
// types do not depend on the host's mime.types files.
var defaultMimeTypes = map[string]string{
	".aac":    "audio/aac",
	".abw":    "application/x-abiword",
	".apng":   "image/apng",
	".arc":    "application/x-freearc",
	".avif":   "image/avif",
	".avi":    "video/x-msvideo",
	".azw":    "application/vnd.amazon.ebook",
	".bin":    "application/octet-stream",
	".bmp":    "image/bmp",
	".bz":     "application/x-bzip",
	".bz2":    "application/x-bzip2",
	".cda":    "application/x-cdf",
	".csh":    "application/x-csh",
	".css":    "text/css; charset=utf-8",
	".csv":    "text/csv; charset=utf-8",
	".doc":    "application/msword",
	".docx":   "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".eot":    "application/vnd.ms-fontobject",
	".epub":   "application/epub+zip",
	".gz":     "application/gzip",
	".gif":    "image/gif",
	".htm":    "text/html; charset=utf-8",
	".html":   "text/html; charset=utf-8",
	".ico":    "image/vnd.microsoft.icon",
	".ics":    "text/calendar; charset=utf-8",
	".jar":    "application/java-archive",
	".jpeg":   "image/jpeg",
	".jpg":    "image/jpeg",
	".js":     "text/javascript; charset=utf-8",
	".json":   "application/json; charset=utf-8",
	".jsonld": "application/ld+json; charset=utf-8",
	".md":     "text/markdown; charset=utf-8",
	".mid":    "audio/midi",
	".midi":   "audio/midi",
	".mjs":    "text/javascript; charset=utf-8",
	".mp3":    "audio/mpeg",
	".mp4":    "video/mp4",
	".mpeg":   "video/mpeg",
	".mpkg":   "application/vnd.apple.installer+xml",
	".odp":    "application/vnd.oasis.opendocument.presentation",
	".ods":    "application/vnd.oasis.opendocument.spreadsheet",
	".odt":    "application/vnd.oasis.opendocument.text",
	".oga":    "audio/ogg",
	".ogv":    "video/ogg",
	".ogx":    "application/ogg",
	".opus":   "audio/opus",
	".otf":    "font/otf",
	".png":    "image/png",
	".pdf":    "application/pdf",
	".php":    "application/x-httpd-php",
	".ppt":    "application/vnd.ms-powerpoint",
	".pptx":   "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".rar":    "application/vnd.rar",
	".rtf":    "application/rtf",
	".sh":     "application/x-sh",
	".svg":    "image/svg+xml",
	".tar":    "application/x-tar",
	".tif":    "image/tiff",
	".tiff":   "image/tiff",
	".ts":     "video/mp2t",
	".ttf":    "font/ttf",
	".txt":    "text/plain; charset=utf-8",
	".vsd":    "application/vnd.visio",
	".wasm":   "application/wasm",
	".wav":    "audio/wav",
	".weba":   "audio/webm",
	".webm":   "video/webm",
	".webp":   "image/webp",
	".woff":   "font/woff",
	".woff2":  "font/woff2",
	".xhtml":  "application/xhtml+xml; charset=utf-8",
	".xls":    "application/vnd.ms-excel",
	".xlsx":   "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xml":    "application/xml; charset=utf-8",
	".xul":    "application/vnd.mozilla.xul+xml",
	".zip":    "application/zip",
	".3gp":    "video/3gpp",
	".3g2":    "video/3gpp2",
	".7z":     "application/x-7z-compressed",
}

// binaryContentTypes lists the extensions served as raw binary, with the
// exact content type sent for each. Everything else is served as text.
var binaryContentTypes = map[string]string{
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".png":   "image/png",
	".gif":   "image/gif",
	".bmp":   "image/bmp",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".svg":   "image/svg+xml",
	".pdf":   "application/pdf",
	".zip":   "application/zip",
	".mp4":   "video/mp4",
	".mp3":   "audio/mpeg",
	".wav":   "audio/wav",
	".avi":   "video/x-msvideo",
	".mov":   "video/quicktime",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".eot":   "application/vnd.ms-fontobject",
}

const defaultOctetStreamMimeType = "application/octet-stream"

// MimeTypeResolver maps file names to content types.
type MimeTypeResolver struct {
	customMimeTypes map[string]string
}

// NewMimeTypeResolver creates a resolver. custom overrides the built-in
// tables; keys are extensions with a leading dot, matched case-insensitively.
func NewMimeTypeResolver(custom map[string]string) *MimeTypeResolver {
	resolver := &MimeTypeResolver{
		customMimeTypes: make(map[string]string, len(custom)),
	}
	for ext, mimeType := range custom {
		resolver.customMimeTypes[strings.ToLower(ext)] = mimeType
	}
	return resolver
}

// GetMimeType returns the content type for a text (non-binary) file.
// Lookup order: custom mappings, defaultMimeTypes, the platform table, then
// application/octet-stream.
func (r *MimeTypeResolver) GetMimeType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))

	if ext == "" {
		return defaultOctetStreamMimeType
	}

	if mimeType, ok := r.customMimeTypes[ext]; ok {
		return mimeType
	}

	if mimeType, ok := defaultMimeTypes[ext]; ok {
		return mimeType
	}

	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}

	return defaultOctetStreamMimeType
}

// BinaryContentType reports whether filePath has one of the binary
// extensions and, if so, the content type to send.
func BinaryContentType(filePath string) (string, bool) {
	ct, ok := binaryContentTypes[strings.ToLower(filepath.Ext(filePath))]
	return ct, ok
}

// AssetContentType returns the content type for a bundled server asset.
func AssetContentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".css"):
		return "text/css; charset=utf-8"
	case strings.HasSuffix(name, ".js"):
		return "application/javascript; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}
