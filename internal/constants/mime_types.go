package constants

import "strings"

// MimeTypes maps file extensions to MIME types for uploads whose picker did
// not report one
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",

	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".txt":  "text/plain",
}

// DefaultMimeType is the fallback MIME type for unknown file extensions
const DefaultMimeType = "application/octet-stream"

// Default allowed file types for uploads
var (
	DefaultImageTypes    = []string{"jpg", "jpeg", "png", "gif", "webp", "heic"}
	DefaultDocumentTypes = []string{"pdf", "doc", "docx", "xls", "xlsx", "txt"}
)

// DocumentExtension picks the cache file extension for a decoded document.
// Only a handful of viewer-relevant families are distinguished; everything
// else is written as .bin.
func DocumentExtension(mimeType string) string {
	m := strings.ToLower(mimeType)
	switch {
	case strings.Contains(m, "pdf"):
		return "pdf"
	case strings.Contains(m, "msword"), strings.Contains(m, "word"):
		return "doc"
	case strings.Contains(m, "sheet"):
		return "xls"
	default:
		return "bin"
	}
}

// MimeTypeForFile returns the MIME type for a file name by extension.
func MimeTypeForFile(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return DefaultMimeType
	}
	if mt, ok := MimeTypes[strings.ToLower(name[idx:])]; ok {
		return mt
	}
	return DefaultMimeType
}
