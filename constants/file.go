package constants

import "strings"

// MaxImageMBDefault caps the image size forwarded to the extraction service.
const MaxImageMBDefault = 10

var imageMimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"gif":  "image/gif",
}

// NormalizeExt lowercases and strips the leading dot from an extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ImageMimeType maps a file extension to a MIME type the extraction service accepts.
func ImageMimeType(ext string) (string, bool) {
	mt, ok := imageMimeTypes[NormalizeExt(ext)]
	return mt, ok
}
