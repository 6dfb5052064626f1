package imagemeta

import (
	"bytes"
	"fmt"
	"strings"
)

// MagicBytes defines magic bytes of the recognised file types.
var MagicBytes = map[string][]byte{
	"image/jpeg":      {0xFF, 0xD8, 0xFF},
	"image/png":       {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"image/gif":       []byte("GIF8"),
	"image/webp":      []byte("RIFF"), // RIFF....WEBP
	"image/bmp":       []byte("BM"),
	"image/tiff":      {0x49, 0x49, 0x2A, 0x00},
	"application/pdf": []byte("%PDF-"),
}

var tiffBigEndian = []byte{0x4D, 0x4D, 0x00, 0x2A}

// DetectType detects the actual file type from magic bytes.
func DetectType(data []byte) (string, error) {
	if len(data) < 12 {
		return "", fmt.Errorf("data too short to detect type")
	}

	switch {
	case bytes.HasPrefix(data, MagicBytes["image/jpeg"]):
		return "image/jpeg", nil
	case bytes.HasPrefix(data, MagicBytes["image/png"]):
		return "image/png", nil
	case bytes.HasPrefix(data, MagicBytes["image/gif"]):
		return "image/gif", nil
	case bytes.HasPrefix(data, MagicBytes["image/webp"]) && string(data[8:12]) == "WEBP":
		return "image/webp", nil
	case bytes.HasPrefix(data, MagicBytes["image/tiff"]), bytes.HasPrefix(data, tiffBigEndian):
		return "image/tiff", nil
	case bytes.HasPrefix(data, MagicBytes["image/bmp"]):
		return "image/bmp", nil
	case bytes.HasPrefix(data, MagicBytes["application/pdf"]):
		return "application/pdf", nil
	}

	// SVG is text; look for the root element in the first bytes.
	head := bytes.ToLower(data)
	if bytes.Contains(head, []byte("<svg")) {
		return "image/svg+xml", nil
	}

	return "", fmt.Errorf("unsupported file type")
}

// MimeTypeForExtension maps a file extension to its image mime type.
func MimeTypeForExtension(ext string) string {
	switch ext = strings.ToLower(strings.TrimPrefix(ext, ".")); ext {
	case "":
		return ""
	case "jpg", "jpeg":
		return "image/jpeg"
	case "svg":
		return "image/svg+xml"
	case "tif":
		return "image/tiff"
	case "pdf":
		return "application/pdf"
	default:
		return "image/" + ext
	}
}
