package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var imageExts = []string{"jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp"}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the lower-cased file extension without the dot
func GetFileExtension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// IsImageFile checks if a file or URL path has an image extension
func IsImageFile(filename string) bool {
	if i := strings.IndexAny(filename, "?#"); i >= 0 {
		filename = filename[:i]
	}
	return slices.Contains(imageExts, GetFileExtension(filename))
}

// OutputPaths derives the preview image and layout JSON paths for an input
// image or URL
func OutputPaths(input, outputDir, suffix, format string) (preview, layout string) {
	base := input
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	name := SanitizeFilename(strings.TrimSuffix(filepath.Base(base), filepath.Ext(base)))
	if name == "" {
		name = "image"
	}
	if format == "" {
		format = "png"
	}
	preview = filepath.Join(outputDir, fmt.Sprintf("%s%s.%s", name, suffix, format))
	layout = filepath.Join(outputDir, fmt.Sprintf("%s%s.json", name, suffix))
	return preview, layout
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// SanitizeFilename replaces characters that are invalid in filenames
func SanitizeFilename(filename string) string {
	result := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, filename)
	return strings.Trim(result, " .")
}
