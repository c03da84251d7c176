package models

import (
	"path/filepath"
	"sort"
	"strings"
)

// FileType identifies a supported document format.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypePPTX FileType = "pptx"
	FileTypeXLSX FileType = "xlsx"
	FileTypeODS  FileType = "ods"
	FileTypeCSV  FileType = "csv"
	FileTypeTXT  FileType = "txt"
	FileTypeMD   FileType = "md"
	FileTypeHTML FileType = "html"
	FileTypeJSON FileType = "json"
	FileTypeEML  FileType = "eml"

	FileTypeUnknown FileType = "unknown"
)

var supportedTypes = map[FileType]bool{
	FileTypePDF:  true,
	FileTypeDOCX: true,
	FileTypePPTX: true,
	FileTypeXLSX: true,
	FileTypeODS:  true,
	FileTypeCSV:  true,
	FileTypeTXT:  true,
	FileTypeMD:   true,
	FileTypeHTML: true,
	FileTypeJSON: true,
	FileTypeEML:  true,
}

// DetectFileType maps a filename extension to a FileType.
func DetectFileType(filename string) FileType {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "htm":
		ext = "html"
	case "markdown":
		ext = "md"
	}
	ft := FileType(ext)
	if supportedTypes[ft] {
		return ft
	}
	return FileTypeUnknown
}

// SupportedExtensions lists the extensions the parser accepts.
func SupportedExtensions() []string {
	out := make([]string, 0, len(supportedTypes))
	for ft := range supportedTypes {
		out = append(out, "."+string(ft))
	}
	sort.Strings(out)
	return out
}
