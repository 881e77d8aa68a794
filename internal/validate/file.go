package validate

import (
	"errors"
	"fmt"
	"strings"
)

// File validation errors
var (
	ErrInvalidMIMEType = errors.New("invalid MIME type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrFileTooSmall    = errors.New("file too small")
)

// MIME types accepted for source documents backing content items.
const (
	MIMETextHTML  = "text/html"
	MIMEPDF       = "application/pdf"
	MIMEEPUB      = "application/epub+zip"
	MIMEImageJPEG = "image/jpeg"
	MIMEImagePNG  = "image/png"
	MIMEAudioMPEG = "audio/mpeg"
	MIMEAudioM4A  = "audio/mp4"
)

// AllowedDocumentTypes defines the MIME types a reader document upload
// may carry. Video is deliberately absent; video items are linked out to
// their hosts, never stored.
var AllowedDocumentTypes = []string{
	MIMETextHTML,
	MIMEPDF,
	MIMEEPUB,
	MIMEImageJPEG,
	MIMEImagePNG,
	MIMEAudioMPEG,
	MIMEAudioM4A,
}

// FileConstraints defines validation constraints for file uploads.
type FileConstraints struct {
	AllowedTypes []string // Allowed MIME types
	MaxSizeBytes int64    // Maximum file size in bytes
	MinSizeBytes int64    // Minimum file size in bytes (0 = no minimum)
}

// MIMEType validates a MIME type against allowed types.
// Returns the normalized MIME type (lowercased) and an error if invalid.
func MIMEType(mimeType string, allowedTypes []string) (string, error) {
	// Normalize: trim whitespace and lowercase
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))

	if mimeType == "" {
		return "", ErrEmpty
	}

	// Check if in allowed list
	for _, allowed := range allowedTypes {
		if mimeType == strings.ToLower(allowed) {
			return mimeType, nil
		}
	}

	return "", fmt.Errorf("%w: %q not in allowed types", ErrInvalidMIMEType, mimeType)
}

// FileSize validates a file size against constraints.
func FileSize(sizeBytes int64, constraints FileConstraints) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("%w: size must be positive", ErrFileTooSmall)
	}

	if constraints.MinSizeBytes > 0 && sizeBytes < constraints.MinSizeBytes {
		return fmt.Errorf("%w: got %d bytes, minimum is %d", ErrFileTooSmall, sizeBytes, constraints.MinSizeBytes)
	}

	if constraints.MaxSizeBytes > 0 && sizeBytes > constraints.MaxSizeBytes {
		return fmt.Errorf("%w: got %d bytes, maximum is %d", ErrFileTooLarge, sizeBytes, constraints.MaxSizeBytes)
	}

	return nil
}

// File validates both MIME type and file size.
func File(mimeType string, sizeBytes int64, constraints FileConstraints) (string, error) {
	// Validate MIME type
	validatedType, err := MIMEType(mimeType, constraints.AllowedTypes)
	if err != nil {
		return "", err
	}

	// Validate size
	if err := FileSize(sizeBytes, constraints); err != nil {
		return "", err
	}

	return validatedType, nil
}

// DocumentFile validates a source-document upload against the document
// MIME allow-list and the given size ceiling.
func DocumentFile(mimeType string, sizeBytes, maxSizeBytes int64) (string, error) {
	return File(mimeType, sizeBytes, FileConstraints{
		AllowedTypes: AllowedDocumentTypes,
		MaxSizeBytes: maxSizeBytes,
	})
}
