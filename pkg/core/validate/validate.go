// Package validate holds the user-correctable input errors of the extractor
// (page ranges, upload types and sizes) and the checks that produce them.
package validate

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// Reason classifies a ValidationError.
type Reason string

const (
	ReasonMalformed    Reason = "malformed"
	ReasonOutOfBounds  Reason = "out_of_bounds"
	ReasonReversed     Reason = "start_after_end"
	ReasonNoPages      Reason = "no_valid_pages"
	ReasonFileType     Reason = "unsupported_file_type"
	ReasonFileTooLarge Reason = "file_too_large"
	ReasonEmpty        Reason = "empty_input"
)

// ValidationError is a locally recoverable input failure. Token carries the
// offending fragment of user input so it can be shown back for correction.
type ValidationError struct {
	Field   string
	Token   string
	Reason  Reason
	Message string
}

func (e *ValidationError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Token, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// New builds a ValidationError.
func New(field, token string, reason Reason, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Token:   token,
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}

// =============================================================================
// UPLOAD CHECKS
// =============================================================================

// DocumentKind is the detected type of an uploaded document.
type DocumentKind string

const (
	KindPDF  DocumentKind = "pdf"
	KindHTML DocumentKind = "html"
)

// DetectDocument checks the file name and leading bytes of an upload and
// returns its kind. Extension and content must agree.
func DetectDocument(fileName string, head []byte) (DocumentKind, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	detected := strings.ToLower(strings.Split(http.DetectContentType(head), ";")[0])

	switch ext {
	case ".pdf":
		if detected != "application/pdf" {
			return "", New("file", fileName, ReasonFileType, "content is %s, not a PDF", detected)
		}
		return KindPDF, nil
	case ".html", ".htm":
		if detected != "text/html" && detected != "text/plain" && detected != "text/xml" {
			return "", New("file", fileName, ReasonFileType, "content is %s, not HTML", detected)
		}
		return KindHTML, nil
	}
	return "", New("file", fileName, ReasonFileType, "only .pdf, .html and .htm documents are supported")
}

// CheckJSONUpload accepts .json files only.
func CheckJSONUpload(fileName string) error {
	if strings.ToLower(filepath.Ext(fileName)) != ".json" {
		return New("file", fileName, ReasonFileType, "only .json files can be imported")
	}
	return nil
}

// CheckSize rejects empty uploads and uploads above max bytes (max <= 0 disables the ceiling).
func CheckSize(fileName string, size, max int64) error {
	if size == 0 {
		return New("file", fileName, ReasonEmpty, "file is empty")
	}
	if max > 0 && size > max {
		return New("file", fileName, ReasonFileTooLarge, "file is %d bytes, limit is %d", size, max)
	}
	return nil
}
