package utils

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
)

const (
	// MaxSpreadsheetSize is the largest line sheet accepted for import
	MaxSpreadsheetSize = 2 * 1024 * 1024
	// SpreadsheetExtension is the only accepted workbook format
	SpreadsheetExtension = ".xlsx"
)

// xlsx workbooks are zip containers
var zipSignature = []byte("PK\x03\x04")

// FileUploadError is returned when an uploaded or parsed file is rejected.
// Code is surfaced to clients as the error code.
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateSpreadsheetFile checks the size, extension and container signature
// of an uploaded workbook. It does not parse the sheet.
func ValidateSpreadsheetFile(fileHeader *multipart.FileHeader) error {
	if fileHeader.Size > MaxSpreadsheetSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxSpreadsheetSize/(1024*1024)),
		}
	}

	if ext := strings.ToLower(filepath.Ext(fileHeader.Filename)); ext != SpreadsheetExtension {
		return &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: fmt.Sprintf("Only %s files are allowed", SpreadsheetExtension),
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	head := make([]byte, len(zipSignature))
	if _, err := io.ReadFull(file, head); err != nil || !bytes.Equal(head, zipSignature) {
		return &FileUploadError{
			Code:    "NOT_A_WORKBOOK",
			Message: "File is not an Excel workbook",
		}
	}

	return nil
}
