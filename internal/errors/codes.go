// Package errors provides structured error handling for docquery.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and index errors
//   - 3XX: Network errors
//   - 4XX: Extraction errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, disk, and index I/O errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryExtraction indicates document extraction errors.
	CategoryExtraction Category = "EXTRACTION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO and index errors (200-299)
	ErrCodeFileNotFound = "ERR_201_FILE_NOT_FOUND"
	ErrCodeCorruptIndex = "ERR_202_CORRUPT_INDEX"
	ErrCodeManifestIO   = "ERR_203_MANIFEST_IO"
	ErrCodeExportIO     = "ERR_204_EXPORT_IO"

	// Network errors (300-399)
	ErrCodeNetworkTimeout  = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeFetchFailed     = "ERR_302_FETCH_FAILED"
	ErrCodeEmbeddingFailed = "ERR_303_EMBEDDING_FAILED"

	// Extraction errors (400-499)
	ErrCodeUnsupportedFormat = "ERR_401_UNSUPPORTED_FORMAT"
	ErrCodeExtractionFailed  = "ERR_402_EXTRACTION_FAILED"
	ErrCodeOCRFailed         = "ERR_403_OCR_FAILED"
	ErrCodeEncodingUnknown   = "ERR_404_ENCODING_UNKNOWN"

	// Internal errors (500-599)
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeSearchFailed  = "ERR_502_SEARCH_FAILED"
	ErrCodeSyncFailed    = "ERR_503_SYNC_FAILED"
	ErrCodeAnswerFailed  = "ERR_504_ANSWER_FAILED"
	ErrCodeHandleExpired = "ERR_505_HANDLE_EXPIRED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryExtraction
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	case ErrCodeUnsupportedFormat, ErrCodeExtractionFailed, ErrCodeOCRFailed, ErrCodeEncodingUnknown, ErrCodeFetchFailed:
		// Per-item extraction and fetch errors degrade the batch, never abort it.
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeFetchFailed, ErrCodeEmbeddingFailed:
		return true
	default:
		return false
	}
}
