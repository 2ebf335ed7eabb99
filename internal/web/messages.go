package web

// messages.go maps technical errors to user-facing messages with codes for
// support reference. Sentinel errors are matched with errors.Is first; the
// remaining errors fall back to case-insensitive substring patterns.
//
// # Dialect Errors (DIA001-DIA099)
//
//	DIA001 - Undetermined: no single delimiter explains every sampled line
//	         Action: Pass the delimiter explicitly
//	DIA002 - Bad delimiter: the delimiter parameter is not one character
//	         Action: Use a single character or a name such as "tab"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: upload exceeds SERVER_MAX_UPLOAD_SIZE
//	FILE002 - No file: the multipart form has no "file" part
//	FILE003 - Bad compression: the extension names a codec the data is not in
//	FILE004 - Empty file: the file has no header row
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Conversion failed: a cell does not parse as its column type
//	VAL002 - Column not found: a requested column is not in the headers
//	VAL003 - Bad parameter: a form or query parameter is malformed
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Cancelled: the client went away
//	REQ002 - Timeout: SERVER_REQUEST_TIMEOUT elapsed
//	REQ003 - Busy: every upload slot stayed taken for SERVER_UPLOAD_WAIT
//
// ERR000 is the fallback; check the logs for the technical error.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/filerift/internal/coerce"
	"github.com/JonMunkholm/filerift/internal/dialect"
	"github.com/JonMunkholm/filerift/internal/reader"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
	Status  int    // HTTP status
}

// errBadParam marks malformed request parameters.
var errBadParam = errors.New("invalid parameter")

func badParam(name string, err error) error {
	return fmt.Errorf("%w %s: %w", errBadParam, name, err)
}

var (
	msgUndetermined = UserMessage{
		Message: "Could not determine the delimiter",
		Action:  "Pass the delimiter explicitly, e.g. delimiter=comma",
		Code:    "DIA001",
		Status:  http.StatusUnprocessableEntity,
	}
	msgTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file or compress it with gzip or zstd",
		Code:    "FILE001",
		Status:  http.StatusRequestEntityTooLarge,
	}
	msgNoFile = UserMessage{
		Message: "No file was provided",
		Action:  `Send the file in a multipart field named "file"`,
		Code:    "FILE002",
		Status:  http.StatusBadRequest,
	}
	msgBadParam = UserMessage{
		Message: "A request parameter is invalid",
		Action:  "Check the delimiter, quote, rows and flag parameters",
		Code:    "VAL003",
		Status:  http.StatusBadRequest,
	}
)

// sentinels are checked in order with errors.Is.
var sentinels = []struct {
	target error
	msg    UserMessage
}{
	{dialect.ErrUndetermined, msgUndetermined},
	{http.ErrMissingFile, msgNoFile},
	{http.ErrNotMultipart, msgNoFile},
	{errBadParam, msgBadParam},
	{reader.ErrNoHeaders, UserMessage{
		Message: "The file has no header row",
		Action:  "Upload a file with a header row or set header=false",
		Code:    "FILE004",
		Status:  http.StatusUnprocessableEntity,
	}},
	{reader.ErrColumnNotFound, UserMessage{
		Message: "Column not found",
		Action:  "Verify the column name matches the header exactly",
		Code:    "VAL002",
		Status:  http.StatusUnprocessableEntity,
	}},
	{ErrTooManyUploads, UserMessage{
		Message: "Too many uploads in progress",
		Action:  "Please wait a moment and try again",
		Code:    "REQ003",
		Status:  http.StatusServiceUnavailable,
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
		Status:  499,
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or fewer preview rows",
		Code:    "REQ002",
		Status:  http.StatusGatewayTimeout,
	}},
}

// errorPatterns are matched case-insensitively with strings.Contains.
// The first matching pattern wins.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"request body too large", msgTooLarge},
	{"not a single character", UserMessage{
		Message: "Delimiter must be a single character",
		Action:  `Use one character or a name such as "tab" or "pipe"`,
		Code:    "DIA002",
		Status:  http.StatusBadRequest,
	}},
	{"gzip", badCompression},
	{"zstd", badCompression},
	{"xz", badCompression},
	{"no such file", msgNoFile},
}

var badCompression = UserMessage{
	Message: "The file could not be decompressed",
	Action:  "Check that the file extension matches its compression",
	Code:    "FILE003",
	Status:  http.StatusBadRequest,
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
	Status:  http.StatusInternalServerError,
}

// MapError converts a technical error to a user-friendly message, falling
// back to ERR000.
//
//	msg := MapError(fmt.Errorf("detect: %w", dialect.ErrUndetermined))
//	// msg.Code == "DIA001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return msgTooLarge
	}

	for _, s := range sentinels {
		if errors.Is(err, s.target) {
			return s.msg
		}
	}

	var convErr *coerce.Error
	if errors.As(err, &convErr) {
		return UserMessage{
			Message: fmt.Sprintf("Value %q is not a valid %s", convErr.Value, convErr.Kind),
			Action:  "Fix the value or read the column as text",
			Code:    "VAL001",
			Status:  http.StatusUnprocessableEntity,
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
