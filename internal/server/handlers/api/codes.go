package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error

	// Listing/patch errors
	CodeInvalidPath  = "E_INVALID_PATH"   // relative path is unsafe or malformed
	CodeFileNotFound = "E_FILE_NOT_FOUND" // requested file does not exist under the root
	CodeDecodeFailed = "E_DECODE_FAILED"  // signature could not be decoded
	CodeIndexFailed  = "E_INDEX_FAILED"   // listing could not be built
)
