package blockysdk

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var ErrNoServerURL = errors.New("sdk: server url missing")

// APIError is the {code, error} JSON shape the server returns on failures.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

// handleAPIError folds transport failures and API error responses into one
// error return, wrapping with the operation name for context.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s: %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		if apiErr, ok := resp.ErrorResult().(*APIError); ok && apiErr.Code != "" {
			return fmt.Errorf("%s: %w", operation, apiErr)
		}
		return fmt.Errorf("%s: unexpected status %s", operation, resp.Status)
	}

	return nil
}
