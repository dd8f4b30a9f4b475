// Package blockysdk is the HTTP client for the blocky server API.
package blockysdk

import (
	"time"

	"github.com/imroc/req/v3"

	"github.com/agorgl/blocky/internal/version"
)

const (
	v1Listing = "/api/v1/listing"
	v1Patch   = "/api/v1/patch"
)

// SDK talks to a blocky server. Safe for concurrent use.
type SDK struct {
	client  *req.Client
	baseURL string
}

func New(baseURL string) (*SDK, error) {
	if baseURL == "" {
		return nil, ErrNoServerURL
	}

	client := req.C().
		SetBaseURL(baseURL).
		SetUserAgent("blocky/"+version.Version).
		SetCommonRetryCount(2).
		SetCommonRetryBackoffInterval(500*time.Millisecond, 3*time.Second).
		SetCommonErrorResult(&APIError{}).
		SetTimeout(2 * time.Minute)

	return &SDK{
		client:  client,
		baseURL: baseURL,
	}, nil
}

// Close releases idle connections held by the underlying client.
func (s *SDK) Close() {
	s.client.GetTransport().CloseIdleConnections()
}
