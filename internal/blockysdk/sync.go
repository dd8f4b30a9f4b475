package blockysdk

import (
	"context"
	"encoding/base64"

	"github.com/agorgl/blocky/internal/protocol"
)

// Listing fetches the server's file listing.
func (s *SDK) Listing(ctx context.Context) (*protocol.Listing, error) {
	var listing protocol.Listing
	resp, err := s.client.R().
		SetContext(ctx).
		SetSuccessResult(&listing).
		Get(v1Listing)

	if err := handleAPIError(resp, err, "fetch listing"); err != nil {
		return nil, err
	}
	return &listing, nil
}

// Patch sends the signature of the client's current bytes for file and
// returns the raw encoded op stream computed by the server.
func (s *SDK) Patch(ctx context.Context, file string, sig []byte) ([]byte, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(&protocol.PatchRequest{
			File: file,
			Sig:  base64.StdEncoding.EncodeToString(sig),
		}).
		Post(v1Patch)

	if err := handleAPIError(resp, err, "fetch patch"); err != nil {
		return nil, err
	}
	return resp.Bytes(), nil
}
