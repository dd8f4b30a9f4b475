// Package protocol holds the wire types exchanged between the blocky client
// and server, plus the content hashing and path validation rules both sides
// must agree on.
package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ListingEntry identifies one regular file under the server root at the
// time the listing was built.
type ListingEntry struct {
	Path string `json:"path"` // relative, forward-slash separated
	Hash string `json:"hash"` // hex SHA-256 of the file contents
}

// Listing is the server's view of its root directory. Paths are unique
// within a listing; order is not significant.
type Listing struct {
	Files []ListingEntry `json:"files"`
}

// PatchRequest asks the server for the delta that brings the client's copy
// of File up to date. Sig is the base64 encoded signature of the client's
// current bytes (empty file signature when the file is missing locally).
type PatchRequest struct {
	File string `json:"file" binding:"required"`
	Sig  string `json:"sig" binding:"required"`
}

// HashBytes is the whole-file content fingerprint used for change
// detection: files whose hashes match skip the delta exchange entirely.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var ErrUnsafePath = errors.New("unsafe relative path")

// ValidateRelPath rejects paths that could escape the configured root when
// joined to it. Paths travel over the wire, so both sides validate before
// touching the filesystem.
func ValidateRelPath(rel string) error {
	if rel == "" {
		return fmt.Errorf("%w: empty path", ErrUnsafePath)
	}
	if strings.ContainsRune(rel, '\x00') {
		return fmt.Errorf("%w: %q contains NUL", ErrUnsafePath, rel)
	}
	if strings.Contains(rel, "\\") {
		return fmt.Errorf("%w: %q contains backslash", ErrUnsafePath, rel)
	}
	if path.IsAbs(rel) {
		return fmt.Errorf("%w: %q is absolute", ErrUnsafePath, rel)
	}
	clean := path.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: %q escapes the root", ErrUnsafePath, rel)
	}
	return nil
}
