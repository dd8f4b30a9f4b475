package patch

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agorgl/blocky/internal/delta"
	"github.com/agorgl/blocky/internal/index"
	"github.com/agorgl/blocky/internal/protocol"
	"github.com/agorgl/blocky/internal/server/handlers/api"
)

type PatchHandler struct {
	svc *index.Service
}

func New(svc *index.Service) *PatchHandler {
	return &PatchHandler{svc: svc}
}

// ComputePatch takes the client's signature for one file and responds with
// the binary op stream that brings the client's bytes up to date with the
// server's copy. The stream format is owned by the delta package and is
// symmetric with the client-side applier.
func (h *PatchHandler) ComputePatch(ctx *gin.Context) {
	var req protocol.PatchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("bind request: %w", err))
		return
	}

	// Wire paths are untrusted. Reject traversal before any filesystem access.
	if err := protocol.ValidateRelPath(req.File); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidPath, err)
		return
	}

	sigBytes, err := base64.StdEncoding.DecodeString(req.Sig)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeDecodeFailed, fmt.Errorf("signature base64: %w", err))
		return
	}

	sig, err := delta.DecodeSignature(sigBytes)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeDecodeFailed, err)
		return
	}

	data, err := h.svc.ReadFile(req.File)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			api.AbortWithError(ctx, http.StatusNotFound, api.CodeFileNotFound, fmt.Errorf("no such file %q", req.File))
		} else {
			api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		}
		return
	}

	ops, err := delta.ComputeDelta(sig, data)
	if err != nil {
		var decodeErr *delta.DecodeError
		if errors.As(err, &decodeErr) {
			api.AbortWithError(ctx, http.StatusBadRequest, api.CodeDecodeFailed, err)
		} else {
			api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		}
		return
	}

	ctx.Data(http.StatusOK, "application/octet-stream", delta.EncodeOps(ops))
}
