package listing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agorgl/blocky/internal/index"
	"github.com/agorgl/blocky/internal/server/handlers/api"
)

type ListingHandler struct {
	svc *index.Service
}

func New(svc *index.Service) *ListingHandler {
	return &ListingHandler{svc: svc}
}

// GetListing returns the identity of every file under the server root:
// relative path plus content hash.
func (h *ListingHandler) GetListing(ctx *gin.Context) {
	listing, err := h.svc.Listing()
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeIndexFailed, err)
		return
	}
	ctx.PureJSON(http.StatusOK, listing)
}
