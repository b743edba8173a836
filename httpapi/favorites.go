package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) toggleFavorite(c *gin.Context) {
	var req cartKeyRequest
	if !bind(c, &req) {
		return
	}
	action, err := s.favorites.Toggle(c.Request.Context(), req.OwnerEmail, req.ItemNumber)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": string(action)})
}

func (s *Server) listFavorites(c *gin.Context) {
	var req ownerRequest
	if !bindQuery(c, &req) || !ownsResource(c, req.OwnerEmail) {
		return
	}
	items, err := s.favorites.ListByOwner(c.Request.Context(), req.OwnerEmail)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
