package httpapi

import (
	"net/http"
	"strconv"

	"food-ordering/services"

	"github.com/gin-gonic/gin"
)

func (s *Server) listOrders(c *gin.Context) {
	var req ownerRequest
	if !bindQuery(c, &req) || !ownsResource(c, req.OwnerEmail) {
		return
	}
	orders, err := s.ledger.ListByOwner(c.Request.Context(), req.OwnerEmail)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) revenue(c *gin.Context) {
	total, err := s.ledger.AggregateRevenue(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revenue": total})
}

func (s *Server) listMenu(c *gin.Context) {
	items, err := s.menu.ListMenu(c.Request.Context(), c.Query("category"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) getMenuItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("itemNumber"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, services.ValidationError("menu.get", "itemNumber must be a positive integer"))
		return
	}
	item, err := s.menu.GetMenuItem(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}
