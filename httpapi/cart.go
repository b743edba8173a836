package httpapi

import (
	"net/http"

	"food-ordering/models"
	"food-ordering/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type cartLineRequest struct {
	ItemNumber int64           `json:"itemNumber" binding:"required,gt=0"`
	OwnerEmail string          `json:"ownerEmail" binding:"required,email"`
	Quantity   int64           `json:"quantity" binding:"required,gt=0"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Name       string          `json:"name" binding:"required"`
	ImageRef   string          `json:"imageRef"`
}

type cartAdjustRequest struct {
	ItemNumber int64  `json:"itemNumber" binding:"required,gt=0"`
	OwnerEmail string `json:"ownerEmail" binding:"required,email"`
	Direction  string `json:"direction" binding:"required,oneof=inc dec"`
}

type cartKeyRequest struct {
	ItemNumber int64  `json:"itemNumber" binding:"required,gt=0"`
	OwnerEmail string `json:"ownerEmail" binding:"required,email"`
}

type ownerRequest struct {
	OwnerEmail string `json:"ownerEmail" form:"ownerEmail" binding:"required,email"`
}

func (s *Server) upsertCartLine(c *gin.Context) {
	var req cartLineRequest
	if !bind(c, &req) || !ownsResource(c, req.OwnerEmail) {
		return
	}
	if !req.UnitPrice.IsPositive() {
		writeError(c, services.ValidationError("cart.upsert", "unitPrice must be positive"))
		return
	}

	inserted, err := s.carts.Upsert(c.Request.Context(), models.CartLine{
		ItemNumber: req.ItemNumber,
		OwnerEmail: req.OwnerEmail,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		Name:       req.Name,
		ImageRef:   req.ImageRef,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	msg := "updated"
	if inserted {
		msg = "added"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (s *Server) adjustCartLine(c *gin.Context) {
	var req cartAdjustRequest
	if !bind(c, &req) || !ownsResource(c, req.OwnerEmail) {
		return
	}
	delta := int64(1)
	if req.Direction == "dec" {
		delta = -1
	}

	res, err := s.carts.AdjustQuantity(c.Request.Context(), req.OwnerEmail, req.ItemNumber, delta)
	if err != nil {
		writeError(c, err)
		return
	}
	msg := "updated"
	if res.Removed {
		msg = "removed"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "quantity": res.Quantity})
}

func (s *Server) removeCartLine(c *gin.Context) {
	var req cartKeyRequest
	if !bind(c, &req) || !ownsResource(c, req.OwnerEmail) {
		return
	}
	if err := s.carts.Remove(c.Request.Context(), req.OwnerEmail, req.ItemNumber); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (s *Server) listCart(c *gin.Context) {
	var req ownerRequest
	if !bind(c, &req) || !ownsResource(c, req.OwnerEmail) {
		return
	}
	lines, err := s.carts.ListByOwner(c.Request.Context(), req.OwnerEmail)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lines)
}

func (s *Server) countCart(c *gin.Context) {
	var req ownerRequest
	if !bind(c, &req) {
		return
	}
	total, err := s.carts.TotalQuantity(c.Request.Context(), req.OwnerEmail)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totalCount": total})
}
