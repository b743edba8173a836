package httpapi

import (
	"io"
	"net/http"

	"food-ordering/models"
	"food-ordering/payments"
	"food-ordering/services"

	"github.com/gin-gonic/gin"
)

// Stripe payloads stay well below this.
const maxWebhookBody = 1 << 16

type checkoutRequest struct {
	CartItems  []models.CheckoutLine `json:"cartItems"`
	OwnerEmail string                `json:"ownerEmail" binding:"required,email"`
}

func (s *Server) startCheckout(c *gin.Context) {
	var req checkoutRequest
	if !bind(c, &req) {
		return
	}
	url, err := s.checkout.Start(c.Request.Context(), req.OwnerEmail, req.CartItems)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"redirectUrl": url})
}

// paymentWebhook hands the body to the processor byte-for-byte; it is never
// decoded before the signature check.
func (s *Server) paymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "failed to read body"})
		return
	}
	if len(body) > maxWebhookBody {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"message": "payload too large"})
		return
	}

	res, err := s.webhooks.Process(c.Request.Context(), body, c.GetHeader(payments.SignatureHeader))
	if err != nil {
		kind := services.KindOf(err)
		s.metrics.Webhooks.WithLabelValues(kind.String()).Inc()
		if kind == services.KindAuth {
			logFromContext(c).Warn("webhook signature rejected")
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid signature"})
			return
		}
		writeError(c, err)
		return
	}

	s.metrics.Webhooks.WithLabelValues(string(res.Outcome)).Inc()
	c.JSON(http.StatusOK, gin.H{"message": string(res.Outcome)})
}
