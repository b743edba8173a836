package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"food-ordering/config"
	"food-ordering/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindAuth:
		return http.StatusUnauthorized
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		config.LogError(config.GetLogger(), "httpapi", c.FullPath(), kind.String(), c.GetString(ctxRequestID), err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"message": services.MessageOf(err),
		"error":   kind.String(),
	})
}

// validationFields maps validator errors to json field names.
func validationFields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if name != "" {
			name = strings.ToLower(name[:1]) + name[1:]
		}
		switch fe.Tag() {
		case "required":
			fields[name] = "is required"
		case "email":
			fields[name] = "must be a valid email"
		case "oneof":
			fields[name] = "must be one of: " + fe.Param()
		default:
			fields[name] = "failed " + fe.Tag() + " " + fe.Param()
		}
	}
	return fields
}

// bind decodes the JSON body into req and writes a 400 on failure.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		body := gin.H{"message": "invalid request", "error": services.KindValidation.String()}
		if fields := validationFields(err); fields != nil {
			body["fields"] = fields
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, body)
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		body := gin.H{"message": "invalid request", "error": services.KindValidation.String()}
		if fields := validationFields(err); fields != nil {
			body["fields"] = fields
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, body)
		return false
	}
	return true
}
