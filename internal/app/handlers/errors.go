package handlers

import (
	"net/http"

	reasoncodes "idp-node/pkg/reason_codes"

	"github.com/gin-gonic/gin"
)

func statusOf(err error) int {
	code, ok := reasoncodes.CodeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch code {
	case reasoncodes.ErrRequestNotFound,
		reasoncodes.ErrAccessorPublicKeyNotFound,
		reasoncodes.ErrIdentityNotFound,
		reasoncodes.ErrNodeKeyNotFound:
		return http.StatusNotFound
	case reasoncodes.ErrIdentityAlreadyExists:
		return http.StatusConflict
	case reasoncodes.ErrInvalidKeyFormat,
		reasoncodes.ErrMismatchedKeyType,
		reasoncodes.ErrUnsupportedKeyType,
		reasoncodes.ErrRsaKeyLengthTooShort,
		reasoncodes.ErrInvalidMessage:
		return http.StatusBadRequest
	case reasoncodes.ErrSignWithAccessorKeyUrlNotSet:
		return http.StatusPreconditionFailed
	case reasoncodes.ErrSolana, reasoncodes.ErrSignWithAccessorKeyFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if code, ok := reasoncodes.CodeOf(err); ok {
		body["code"] = code.String()
	}
	c.JSON(statusOf(err), body)
}

func unavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Blockchain temporarily unavailable, retry later"})
}
