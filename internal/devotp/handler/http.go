// Package handler serves dev-only passcode retrieval. It is mounted only when dev OTP mode is on.
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hungle-ag/task-manager-server/internal/devotp"
)

// Handler serves GET /api/dev/otp/:accessCodeId.
type Handler struct {
	store devotp.Store
}

// NewHandler returns a dev OTP handler reading from store.
func NewHandler(store devotp.Store) *Handler {
	return &Handler{store: store}
}

// Register mounts the route on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/otp/:accessCodeId", h.GetOTP)
}

// GetOTP returns the plain passcode for an access code id if it is still live.
func (h *Handler) GetOTP(c *gin.Context) {
	id := strings.TrimSpace(c.Param("accessCodeId"))
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Dev OTP mode is disabled"})
		return
	}
	code, ok := h.store.Get(c.Request.Context(), id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "OTP not found or expired"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "OK",
		"data":    gin.H{"accessCodeId": id, "otp": code},
	})
}
