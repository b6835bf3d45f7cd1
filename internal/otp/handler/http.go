// Package handler exposes the OTP service over HTTP (gin) under /api/auth.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	accesscodedomain "github.com/hungle-ag/task-manager-server/internal/accesscode/domain"
	"github.com/hungle-ag/task-manager-server/internal/otp"
	"github.com/hungle-ag/task-manager-server/internal/server/middleware"
	userdomain "github.com/hungle-ag/task-manager-server/internal/user/domain"
)

// Response messages returned to clients.
const (
	msgOTPSent          = "OTP sent successfully"
	msgOTPVerified      = "OTP verified successfully"
	msgResendThrottled  = "OTP already sent. Please wait"
	msgEmployeeNotFound = "Employee not found"
	msgUserNotFound     = "User not found"
	msgExpiredOTP       = "Expired OTP"
	msgInvalidOTP       = "Invalid or expired OTP"
	msgInvalidBody      = "Invalid request body"
	msgInternal         = "Internal server error"
)

// Service is the OTP service used by the handler.
type Service interface {
	Issue(ctx context.Context, req otp.IssueRequest) (*otp.IssueResult, error)
	Verify(ctx context.Context, req otp.VerifyRequest) (*otp.VerifyResult, error)
	TTL() time.Duration
}

// Handler serves the login, resend and verify endpoints.
type Handler struct {
	svc            Service
	logger         zerolog.Logger
	loginThrottled string
}

// NewHandler returns a Handler backed by svc.
func NewHandler(svc Service, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:            svc,
		logger:         logger.With().Str("component", "auth_handler").Logger(),
		loginThrottled: loginThrottledMessage(svc.TTL()),
	}
}

// loginThrottledMessage tells the caller how long a passcode stays live, e.g. "Try again in 2 minutes".
func loginThrottledMessage(ttl time.Duration) string {
	ttl = ttl.Round(time.Second)
	switch {
	case ttl <= 0:
		return msgResendThrottled
	case ttl == time.Minute:
		return "OTP already sent. Try again in 1 minute"
	case ttl%time.Minute == 0:
		return fmt.Sprintf("OTP already sent. Try again in %d minutes", ttl/time.Minute)
	default:
		return fmt.Sprintf("OTP already sent. Try again in %d seconds", ttl/time.Second)
	}
}

// Register mounts the routes on rg. auth guards GET /me, which is not mounted when auth is nil.
func (h *Handler) Register(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	rg.POST("/login/email", h.LoginByEmail)
	rg.POST("/login/phone", h.LoginByPhone)
	rg.POST("/resend/email", h.ResendByEmail)
	rg.POST("/resend/phone", h.ResendByPhone)
	rg.POST("/verify/email", h.VerifyByEmail)
	rg.POST("/verify/phone", h.VerifyByPhone)
	if auth != nil {
		rg.GET("/me", auth, h.Me)
	}
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type phoneRequest struct {
	Phone string `json:"phone" binding:"required"`
}

type verifyEmailRequest struct {
	Email        string `json:"email" binding:"required"`
	OTP          string `json:"otp" binding:"required"`
	AccessCodeID string `json:"accessCodeId" binding:"required"`
}

type verifyPhoneRequest struct {
	Phone        string `json:"phone" binding:"required"`
	OTP          string `json:"otp" binding:"required"`
	AccessCodeID string `json:"accessCodeId" binding:"required"`
}

type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type errorBody struct {
	Message string           `json:"message"`
	Errors  []otp.FieldError `json:"errors,omitempty"`
}

type userView struct {
	ID        string    `json:"id"`
	Email     *string   `json:"email"`
	Phone     *string   `json:"phone"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserView(u *userdomain.User) userView {
	v := userView{
		ID:        u.ID,
		Name:      u.Name,
		Role:      string(u.Role),
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
	}
	if u.Email != "" {
		v.Email = &u.Email
	}
	if u.Phone != "" {
		v.Phone = &u.Phone
	}
	return v
}

// LoginByEmail handles POST /login/email.
func (h *Handler) LoginByEmail(c *gin.Context) {
	var req emailRequest
	if !h.bind(c, &req) {
		return
	}
	h.issue(c, otp.IssueRequest{Identifier: req.Email, Channel: accesscodedomain.ChannelEmail}, h.loginThrottled)
}

// LoginByPhone handles POST /login/phone.
func (h *Handler) LoginByPhone(c *gin.Context) {
	var req phoneRequest
	if !h.bind(c, &req) {
		return
	}
	h.issue(c, otp.IssueRequest{Identifier: req.Phone, Channel: accesscodedomain.ChannelSMS}, h.loginThrottled)
}

// ResendByEmail handles POST /resend/email.
func (h *Handler) ResendByEmail(c *gin.Context) {
	var req emailRequest
	if !h.bind(c, &req) {
		return
	}
	h.issue(c, otp.IssueRequest{Identifier: req.Email, Channel: accesscodedomain.ChannelEmail, Resend: true}, msgResendThrottled)
}

// ResendByPhone handles POST /resend/phone.
func (h *Handler) ResendByPhone(c *gin.Context) {
	var req phoneRequest
	if !h.bind(c, &req) {
		return
	}
	h.issue(c, otp.IssueRequest{Identifier: req.Phone, Channel: accesscodedomain.ChannelSMS, Resend: true}, msgResendThrottled)
}

// VerifyByEmail handles POST /verify/email.
func (h *Handler) VerifyByEmail(c *gin.Context) {
	var req verifyEmailRequest
	if !h.bind(c, &req) {
		return
	}
	h.verify(c, otp.VerifyRequest{
		Identifier:   req.Email,
		Code:         req.OTP,
		AccessCodeID: req.AccessCodeID,
		Channel:      accesscodedomain.ChannelEmail,
	})
}

// VerifyByPhone handles POST /verify/phone.
func (h *Handler) VerifyByPhone(c *gin.Context) {
	var req verifyPhoneRequest
	if !h.bind(c, &req) {
		return
	}
	h.verify(c, otp.VerifyRequest{
		Identifier:   req.Phone,
		Code:         req.OTP,
		AccessCodeID: req.AccessCodeID,
		Channel:      accesscodedomain.ChannelSMS,
	})
}

// Me handles GET /me and returns the claims of the current session.
func (h *Handler) Me(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, errorBody{Message: "Missing or invalid authorization"})
		return
	}
	data := gin.H{"id": claims.UserID, "role": claims.Role}
	if claims.ExpiresAt != nil {
		data["expiresAt"] = claims.ExpiresAt.Time
	}
	c.JSON(http.StatusOK, envelope{Success: true, Message: "OK", Data: data})
}

func (h *Handler) issue(c *gin.Context, req otp.IssueRequest, throttledMsg string) {
	res, err := h.svc.Issue(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, errorBody{Message: throttledMsg})
		case errors.Is(err, otp.ErrUserNotFound):
			c.JSON(http.StatusNotFound, errorBody{Message: msgEmployeeNotFound})
		default:
			h.writeError(c, err)
		}
		return
	}

	key := "email"
	if req.Channel == accesscodedomain.ChannelSMS {
		key = "phone"
	}
	data := gin.H{"accessCodeId": res.AccessCodeID, key: res.Identifier}
	if res.Code != "" {
		data["otp"] = res.Code
	}
	c.JSON(http.StatusOK, envelope{Success: true, Message: msgOTPSent, Data: data})
}

func (h *Handler) verify(c *gin.Context, req otp.VerifyRequest) {
	res, err := h.svc.Verify(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrAccessCodeNotFound):
			c.JSON(http.StatusBadRequest, errorBody{Message: msgExpiredOTP})
		case errors.Is(err, otp.ErrInvalidOrExpired):
			c.JSON(http.StatusBadRequest, errorBody{Message: msgInvalidOTP})
		case errors.Is(err, otp.ErrUserNotFound):
			c.JSON(http.StatusNotFound, errorBody{Message: msgUserNotFound})
		default:
			h.writeError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Message: msgOTPVerified,
		Data:    gin.H{"user": newUserView(res.User), "token": res.Token, "expiresAt": res.ExpiresAt},
	})
}

// writeError handles validation errors and falls back to a generic 500.
func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *otp.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, validationBody(verr.Fields))
		return
	}
	h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, errorBody{Message: msgInternal})
}

// bind decodes the JSON body into req and writes a 400 on failure.
func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]otp.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, otp.FieldError{Field: jsonName(fe.Field()), Message: jsonName(fe.Field()) + " is required"})
		}
		c.JSON(http.StatusBadRequest, validationBody(fields))
		return false
	}
	c.JSON(http.StatusBadRequest, errorBody{Message: msgInvalidBody})
	return false
}

func validationBody(fields []otp.FieldError) errorBody {
	msg := "Validation failed"
	if len(fields) > 0 {
		msg = fields[0].Message
	}
	return errorBody{Message: msg, Errors: fields}
}

// jsonName maps a request struct field to its JSON key.
func jsonName(field string) string {
	switch field {
	case "Email":
		return "email"
	case "Phone":
		return "phone"
	case "OTP":
		return "otp"
	case "AccessCodeID":
		return "accessCodeId"
	default:
		return field
	}
}
