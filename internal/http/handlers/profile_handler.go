// Profile HTTP handlers.
//
//   - GET /me             (session lookup: caller id plus profile, if any)
//   - PUT /me             (create or update the caller's profile)
//   - GET /profiles/{id}
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/http/middleware"
	"github.com/tbourn/go-social-chat/internal/services"
)

// MeResponse describes the current session. Profile is omitted when the
// caller has not created one yet.
type MeResponse struct {
	ID      string          `json:"id" example:"alice"`
	Profile *domain.Profile `json:"profile,omitempty"`
}

// UpdateProfileRequest is the payload of PUT /me. Email falls back to the
// token's email claim.
type UpdateProfileRequest struct {
	Email       string  `json:"email"        example:"alice@example.com"`
	DisplayName *string `json:"display_name" example:"Alice"`
	AvatarURL   *string `json:"avatar_url"   example:"https://cdn.example.com/a.png"`
}

// GetMe godoc
// @ID          getMe
// @Summary     Current session
// @Tags        Profiles
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.MeResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /me [get]
func (h *Handlers) GetMe(c *gin.Context) {
	uid, okID := callerID(c)
	if !okID {
		return
	}
	p, err := h.profileSvc.Get(c.Request.Context(), uid)
	if err != nil && !errors.Is(err, services.ErrUserNotFound) {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, MeResponse{ID: uid, Profile: p})
}

// UpdateMe godoc
// @ID          updateMe
// @Summary     Create or update the caller's profile
// @Tags        Profiles
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.UpdateProfileRequest  true  "Profile fields"
// @Success     200  {object}  domain.Profile
// @Failure     400  {object}  handlers.ErrorResponse  "Email required"
// @Failure     409  {object}  handlers.ErrorResponse  "Email already in use"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /me [put]
func (h *Handlers) UpdateMe(c *gin.Context) {
	uid, okID := callerID(c)
	if !okID {
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = middleware.UserEmail(c)
	}
	if email == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email required")
		return
	}

	p := &domain.Profile{ID: uid, Email: email, DisplayName: req.DisplayName, AvatarURL: req.AvatarURL}
	if p.AvatarURL != nil && strings.TrimSpace(*p.AvatarURL) == "" {
		p.AvatarURL = nil
	}
	if err := h.profileSvc.Upsert(c.Request.Context(), p); err != nil {
		failService(c, err, ErrCodeSaveFailed)
		return
	}
	ok(c, http.StatusOK, p)
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Get a profile
// @Tags        Profiles
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "User id"
// @Success     200  {object}  domain.Profile
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /profiles/{id} [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	if _, okID := callerID(c); !okID {
		return
	}
	p, err := h.profileSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, p)
}
