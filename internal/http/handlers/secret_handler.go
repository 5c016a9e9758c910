// Secret message HTTP handlers.
//
//   - GET /secret            (caller's own secret, 404 when none)
//   - PUT /secret            (replace the caller's secret)
//   - GET /secrets/friends   (secrets of accepted friends with profiles)
//   - GET /secrets/{userId}  (owner or accepted friends only, else 404)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-social-chat/internal/services"
)

// SaveSecretRequest is the payload of PUT /secret.
type SaveSecretRequest struct {
	Message string `json:"message" binding:"required" example:"I still have my first concert ticket"`
}

// FriendSecretsResponse lists friends' secrets.
type FriendSecretsResponse struct {
	Secrets []services.FriendSecret `json:"secrets"`
}

// GetOwnSecret godoc
// @ID          getOwnSecret
// @Summary     Get my secret
// @Tags        Secrets
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.SecretMessage
// @Failure     404  {object}  handlers.ErrorResponse  "No secret yet"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /secret [get]
func (h *Handlers) GetOwnSecret(c *gin.Context) {
	uid, okID := callerID(c)
	if !okID {
		return
	}
	s, err := h.secretSvc.GetOwn(c.Request.Context(), uid)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, s)
}

// SaveSecret godoc
// @ID          saveSecret
// @Summary     Save my secret
// @Description Replaces the caller's secret. Friends with an open secrets stream are notified.
// @Tags        Secrets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.SaveSecretRequest  true  "Secret text"
// @Success     200  {object}  domain.SecretMessage
// @Failure     400  {object}  handlers.ErrorResponse  "Empty or too long"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /secret [put]
func (h *Handlers) SaveSecret(c *gin.Context) {
	uid, okID := callerID(c)
	if !okID {
		return
	}
	var req SaveSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message required")
		return
	}
	s, err := h.secretSvc.Save(c.Request.Context(), uid, req.Message)
	if err != nil {
		failService(c, err, ErrCodeSaveFailed)
		return
	}
	ok(c, http.StatusOK, s)
}

// ListFriendSecrets godoc
// @ID          listFriendSecrets
// @Summary     Friends' secrets
// @Tags        Secrets
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.FriendSecretsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /secrets/friends [get]
func (h *Handlers) ListFriendSecrets(c *gin.Context) {
	uid, okID := callerID(c)
	if !okID {
		return
	}
	items, err := h.secretSvc.ListFriends(c.Request.Context(), uid)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []services.FriendSecret{}
	}
	ok(c, http.StatusOK, FriendSecretsResponse{Secrets: items})
}

// GetUserSecret godoc
// @ID          getUserSecret
// @Summary     A user's secret
// @Description Visible to the owner and accepted friends; everyone else gets 404.
// @Tags        Secrets
// @Produce     json
// @Security    BearerAuth
// @Param       userId  path  string  true  "Owner user id"
// @Success     200  {object}  domain.SecretMessage
// @Failure     404  {object}  handlers.ErrorResponse  "Not found or not visible"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /secrets/{userId} [get]
func (h *Handlers) GetUserSecret(c *gin.Context) {
	uid, okID := callerID(c)
	if !okID {
		return
	}
	s, err := h.secretSvc.GetFor(c.Request.Context(), uid, strings.TrimSpace(c.Param("userId")))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, s)
}
