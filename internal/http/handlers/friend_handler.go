// Friend HTTP handlers.
//
// This file exposes the friend-request lifecycle:
//   - POST /friends/send     (request by receiver id or email)
//   - POST /friends/accept   (receiver only)
//   - POST /friends/reject   (receiver only)
//   - GET  /friends/pending  (incoming pending requests with sender profiles)
//   - GET  /friends          (every relationship of the caller)
//
// Body fields naming a user (senderId, receiverId, userId) are required and
// must name the caller.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/services"
)

//
// DTOs
//

// SendFriendRequest is the payload of POST /friends/send. Exactly one of
// ReceiverID and ReceiverEmail is used; ReceiverID wins when both are set.
type SendFriendRequest struct {
	SenderID      string `json:"senderId"      example:"alice"`
	ReceiverID    string `json:"receiverId"    example:"bob"`
	ReceiverEmail string `json:"receiverEmail" example:"bob@example.com"`
}

// AnswerFriendRequest is the payload of accept and reject.
type AnswerFriendRequest struct {
	RequestID  string `json:"requestId"  example:"5b0f7c1e-8a0f-4bb3-9d0e-6b8a1a0b2c3d"`
	ReceiverID string `json:"receiverId" example:"bob"`
}

// FriendshipResult wraps a single relationship row.
type FriendshipResult struct {
	Success bool               `json:"success" example:"true"`
	Result  *domain.Friendship `json:"result"`
}

// PendingResponse lists incoming pending requests.
type PendingResponse struct {
	Requests []services.PendingRequest `json:"requests"`
}

// FriendsResponse lists relationships from the caller's point of view.
type FriendsResponse struct {
	Friends []services.FriendshipView `json:"friends"`
}

//
// Handlers
//

// SendFriendRequest godoc
// @ID          sendFriendRequest
// @Summary     Send a friend request
// @Description Creates a pending request from the caller to a user given by id or email.
// @Description Any existing row for the same (sender, receiver) pair blocks a new request.
// @Tags        Friends
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.SendFriendRequest  true  "Sender plus receiver id or email"
//
// @Success     200  {object}  handlers.FriendshipResult
// @Failure     400  {object}  handlers.ErrorResponse  "Missing fields or self request"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown email"
// @Failure     409  {object}  handlers.ErrorResponse  "Request already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /friends/send [post]
func (h *Handlers) SendFriendRequest(c *gin.Context) {
	var req SendFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	uid, okID := actingAs(c, "senderId", strings.TrimSpace(req.SenderID), "sender not found")
	if !okID {
		return
	}

	ctx := c.Request.Context()
	receiver := strings.TrimSpace(req.ReceiverID)
	email := strings.TrimSpace(req.ReceiverEmail)

	var (
		f   *domain.Friendship
		err error
	)
	switch {
	case receiver != "":
		f, err = h.friendSvc.Send(ctx, uid, receiver)
	case email != "":
		f, err = h.friendSvc.SendByEmail(ctx, uid, email)
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "receiverId or receiverEmail required")
		return
	}
	if err != nil {
		failService(c, err, ErrCodeSendFailed)
		return
	}
	ok(c, http.StatusOK, FriendshipResult{Success: true, Result: f})
}

// AcceptFriendRequest godoc
// @ID          acceptFriendRequest
// @Summary     Accept a friend request
// @Description Moves a pending request addressed to the caller to accepted.
// @Tags        Friends
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.AnswerFriendRequest  true  "Request id and receiver"
//
// @Success     200  {object}  handlers.FriendshipResult
// @Failure     400  {object}  handlers.ErrorResponse  "Missing fields"
// @Failure     404  {object}  handlers.ErrorResponse  "Request not found or unauthorized"
// @Failure     409  {object}  handlers.ErrorResponse  "Request is not pending"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /friends/accept [post]
func (h *Handlers) AcceptFriendRequest(c *gin.Context) {
	h.answerFriendRequest(c, h.friendSvc.Accept)
}

// RejectFriendRequest godoc
// @ID          rejectFriendRequest
// @Summary     Reject a friend request
// @Description Moves a pending request addressed to the caller to rejected.
// @Tags        Friends
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.AnswerFriendRequest  true  "Request id and receiver"
//
// @Success     200  {object}  handlers.FriendshipResult
// @Failure     400  {object}  handlers.ErrorResponse  "Missing fields"
// @Failure     404  {object}  handlers.ErrorResponse  "Request not found or unauthorized"
// @Failure     409  {object}  handlers.ErrorResponse  "Request is not pending"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /friends/reject [post]
func (h *Handlers) RejectFriendRequest(c *gin.Context) {
	h.answerFriendRequest(c, h.friendSvc.Reject)
}

func (h *Handlers) answerFriendRequest(c *gin.Context, answer func(ctx context.Context, requestID, receiverID string) (*domain.Friendship, error)) {
	var req AnswerFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	uid, okID := actingAs(c, "receiverId", strings.TrimSpace(req.ReceiverID), services.ErrRequestNotFound.Error())
	if !okID {
		return
	}
	reqID := strings.TrimSpace(req.RequestID)
	if reqID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "requestId required")
		return
	}

	f, err := answer(c.Request.Context(), reqID, uid)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, FriendshipResult{Success: true, Result: f})
}

// ListPendingRequests godoc
// @ID          listPendingRequests
// @Summary     List incoming pending requests
// @Description Returns pending requests addressed to the caller, newest first, each with the sender's profile when one exists.
// @Tags        Friends
// @Produce     json
// @Security    BearerAuth
//
// @Param       userId  query  string  true  "Must equal the caller"
//
// @Success     200  {object}  handlers.PendingResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing userId"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "userId is not the caller"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /friends/pending [get]
func (h *Handlers) ListPendingRequests(c *gin.Context) {
	uid, okID := actingAs(c, "userId", strings.TrimSpace(c.Query("userId")), services.ErrUserNotFound.Error())
	if !okID {
		return
	}
	items, err := h.friendSvc.Pending(c.Request.Context(), uid)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []services.PendingRequest{}
	}
	ok(c, http.StatusOK, PendingResponse{Requests: items})
}

// ListFriends godoc
// @ID          listFriends
// @Summary     List relationships
// @Description Returns every relationship of the caller (any status) with the counterpart's profile.
// @Tags        Friends
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  handlers.FriendsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /friends [get]
func (h *Handlers) ListFriends(c *gin.Context) {
	uid, okID := callerID(c)
	if !okID {
		return
	}
	items, err := h.friendSvc.List(c.Request.Context(), uid)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []services.FriendshipView{}
	}
	ok(c, http.StatusOK, FriendsResponse{Friends: items})
}
