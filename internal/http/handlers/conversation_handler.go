// Conversation HTTP handlers.
//
//   - GET  /conversations/{friendId}/messages   (paginated, oldest first, ETag)
//   - POST /conversations/{friendId}/messages   (send, Idempotency-Key aware)
//   - POST /conversations/{friendId}/read       (best-effort read cursor)
//
// Only accepted friends may read or write a conversation; anyone else gets
// 404.
//
// Idempotency:
// When the validator found a stored result for (caller, conversation, key),
// the recorded message is returned with 200 and Idempotency-Replayed: true
// instead of sending again.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-social-chat/internal/domain"
	"github.com/tbourn/go-social-chat/internal/http/middleware"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for sending a direct message.
// Content is trimmed and normalized by the service and must be non-empty.
type PostMessageRequest struct {
	Content string `json:"content" binding:"required" example:"see you at eight"`
}

// PostMessageResponse wraps the stored message.
type PostMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse contains a page of messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

//
// Handlers
//

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages with a friend
// @Description Returns a page of the conversation, oldest first. Supports weak ETag via If-None-Match.
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
//
// @Param       friendId       path    string  true   "Friend user id"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
//
// @Success     200  {object}  handlers.ListMessagesResponse
// @Success     304  {string}  string  "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse  "Not a friend"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations/{friendId}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	uid, okID := callerID(c)
	if !okID {
		return
	}
	ctx := c.Request.Context()
	friendID := strings.TrimSpace(c.Param("friendId"))

	if err := h.msgSvc.EnsureFriends(ctx, uid, friendID); err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}

	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, newest, err := h.msgSvc.Stats(ctx, uid, friendID); err == nil {
		if notModified(c, weakETag("messages", uid, friendID, page, pageSize, count, unixOrZero(newest))) {
			return
		}
	}

	items, total, err := h.msgSvc.ListPage(ctx, uid, friendID, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a message to a friend
// @Description Stores a direct message. Supports idempotency via the Idempotency-Key header (same key, same conversation, same result).
// @Tags        Conversations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       friendId         path    string  true   "Friend user id"
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries (UUID recommended)"
// @Param       body             body    handlers.PostMessageRequest  true  "Message payload"
//
// @Success     201  {object}  handlers.PostMessageResponse  "Stored message"
// @Success     200  {object}  handlers.PostMessageResponse  "Replayed message"
// @Failure     400  {object}  handlers.ErrorResponse  "Empty or too long"
// @Failure     404  {object}  handlers.ErrorResponse  "Not a friend"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations/{friendId}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	uid, okID := callerID(c)
	if !okID {
		return
	}
	ctx := c.Request.Context()
	friendID := strings.TrimSpace(c.Param("friendId"))
	idemKey, _ := middleware.GetIdempotencyKey(c)
	scope := middleware.GetIdempotencyScope(c)

	// Replay path.
	if middleware.IsReplay(c) && h.idem != nil {
		if rec, err := h.idem.Lookup(ctx, uid, scope, idemKey, nowUTC()); err == nil && rec != nil {
			if prev, err := h.msgSvc.Get(ctx, rec.ResourceID); err == nil {
				replayed(c, PostMessageResponse{Message: prev})
				return
			}
		}
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	m, err := h.msgSvc.Send(ctx, uid, friendID, req.Content)
	if err != nil {
		failService(c, err, ErrCodeSendFailed)
		return
	}

	// Store path (best effort).
	if idemKey != "" && h.idem != nil {
		if err := h.idem.Remember(ctx, uid, scope, idemKey, m.ID, http.StatusCreated); err != nil {
			middleware.LoggerFrom(c).Debug().Err(err).Msg("idempotency record not stored")
		}
	}

	ok(c, http.StatusCreated, PostMessageResponse{Message: m})
}

// MarkRead godoc
// @ID          markConversationRead
// @Summary     Mark a conversation read
// @Description Records that the caller opened the conversation. Always 204; failures are only logged.
// @Tags        Conversations
// @Security    BearerAuth
// @Param       friendId  path  string  true  "Friend user id"
// @Success     204  {string}  string  "No Content"
// @Router      /conversations/{friendId}/read [post]
func (h *Handlers) MarkRead(c *gin.Context) {
	uid, okID := callerID(c)
	if !okID {
		return
	}
	if friendID := strings.TrimSpace(c.Param("friendId")); friendID != "" {
		h.readSvc.MarkRead(c.Request.Context(), uid, friendID)
	}
	noContent(c)
}
