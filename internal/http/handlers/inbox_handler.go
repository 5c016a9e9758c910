// Inbox HTTP handler.
//
//   - GET /inbox   (one entry per accepted friend, most recent activity first)
//
// The weak ETag covers every friendship and message involving the caller, so
// any new request, answer or message invalidates it.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-social-chat/internal/inbox"
)

// InboxResponse wraps the caller's inbox entries.
type InboxResponse struct {
	Entries []inbox.Entry `json:"entries"`
}

// GetInbox godoc
// @ID          getInbox
// @Summary     Inbox
// @Description Returns one entry per accepted friend with the latest message preview and an unread flag.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Inbox
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
//
// @Success     200  {object}  handlers.InboxResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /inbox [get]
func (h *Handlers) GetInbox(c *gin.Context) {
	uid, okID := callerID(c)
	if !okID {
		return
	}
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	if st, err := h.inboxSvc.Stats(ctx, uid); err == nil {
		etag := weakETag("inbox", uid, st.Friendships, unixOrZero(st.FriendshipsAt), st.Messages, unixOrZero(st.MessagesAt))
		if notModified(c, etag) {
			return
		}
	}

	entries, err := h.inboxSvc.Entries(ctx, uid)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	if entries == nil {
		entries = []inbox.Entry{}
	}
	ok(c, http.StatusOK, InboxResponse{Entries: entries})
}
