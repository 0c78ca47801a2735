package httptransport

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/tempvortex/internal/export"
	"github.com/nhle/tempvortex/internal/model"
	"github.com/nhle/tempvortex/internal/provider"
	"github.com/nhle/tempvortex/internal/session"
)

type sessionResponse struct {
	Account      *model.Account        `json:"account"`
	Provider     model.ProviderID      `json:"provider"`
	ProviderName string                `json:"providerName"`
	Capabilities provider.Capabilities `json:"capabilities"`
}

type createSessionRequest struct {
	Provider string `json:"provider"`
	Login    string `json:"login"`
}

type providerResponse struct {
	ID           model.ProviderID      `json:"id"`
	Name         string                `json:"name"`
	Capabilities provider.Capabilities `json:"capabilities"`
}

func (h *Handler) sessionView() sessionResponse {
	id := h.session.Provider()
	caps, _ := h.session.Capabilities(id)
	return sessionResponse{
		Account:      h.session.Current(),
		Provider:     id,
		ProviderName: id.DisplayName(),
		Capabilities: caps,
	}
}

func (h *Handler) getSession(c *gin.Context) {
	ok(c, h.sessionView())
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	id := h.session.Provider()
	if req.Provider != "" {
		id = model.ProviderID(req.Provider)
		if !id.Valid() {
			badRequest(c, fmt.Sprintf("unknown provider %q", req.Provider))
			return
		}
	}

	if _, err := h.session.CreateAccount(c.Request.Context(), id, req.Login); err != nil {
		fail(c, err)
		return
	}
	created(c, h.sessionView())
}

func (h *Handler) switchProvider(c *gin.Context) {
	if _, err := h.session.SwitchProvider(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	created(c, h.sessionView())
}

func (h *Handler) recoveryLink(c *gin.Context) {
	base := c.Query("base")
	if base == "" {
		base = h.recoveryBase
	}
	link, err := h.session.RecoveryURL(base)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"url": link})
}

// recoverSession activates the account in the query and redirects to
// the same path with the recovery parameters removed.
func (h *Handler) recoverSession(c *gin.Context) {
	target := *c.Request.URL
	values := target.Query()
	session.StripRecovery(&target)
	target.Path = "/"

	if _, err := h.session.Recover(c.Request.Context(), values); err != nil &&
		!errors.Is(err, session.ErrNoRecovery) {
		h.logger.Warn("ignoring recovery link", zap.Error(err))
	}

	c.Redirect(http.StatusFound, (&url.URL{Path: target.Path, RawQuery: target.RawQuery}).String())
}

func (h *Handler) listProviders(c *gin.Context) {
	ids := h.registry.IDs()
	out := make([]providerResponse, 0, len(ids))
	for _, id := range ids {
		p, err := h.registry.Lookup(id)
		if err != nil {
			continue
		}
		out = append(out, providerResponse{
			ID:           id,
			Name:         id.DisplayName(),
			Capabilities: p.Capabilities(),
		})
	}
	ok(c, out)
}

func (h *Handler) listDomains(c *gin.Context) {
	p, err := h.registry.Lookup(model.ProviderID(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusNotFound, Response{Error: &ErrorResponse{Message: err.Error()}})
		return
	}
	ok(c, p.Domains(c.Request.Context()))
}

func (h *Handler) listMessages(c *gin.Context) {
	msgs := h.sync.Messages()
	if msgs == nil {
		msgs = []model.Message{}
	}
	ok(c, msgs)
}

func (h *Handler) refresh(c *gin.Context) {
	h.sync.Refresh()
	c.JSON(http.StatusAccepted, Response{Data: gin.H{"refreshing": true}})
}

func (h *Handler) getMessage(c *gin.Context) {
	sel, err := h.sync.Select(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, sel)
}

func (h *Handler) deleteMessage(c *gin.Context) {
	if err := h.sync.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) downloadAttachment(c *gin.Context) {
	dl, err := h.sync.DownloadAttachment(c.Request.Context(), c.Param("id"), c.Param("attachmentId"))
	if err != nil {
		fail(c, err)
		return
	}

	if dl.Remote() {
		c.Redirect(http.StatusFound, dl.URL)
		return
	}

	name := dl.Filename
	if name == "" {
		name = uuid.NewString()
	}
	contentType := dl.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType, dl.Data)
}

// exportMessage renders the message as an .eml file. Attachments the
// provider only serves by URL are left out.
func (h *Handler) exportMessage(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	sel, err := h.sync.Select(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}

	var files []export.File
	for _, att := range sel.Message.Content.Attachments {
		dl, err := h.sync.DownloadAttachment(ctx, id, att.ID)
		if err != nil {
			h.logger.Debug("skipping attachment in export",
				zap.String("message_id", id),
				zap.String("filename", att.Filename),
				zap.Error(err),
			)
			continue
		}
		if dl.Remote() {
			continue
		}
		files = append(files, export.File{Attachment: att, Data: dl.Data})
	}

	to := ""
	if acct := h.sync.Account(); acct != nil {
		to = acct.Address
	}

	var buf bytes.Buffer
	if err := export.WriteEML(&buf, to, sel.Message, files); err != nil {
		fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", uuid.NewString()+".eml"))
	c.Data(http.StatusOK, "message/rfc822", buf.Bytes())
}
