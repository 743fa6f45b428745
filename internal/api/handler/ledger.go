package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mediaguard/backend/internal/identity"
	"mediaguard/backend/internal/ledger"
)

type createPostRequest struct {
	ContentHash    string `json:"content_hash" binding:"required"`
	VulgarityScore *int   `json:"vulgarity_score" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	p, err := h.Ledger.Register(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetUser(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	p, err := h.Ledger.GetUser(c.Request.Context(), addr)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participant": p, "state": p.State()})
}

func (h *Handler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "content_hash and vulgarity_score are required")
		return
	}
	id, err := h.Ledger.CreatePost(c.Request.Context(), callerFrom(c), req.ContentHash, *req.VulgarityScore)
	if err != nil {
		h.fail(c, err)
		return
	}
	post, err := h.Ledger.GetPost(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) GetPost(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "post id must be a non-negative integer")
		return
	}
	post, err := h.Ledger.GetPost(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) PostCount(c *gin.Context) {
	n, err := h.Ledger.PostCount(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *Handler) RequestUnblock(c *gin.Context) {
	if err := h.Ledger.RequestUnblock(c.Request.Context(), callerFrom(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "pending"})
}

func (h *Handler) AnalyzeAndUnblockUser(c *gin.Context) {
	target, ok := addressParam(c)
	if !ok {
		return
	}
	if err := h.Ledger.AnalyzeAndUnblockUser(c.Request.Context(), callerFrom(c), target); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unblocked"})
}

func (h *Handler) RejectUnblockRequest(c *gin.Context) {
	target, ok := addressParam(c)
	if !ok {
		return
	}
	if err := h.Ledger.RejectUnblockRequest(c.Request.Context(), callerFrom(c), target); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (h *Handler) PostsByAuthor(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	posts, err := h.Ledger.PostsByAuthor(c.Request.Context(), addr)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *Handler) ListBlocked(c *gin.Context) {
	list, err := h.Ledger.ListBlocked(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": list})
}

func (h *Handler) ListPendingUnblock(c *gin.Context) {
	list, err := h.Ledger.ListPendingUnblock(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": list})
}

func (h *Handler) Stats(c *gin.Context) {
	st, err := h.Ledger.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Dashboard takes an optional ?limit (default 5) for each recent list.
func (h *Handler) Dashboard(c *gin.Context) {
	limit := ledger.DefaultDashboardLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			badRequest(c, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	d, err := h.Ledger.Dashboard(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) GetTokenLink(c *gin.Context) {
	c.JSON(http.StatusOK, h.Ledger.TokenLink())
}

// requireOwner stops the chain unless the authenticated caller is the owner.
func (h *Handler) requireOwner(c *gin.Context) {
	if callerFrom(c) != h.Ledger.Owner() {
		h.fail(c, ledger.ErrNotOwner)
		return
	}
	c.Next()
}

func addressParam(c *gin.Context) (identity.Identity, bool) {
	addr, err := identity.Parse(c.Param("address"))
	if err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return addr, true
}
