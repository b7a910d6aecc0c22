package api

import (
	"net/http"

	"tnf-api/internal/service"

	"github.com/gin-gonic/gin"
)

// feed handles the paged video feed, newest first
func (h *Handler) feed(c *gin.Context) {
	videos, err := h.social.Feed(c.Request.Context(), viewerID(c), intQuery(c, "page", 1), intQuery(c, "limit", 0))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos})
}

// createVideo records an uploaded video and its tagged products
func (h *Handler) createVideo(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.CreateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	video, err := h.social.CreateVideo(c.Request.Context(), userID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, video)
}

func (h *Handler) getVideo(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	video, err := h.social.GetVideo(c.Request.Context(), id, viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

func (h *Handler) userVideos(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	videos, err := h.social.UserVideos(c.Request.Context(), id, viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos})
}

func (h *Handler) deleteVideo(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.social.DeleteVideo(c.Request.Context(), userID, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) likeVideo(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.social.LikeVideo(c.Request.Context(), userID, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"liked": true})
}

func (h *Handler) unlikeVideo(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.social.UnlikeVideo(c.Request.Context(), userID, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": false})
}

func (h *Handler) listComments(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	comments, err := h.social.Comments(c.Request.Context(), id, intQuery(c, "page", 1), intQuery(c, "limit", 0))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

type commentRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *Handler) addComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	comment, err := h.social.AddComment(c.Request.Context(), userID, id, req.Text)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) deleteComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.social.DeleteComment(c.Request.Context(), userID, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type reportRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) reportVideo(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	report, err := h.social.ReportVideo(c.Request.Context(), userID, id, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}
