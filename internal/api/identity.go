package api

import (
	"net/http"

	"tnf-api/internal/service"

	"github.com/gin-gonic/gin"
)

// register handles account creation
func (h *Handler) register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	session, err := h.identity.Register(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// login handles credential login
func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	session, err := h.identity.Login(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// refresh exchanges a refresh token for a new pair
func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	session, err := h.identity.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	profile, err := h.identity.Me(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) userProfile(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	profile, err := h.identity.Profile(c.Request.Context(), id, viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) followers(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	users, err := h.identity.Followers(c.Request.Context(), id, viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) followings(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	users, err := h.identity.Followings(c.Request.Context(), id, viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) followUser(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	target, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.social.FollowUser(c.Request.Context(), userID, target); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"following": true})
}

func (h *Handler) unfollowUser(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	target, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.social.UnfollowUser(c.Request.Context(), userID, target); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": false})
}
