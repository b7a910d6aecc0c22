package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// listProducts handles the paged product list
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context(), viewerID(c), intQuery(c, "page", 1))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getProduct accepts a local id or a commerce product id
func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.GetByID(c.Request.Context(), c.Param("id"), viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) trending(c *gin.Context) {
	products, err := h.catalog.Trending(c.Request.Context(), intQuery(c, "limit", 10))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) listBrands(c *gin.Context) {
	brands, err := h.catalog.Brands(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brands": brands})
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *Handler) listFavorites(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	products, err := h.catalog.Favorites(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) addFavorite(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.social.AddFavorite(c.Request.Context(), userID, c.Param("productId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"favorite": true})
}

func (h *Handler) removeFavorite(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.social.RemoveFavorite(c.Request.Context(), userID, c.Param("productId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorite": false})
}

func (h *Handler) recentlyViewed(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	products, err := h.catalog.RecentlyViewed(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) followedBrands(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	brands, err := h.social.FollowedBrands(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brands": brands})
}

// followBrand takes the commerce brand id
func (h *Handler) followBrand(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.social.FollowBrand(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"following": true})
}

func (h *Handler) unfollowBrand(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.social.UnfollowBrand(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": false})
}

// searchAll handles ?q=&category=
func (h *Handler) searchAll(c *gin.Context) {
	results, err := h.search.Search(c.Request.Context(), c.Query("q"), c.Query("category"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
