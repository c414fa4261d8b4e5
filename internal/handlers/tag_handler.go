package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finwave/internal/errors"
	"finwave/internal/pagination"
	"finwave/internal/services"
)

// TagHandler handles tag requests.
type TagHandler struct {
	tagService services.TagServicer
}

// NewTagHandler creates a new TagHandler.
func NewTagHandler(tagService services.TagServicer) *TagHandler {
	return &TagHandler{tagService: tagService}
}

// CreateTagRequest represents the payload for creating a tag.
type CreateTagRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=100"`
	Color string `json:"color" binding:"omitempty,hex_color"`
}

// UpdateTagRequest represents the payload for updating a tag.
type UpdateTagRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=100"`
	Color *string `json:"color" binding:"omitempty,hex_color"`
}

// CreateTag creates a new tag.
func (h *TagHandler) CreateTag(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	tag, err := h.tagService.CreateTag(userID, req.Name, req.Color)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tag": tag})
}

// GetTags lists tags alphabetically.
func (h *TagHandler) GetTags(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	tags, err := h.tagService.GetTags(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// UpdateTag updates a tag.
func (h *TagHandler) UpdateTag(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tagID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	tag, err := h.tagService.UpdateTag(userID, tagID, req.Name, req.Color)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag})
}

// DeleteTag deletes a tag and strips it from transactions.
func (h *TagHandler) DeleteTag(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tagID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.tagService.DeleteTag(userID, tagID); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
