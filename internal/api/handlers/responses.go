package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/videoqa/internal/storage"
	"github.com/your-org/videoqa/pkg/dto"
)

type ResponseHandler struct {
	store storage.ResponseStore
}

func NewResponseHandler(store storage.ResponseStore) *ResponseHandler {
	return &ResponseHandler{store: store}
}

// Get returns one stored answer by ?response_id=.
func (h *ResponseHandler) Get(c *gin.Context) {
	responseID := c.Query("response_id")
	if responseID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "response_id is required"})
		return
	}

	rec, err := h.store.GetByResponseID(c.Request.Context(), responseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Response not found"})
		return
	}

	c.JSON(http.StatusOK, dto.AIResponseFrom(rec))
}

// ListByVideo returns a video's answers, oldest first.
func (h *ResponseHandler) ListByVideo(c *gin.Context) {
	videoID := c.Param("video_id")

	recs, err := h.store.GetByVideoID(c.Request.Context(), videoID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.VideoResponsesFrom(videoID, recs))
}
