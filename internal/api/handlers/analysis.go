package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/videoqa/internal/analysis"
	"github.com/your-org/videoqa/pkg/dto"
)

type AnalysisHandler struct {
	submitter analysis.Submitter
	maxUpload int64
}

// NewAnalysisHandler builds the upload handler. maxUpload <= 0 disables the size limit.
func NewAnalysisHandler(submitter analysis.Submitter, maxUpload int64) *AnalysisHandler {
	return &AnalysisHandler{submitter: submitter, maxUpload: maxUpload}
}

// Analyze accepts a multipart "video" file and a "query" form field.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	fh, err := c.FormFile("video")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("video exceeds %d bytes", maxBytes.Limit)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "video file is required"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read video file"})
		return
	}
	defer f.Close()

	sub, err := h.submitter.Submit(c.Request.Context(), analysis.Upload{
		Body:        f,
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Query:       c.PostForm("query"),
	})
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			slog.Error("analyze video", "error", err, "status", status)
		} else {
			slog.Warn("analyze video rejected", "error", err, "status", status)
		}
		c.JSON(status, gin.H{"error": MessageFor(err)})
		return
	}

	resp := dto.SubmissionResponse{
		VideoID:    sub.VideoID,
		Query:      sub.Query,
		ResponseID: sub.ResponseID,
	}
	if sub.Queued {
		resp.Status = "queued"
		c.JSON(http.StatusAccepted, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
