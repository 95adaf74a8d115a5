package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type analyzeRequest struct {
	VideoURL string `json:"videoUrl"`
	ReportID string `json:"reportId"`
}

// AnalyzeEvidence classifies a report video and stores the result when reportId is set.
func (h *Handler) AnalyzeEvidence(c *gin.Context) {
	var body analyzeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	res, err := h.Analyzer.Analyze(c.Request.Context(), body.VideoURL, body.ReportID)
	if err != nil {
		c.AbortWithStatusJSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analysis": res})
}
