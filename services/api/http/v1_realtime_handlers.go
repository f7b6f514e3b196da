package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleV1RealtimeLatest returns the latest processing run with the pairs it updated
// GET /api/v1/realtime/latest
func (s *Server) handleV1RealtimeLatest(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	run, err := s.store.LatestRun(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no processing run available"})
		return
	}

	pairs, err := s.store.ListPairs(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	runID := run.ID.String()
	updated := pairs[:0]
	for _, p := range pairs {
		if p.LastRunID != nil && *p.LastRunID == runID {
			updated = append(updated, p)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"run":   run,
			"pairs": updated,
		},
		"meta": gin.H{
			"started_at":   run.StartedAt.Format(time.RFC3339),
			"pairs_count":  len(updated),
			"generated_at": time.Now().UTC().Format(time.RFC3339),
		},
	})
}
