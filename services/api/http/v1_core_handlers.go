package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seafloor-geodesy/geosea/services/api/db"
)

// validPairID accepts "A-B" identifiers of two distinct stations.
func validPairID(id string) bool {
	a, b, ok := strings.Cut(id, "-")
	return ok && a != "" && b != "" && a != b && !strings.Contains(b, "-")
}

// handleV1ListPairs returns all processed pairs
// GET /api/v1/core/pairs
func (s *Server) handleV1ListPairs(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	pairs, err := s.store.ListPairs(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	failed := 0
	for _, p := range pairs {
		if p.Error != nil {
			failed++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": pairs,
		"meta": gin.H{
			"count":  len(pairs),
			"failed": failed,
		},
	})
}

// handleV1GetPair returns details for a specific pair
// GET /api/v1/core/pairs/:pair
func (s *Server) handleV1GetPair(c *gin.Context) {
	pairID := c.Param("pair")
	if !validPairID(pairID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pair must look like A-B"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	pair, err := s.store.GetPair(ctx, pairID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if pair == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "pair not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": pair,
	})
}

// handleV1PairBaselines returns the range events of a pair
// GET /api/v1/core/pairs/:pair/baselines?last_n=100&start=2016-01-01&end=2016-02-01
func (s *Server) handleV1PairBaselines(c *gin.Context) {
	pairID := c.Param("pair")
	if !validPairID(pairID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pair must look like A-B"})
		return
	}

	limit, err := s.limitParam(c, "last_n", s.cfg.DefaultLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	since, until, err := timeRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	baselines, err := s.store.FetchBaselines(ctx, db.BaselineQuery{
		PairID: pairID,
		Limit:  limit,
		Since:  since,
		Until:  until,
		Latest: c.Query("last_n") != "" && since == nil,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": baselines,
		"meta": gin.H{
			"pair_id": pairID,
			"count":   len(baselines),
			"limit":   limit,
		},
	})
}

// handleV1PairStats returns aggregate baseline statistics of a pair
// GET /api/v1/core/pairs/:pair/stats
func (s *Server) handleV1PairStats(c *gin.Context) {
	pairID := c.Param("pair")
	if !validPairID(pairID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pair must look like A-B"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	stats, err := s.store.GetBaselineStats(ctx, pairID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if stats.Count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no baselines for pair"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// handleV1PairEstimates returns the stored constant-baseline estimates of a pair
// GET /api/v1/core/pairs/:pair/estimates?limit=10
func (s *Server) handleV1PairEstimates(c *gin.Context) {
	pairID := c.Param("pair")
	if !validPairID(pairID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pair must look like A-B"})
		return
	}

	limit, err := s.limitParam(c, "limit", s.cfg.DefaultLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	estimates, err := s.store.ListEstimates(ctx, db.EstimateQuery{PairID: pairID, Limit: limit})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": estimates,
		"meta": gin.H{
			"pair_id": pairID,
			"count":   len(estimates),
		},
	})
}
