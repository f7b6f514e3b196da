package http

// registerV1Routes sets up the v1 API structure
// Groups: /api/v1/core, /api/v1/runs, /api/v1/realtime
func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/api/v1")
	v1.Use(apiVersionMiddleware()) // Add X-API-Version: v1 header

	// Core endpoints - pairs and their range events
	core := v1.Group("/core")
	{
		core.GET("/pairs", s.handleV1ListPairs)
		core.GET("/pairs/:pair", s.handleV1GetPair)
		core.GET("/pairs/:pair/baselines", s.handleV1PairBaselines)
		core.GET("/pairs/:pair/stats", s.handleV1PairStats)
		core.GET("/pairs/:pair/estimates", s.handleV1PairEstimates)
	}

	// Run endpoints - processing history with pagination
	runs := v1.Group("/runs")
	{
		runs.GET("", s.handleV1ListRuns)
		runs.GET("/:id", s.handleV1GetRun)
		runs.GET("/:id/estimates", s.handleV1RunEstimates)
	}

	// Realtime endpoints - latest data
	realtime := v1.Group("/realtime")
	{
		realtime.GET("/latest", s.handleV1RealtimeLatest)
	}
}
