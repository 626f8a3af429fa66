package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1")
	tickets := api.Group("/tickets")
	tickets.POST("", s.acquireTicket)
	tickets.GET("/cache", s.getCacheStatus)
	tickets.DELETE("/cache", s.invalidateCache)
	tickets.PUT("/cache/enabled", s.setCachingEnabled)
}
