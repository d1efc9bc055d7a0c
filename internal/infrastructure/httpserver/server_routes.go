package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	// Authenticated by its HMAC envelope signature, not a service token.
	s.echo.POST("/webhook", s.handleWebhook)

	api := s.echo.Group("/api/v1")
	api.Use(s.middleware.ServiceAuth.RequireServiceToken())

	api.POST("/limits/check", s.checkRateLimit)
	api.POST("/usage", s.recordUsage)
	api.GET("/accounts/:id/usage", s.getUsage)
	api.GET("/payments/:id", s.getPayment)
	api.GET("/audit/events", s.getAuditEntries)
}
