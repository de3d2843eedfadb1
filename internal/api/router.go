package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"invoicedesk/internal/api/handlers"
	"invoicedesk/internal/api/middleware"
	"invoicedesk/internal/config"
	"invoicedesk/internal/logging"
	"invoicedesk/internal/services"
)

// Dependencies are the handles the HTTP layer needs. All are created by the caller.
type Dependencies struct {
	Config         *config.Config
	InvoiceService services.IInvoiceService
	UploadService  services.IUploadService
	Extractor      handlers.IExtractor
	// ExtractLimiter guards POST /api/extract. Nil disables the quota.
	ExtractLimiter middleware.Limiter
	HealthChecks   map[string]handlers.HealthCheck
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()

	// Apply global middleware first (order matters)
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLog(logging.L()))
	r.Use(middleware.CORSMiddleware(deps.Config.AllowedOrigin))

	invoiceHandler := handlers.NewRestInvoiceHandler(deps.InvoiceService)
	uploadHandler := handlers.NewRestUploadHandler(deps.UploadService)
	extractHandler := handlers.NewRestExtractHandler(deps.Extractor)
	healthHandler := handlers.NewRestHealthHandler(deps.HealthChecks)

	api := r.Group("/api")
	{
		api.GET("/health", healthHandler.Health)

		api.POST("/upload", uploadHandler.Upload)
		api.GET("/upload/:fileId", uploadHandler.Download)
		api.GET("/upload/:fileId/info", uploadHandler.Info)
		api.DELETE("/upload/:fileId", uploadHandler.Delete)

		extractChain := []gin.HandlerFunc{}
		if deps.ExtractLimiter != nil {
			extractChain = append(extractChain, middleware.RateLimit(deps.ExtractLimiter))
		}
		api.POST("/extract", append(extractChain, extractHandler.Extract)...)

		api.GET("/invoices", invoiceHandler.ListInvoices)
		api.GET("/invoices/export", invoiceHandler.ExportInvoices)
		api.GET("/invoices/:id", invoiceHandler.GetInvoice)
		api.POST("/invoices", invoiceHandler.CreateInvoice)
		api.PUT("/invoices/:id", invoiceHandler.UpdateInvoice)
		api.DELETE("/invoices/:id", invoiceHandler.DeleteInvoice)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Route not found", "details": c.Request.URL.Path})
	})
	return r
}
