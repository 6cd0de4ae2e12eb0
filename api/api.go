package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"restrobook/api/handler"
	"restrobook/config"
	"restrobook/pkg/logger"
	"restrobook/pkg/metrics"
	"restrobook/pkg/models"
	"restrobook/service"
)

func New(services service.IServiceManager, store handler.Pinger, m *metrics.Registry, cfg config.Config, log logger.ILogger) *gin.Engine {
	if cfg.LoggerLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	h := handler.New(services, store, m, cfg, log)

	r.Use(gin.Recovery())
	r.Use(h.RequestLog())
	if cfg.PublicURL != "" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{cfg.PublicURL},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api")
	api.POST("/auth/login", h.Login)

	public := api.Group("", h.Device())
	{
		public.GET("/menu", h.ListMenu)
		public.GET("/menu/categories", h.ListCategories)

		public.GET("/tables/:table/session", h.GetSession)
		public.GET("/tables/:table/stream", h.TableStream)
		public.POST("/tables/:table/orders", h.PlaceOrder)

		public.GET("/orders/:id", h.GetOrder)
		public.GET("/orders/:id/stream", h.OrderStream)
		public.POST("/orders/:id/suggestions", h.Suggest)
		public.POST("/orders/:id/suggestions/accept", h.AcceptSuggestion)
		public.POST("/orders/:id/suggestions/dismiss", h.DismissSuggestion)
	}

	staff := api.Group("", h.RequireRole(models.RoleStaff, models.RoleAdmin))
	{
		staff.GET("/kitchen/orders", h.KitchenOrders)
		staff.GET("/kitchen/stream", h.KitchenStream)
		staff.GET("/staff/orders", h.StaffOrders)
		staff.POST("/orders/:id/advance", h.AdvanceOrder)
		staff.POST("/orders/:id/serve", h.ServeOrder)
		staff.POST("/orders/:id/cancel", h.CancelOrder)
	}

	admin := api.Group("/admin", h.RequireRole(models.RoleAdmin))
	{
		admin.POST("/menu", h.CreateMenuItem)
		admin.DELETE("/menu/:id", h.DeleteMenuItem)
		admin.PATCH("/menu/:id/stock", h.SetStock)
		admin.POST("/menu/seed", h.SeedMenu)
		admin.POST("/images", h.UploadImage)

		admin.GET("/settings", h.GetSettings)
		admin.PUT("/settings", h.PutSettings)
		admin.GET("/tables/:n/qr.png", h.TableQR)

		admin.POST("/users", h.CreateUser)
		admin.GET("/sales.csv", h.SalesCSV)
		admin.POST("/sales/email", h.SalesEmail)
	}

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, engine *gin.Engine, port int, log logger.ILogger) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		// Streams end with the server context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", logger.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
