package httpserver

import (
	"context"
	"log"
	"net/http"
	"time"

	menurepo "cafepos/internal/repository/menu"
	tablerepo "cafepos/internal/repository/table"
	ordersvc "cafepos/internal/service/order"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Deps carries the wired services and read-side repositories the routes
// need.
type Deps struct {
	OrderSvc  *ordersvc.Service
	MenuRepo  menurepo.Repository
	TableRepo tablerepo.Repository
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	api := router.Group("/api/v1")
	{
		api.POST("/orders", createOrderHandler(deps.OrderSvc))
		api.GET("/orders/:id", getOrderHandler(deps.OrderSvc))
		api.DELETE("/orders/:id", cancelOrderHandler(deps.OrderSvc))
		api.POST("/orders/:id/items", appendOrderHandler(deps.OrderSvc))
		api.POST("/orders/:id/pay", payOrderHandler(deps.OrderSvc))
		api.POST("/orders/:id/units/:index/pay", payUnitHandler(deps.OrderSvc))
		api.DELETE("/orders/:id/units/:index", deleteUnitHandler(deps.OrderSvc))

		api.GET("/menu", listMenuHandler(deps.MenuRepo))

		api.GET("/tables", listTablesHandler(deps.TableRepo))
		api.GET("/tables/:id/orders", tableOrdersHandler(deps.OrderSvc))
		api.POST("/tables/:id/pay", payTableHandler(deps.OrderSvc))
		api.POST("/tables/:id/transfer", transferHandler(deps.OrderSvc))
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func readyHandler(db *pgxpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "db not configured"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "db not reachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
