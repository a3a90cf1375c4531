package httpserver

import (
	"net/http"

	menurepo "cafepos/internal/repository/menu"
	tablerepo "cafepos/internal/repository/table"
	ordersvc "cafepos/internal/service/order"

	"github.com/gin-gonic/gin"
)

func listTablesHandler(repo tablerepo.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		tables, err := repo.List(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tables": tables})
	}
}

func tableOrdersHandler(svc *ordersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svc.OpenOrders(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
	}
}

func payTableHandler(svc *ordersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svc.PayTable(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
	}
}

type transferRequest struct {
	TargetTableID string `json:"targetTableId" binding:"required"`
}

func transferHandler(svc *ordersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "targetTableId required"})
			return
		}
		orders, err := svc.Transfer(c.Request.Context(), c.Param("id"), req.TargetTableID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
	}
}

func listMenuHandler(repo menurepo.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := repo.ListItems(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}
