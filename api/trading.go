package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atlasfin/atlasbank/pkg/models"
)

func (s *Server) placeOrder(c *gin.Context) {
	var req models.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := s.trading.PlaceOrder(c.Request.Context(), c.GetString("userID"), &req)
	if err != nil {
		// a rejected order is persisted; return it with the reason
		if order != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "order": order})
			return
		}
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (s *Server) getOrder(c *gin.Context) {
	order, err := s.trading.GetOrder(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) listOrders(c *gin.Context) {
	var filter models.OrderFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orders, err := s.trading.ListOrders(c.Request.Context(), c.GetString("userID"), &filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) cancelOrder(c *gin.Context) {
	order, err := s.trading.CancelOrder(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) listPositions(c *gin.Context) {
	positions, err := s.trading.ListPositions(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (s *Server) listTrades(c *gin.Context) {
	trades, err := s.trading.ListTrades(c.Request.Context(), c.GetString("userID"), 100)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) riskReport(c *gin.Context) {
	report, err := s.trading.RiskReport(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
