package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) listQuotes(c *gin.Context) {
	quotes, err := s.marketdata.ListQuotes(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes})
}

func (s *Server) getQuote(c *gin.Context) {
	quote, err := s.marketdata.GetQuote(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (s *Server) getCandles(c *gin.Context) {
	interval := c.DefaultQuery("interval", "1h")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
		return
	}

	candles, err := s.marketdata.GetCandles(c.Request.Context(), c.Param("symbol"), interval, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candles": candles})
}
