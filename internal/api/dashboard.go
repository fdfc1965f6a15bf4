package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	xerrors "EnvioScout/internal/errors"
)

func (s *Server) dashboardStats(c *gin.Context) {
	chain := c.Param("chain")
	snapshot, err := s.stats.Stats(c.Request.Context(), chain)
	if err != nil {
		s.log.Warn("仪表盘统计失败",
			slog.String("chain", chain),
			slog.String("request_id", c.GetString(ctxRequestID)),
			slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   xerrors.PublicMessage(err),
			"blocks":  []any{},
		})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
