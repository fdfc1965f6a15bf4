package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"EnvioScout/internal/agent"
	xerrors "EnvioScout/internal/errors"
)

const (
	msgMessageRequired = "Message is required and must be a string"
	msgProcessFailed   = "Failed to process message"
	defaultHistorySize = 50
)

type messageRequest struct {
	Message any    `json:"message"`
	ID      string `json:"id,omitempty"`
}

type chatResponse struct {
	Success bool `json:"success"`
	*agent.ChatResult
}

// bindMessage 只接受非空字符串，数字或对象一律视为缺失。
func bindMessage(c *gin.Context) (messageRequest, string, bool) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return req, "", false
	}
	message, ok := req.Message.(string)
	if !ok || strings.TrimSpace(message) == "" {
		return req, "", false
	}
	return req, message, true
}

func (s *Server) postMessage(c *gin.Context) {
	_, message, ok := bindMessage(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msgMessageRequired})
		return
	}

	result, err := s.chat.Chat(c.Request.Context(), message)
	if err != nil {
		s.log.Error("对话接口处理失败",
			slog.String("request_id", c.GetString(ctxRequestID)),
			slog.String("error_code", string(xerrors.CodeOf(err))),
			slog.Any("error", err))
		response := xerrors.PublicMessage(err)
		if result != nil && result.Response != "" {
			response = result.Response
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     msgProcessFailed,
			"response":  response,
			"timestamp": s.timestamp(),
		})
		return
	}
	c.JSON(http.StatusOK, chatResponse{Success: true, ChatResult: result})
}

func (s *Server) getHistory(c *gin.Context) {
	limit := defaultHistorySize
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	history := s.chat.History(limit)
	if history == nil {
		history = []agent.Turn{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "history": history})
}

func (s *Server) clearHistory(c *gin.Context) {
	s.chat.ClearHistory()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Conversation history cleared"})
}
