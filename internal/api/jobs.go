package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	xerrors "EnvioScout/internal/errors"
	"EnvioScout/internal/task"
)

func (s *Server) submitJob(c *gin.Context) {
	if s.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Async jobs are disabled"})
		return
	}
	req, message, ok := bindMessage(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msgMessageRequired})
		return
	}
	job, err := s.jobs.Submit(c.Request.Context(), task.SubmitRequest{ID: req.ID, Message: message})
	if err != nil {
		c.JSON(xerrors.HTTPStatus(err), gin.H{"success": false, "error": xerrors.PublicMessage(err)})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "job": job})
}

func (s *Server) getJob(c *gin.Context) {
	if s.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Async jobs are disabled"})
		return
	}
	job, err := s.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(xerrors.HTTPStatus(err), gin.H{"success": false, "error": xerrors.PublicMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "job": job})
}
