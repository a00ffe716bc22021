package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type rebuildSnapshotsRequest struct {
	// UserID limits the rebuild to one user; empty rebuilds everyone.
	UserID *snowflake.ID `json:"user_id"`
	// Async queues the rebuild for the snapshot worker instead of running it inline.
	Async bool `json:"async"`
}

func (s *Server) RebuildSnapshots(c *gin.Context) {
	var req rebuildSnapshotsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	if req.UserID != nil && *req.UserID == 0 {
		req.UserID = nil
	}

	if req.Async {
		resp, err := s.snapshotSvc.EnqueueRebuild(c.Request.Context(), req.UserID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"data": resp})
		return
	}

	if err := s.snapshotSvc.Rebuild(c.Request.Context(), req.UserID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) GetSnapshotRebuild(c *gin.Context) {
	requestID, ok := pathID(c, "request_id")
	if !ok {
		return
	}

	resp, err := s.snapshotSvc.GetRebuild(c.Request.Context(), requestID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VerifySnapshots(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	drifts, err := s.snapshotSvc.Verify(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"user_id":    userID,
		"consistent": len(drifts) == 0,
		"drifts":     drifts,
	}})
}
