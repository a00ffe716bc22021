package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListRewards(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	if _, err := s.profileSvc.Get(c.Request.Context(), userID); err != nil {
		AbortWithError(c, err)
		return
	}

	rewards, err := s.rewardSvc.ListForUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	cosmetics, err := s.rewardSvc.ListCosmetics(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"rewards":   rewards,
		"cosmetics": cosmetics,
	}})
}

func (s *Server) ReloadRewards(c *gin.Context) {
	s.rewardSvc.Reload()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
