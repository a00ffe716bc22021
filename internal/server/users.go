package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	profiledomain "github.com/smallbiznis/habitquest/internal/profile/domain"
)

type createUserRequest struct {
	DisplayName    string `json:"display_name"`
	Timezone       string `json:"timezone"`
	FirstDayOfWeek *int   `json:"first_day_of_week"`
}

func (s *Server) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.profileSvc.Create(c.Request.Context(), profiledomain.CreateProfileRequest{
		DisplayName:    strings.TrimSpace(req.DisplayName),
		Timezone:       strings.TrimSpace(req.Timezone),
		FirstDayOfWeek: req.FirstDayOfWeek,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetUser(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	resp, err := s.profileSvc.Get(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateUser(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	var req profiledomain.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.profileSvc.Update(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDashboard(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	resp, err := s.progression.Dashboard(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetProgression(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	resp, err := s.progression.Progression(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListDomainSettings(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	resp, err := s.profileSvc.ListDomainSettings(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateDomainSettingsRequest struct {
	Settings []profiledomain.UpdateDomainSettingRequest `json:"settings"`
}

func (s *Server) UpdateDomainSettings(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	var req updateDomainSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Settings) == 0 {
		AbortWithError(c, newValidationError("settings", "required", "settings are required"))
		return
	}

	resp, err := s.profileSvc.UpdateDomainSettings(c.Request.Context(), userID, req.Settings)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
