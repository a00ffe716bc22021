package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/habitquest/internal/engine"
	questdomain "github.com/smallbiznis/habitquest/internal/quest/domain"
)

func (s *Server) ListQuests(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	var query struct {
		DomainID        string `form:"domain_id"`
		IncludeInactive string `form:"include_inactive"`
		GlobalOnly      string `form:"global"`
		At              string `form:"at"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	domainID, err := parseOptionalSnowflakeID(query.DomainID)
	if err != nil {
		AbortWithError(c, newValidationError("domain_id", "invalid_domain_id", "invalid domain_id"))
		return
	}
	includeInactive, err := parseOptionalBool(query.IncludeInactive)
	if err != nil {
		AbortWithError(c, newValidationError("include_inactive", "invalid_include_inactive", "invalid include_inactive"))
		return
	}
	globalOnly, err := parseOptionalBool(query.GlobalOnly)
	if err != nil {
		AbortWithError(c, newValidationError("global", "invalid_global", "invalid global"))
		return
	}
	at, err := parseOptionalTime(query.At)
	if err != nil {
		AbortWithError(c, newValidationError("at", "invalid_at", "invalid at"))
		return
	}

	req := questdomain.ListQuestRequest{DomainID: domainID}
	if includeInactive != nil {
		req.IncludeInactive = *includeInactive
	}
	if globalOnly != nil {
		req.GlobalOnly = *globalOnly
	}
	if at != nil {
		req.At = *at
	}

	resp, err := s.questSvc.List(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateQuest(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	var req questdomain.CreateQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.questSvc.Create(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetQuest(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	questID, ok := pathID(c, "quest_id")
	if !ok {
		return
	}

	resp, err := s.questSvc.Get(c.Request.Context(), userID, questID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateQuest(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	questID, ok := pathID(c, "quest_id")
	if !ok {
		return
	}

	var req questdomain.UpdateQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.questSvc.Update(c.Request.Context(), userID, questID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteQuest(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	questID, ok := pathID(c, "quest_id")
	if !ok {
		return
	}

	if err := s.questSvc.Delete(c.Request.Context(), userID, questID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type completeQuestRequest struct {
	OccurredAt string `json:"occurred_at"`
}

// CompleteQuest accepts an empty body; occurred_at backdates the completion.
func (s *Server) CompleteQuest(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	questID, ok := pathID(c, "quest_id")
	if !ok {
		return
	}

	var req completeQuestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	occurredAt, err := parseOptionalTime(req.OccurredAt)
	if err != nil {
		AbortWithError(c, newValidationError("occurred_at", "invalid_occurred_at", "invalid occurred_at"))
		return
	}

	resp, err := s.progression.CompleteTask(c.Request.Context(), engine.CompleteTaskRequest{
		UserID:     userID,
		QuestID:    questID,
		OccurredAt: occurredAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": completionView(resp)})
}

func (s *Server) EnableTemplate(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	templateID, ok := pathID(c, "template_id")
	if !ok {
		return
	}

	var req questdomain.EnableTemplateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.questSvc.EnableTemplate(c.Request.Context(), userID, templateID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DisableTemplate(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	templateID, ok := pathID(c, "template_id")
	if !ok {
		return
	}

	if err := s.questSvc.DisableTemplate(c.Request.Context(), userID, templateID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type completionResponse struct {
	engine.CompletionResult
	Remaining int `json:"remaining"`
}

func completionView(res engine.CompletionResult) completionResponse {
	return completionResponse{CompletionResult: res, Remaining: res.Remaining()}
}
