package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
)

type Agents struct {
	svc AgentService
}

func NewAgents(svc AgentService) Agents {
	return Agents{svc: svc}
}

func (a Agents) List(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		badRequest(c, "userId is required")
		return
	}
	if !authorize(c, userID) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": a.svc.GetAgents(userID)})
}

type chatRequest struct {
	UserID     string `json:"userId" binding:"required"`
	Message    string `json:"message" binding:"required"`
	BusinessID string `json:"businessId"`
}

func (a Agents) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !authorize(c, req.UserID) {
		return
	}
	res, err := a.svc.ChatWithAgent(c.Request.Context(), req.UserID, c.Param("agentId"), req.Message, req.BusinessID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type workflowRequest struct {
	UserID     string `json:"userId" binding:"required"`
	BusinessID string `json:"businessId" binding:"required"`
}

// bindWorkflow decodes a workflow body into req and checks its owner.
func bindWorkflow(c *gin.Context, req any, userID func() string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return authorize(c, userID())
}

func (a Agents) CreateWeeklyPlan(c *gin.Context) {
	var req workflowRequest
	if !bindWorkflow(c, &req, func() string { return req.UserID }) {
		return
	}
	res, err := a.svc.CreateWeeklyPlan(c.Request.Context(), req.UserID, req.BusinessID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type assetsRequest struct {
	workflowRequest
	AssetType string `json:"assetType" binding:"required,oneof=ad_copy landing_page email_campaign"`
}

func (a Agents) GenerateMarketingAssets(c *gin.Context) {
	var req assetsRequest
	if !bindWorkflow(c, &req, func() string { return req.UserID }) {
		return
	}
	res, err := a.svc.GenerateMarketingAssets(c.Request.Context(), req.UserID, req.BusinessID, req.AssetType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a Agents) RunFinancialForecast(c *gin.Context) {
	var req workflowRequest
	if !bindWorkflow(c, &req, func() string { return req.UserID }) {
		return
	}
	res, err := a.svc.RunFinancialForecast(c.Request.Context(), req.UserID, req.BusinessID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type prdRequest struct {
	workflowRequest
	Feature string `json:"feature" binding:"required"`
}

func (a Agents) CreatePRD(c *gin.Context) {
	var req prdRequest
	if !bindWorkflow(c, &req, func() string { return req.UserID }) {
		return
	}
	res, err := a.svc.CreatePRD(c.Request.Context(), req.UserID, req.BusinessID, req.Feature)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type outreachRequest struct {
	workflowRequest
	ProspectInfo contractx.ProspectInfo `json:"prospectInfo"`
}

func (a Agents) GenerateOutreach(c *gin.Context) {
	var req outreachRequest
	if !bindWorkflow(c, &req, func() string { return req.UserID }) {
		return
	}
	res, err := a.svc.GenerateOutreachMessage(c.Request.Context(), req.UserID, req.BusinessID, req.ProspectInfo)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
