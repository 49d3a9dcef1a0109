package webserver

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tanpawarit/microfounder-os/agent/workspace"
)

type Workspace struct {
	svc WorkspaceService
}

func NewWorkspace(svc WorkspaceService) Workspace {
	return Workspace{svc: svc}
}

type onboardingRequest struct {
	UserID          string          `json:"userId" binding:"required"`
	BusinessType    string          `json:"businessType" binding:"required"`
	Industry        string          `json:"industry"`
	Stage           string          `json:"stage"`
	RevenueModel    string          `json:"revenueModel"`
	CurrentRevenue  *float64        `json:"currentRevenue"`
	CurrentExpenses *float64        `json:"currentExpenses"`
	Answers         json.RawMessage `json:"answers"`
}

func (w Workspace) Onboard(c *gin.Context) {
	var req onboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !authorize(c, req.UserID) {
		return
	}
	id, err := w.svc.Onboard(c.Request.Context(), workspace.Onboarding{
		UserID:          req.UserID,
		BusinessType:    req.BusinessType,
		Industry:        req.Industry,
		Stage:           req.Stage,
		RevenueModel:    req.RevenueModel,
		CurrentRevenue:  req.CurrentRevenue,
		CurrentExpenses: req.CurrentExpenses,
		Answers:         req.Answers,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "businessId": id})
}

func (w Workspace) Dashboard(c *gin.Context) {
	userID, ok := queryUser(c)
	if !ok {
		return
	}
	d, err := w.svc.Dashboard(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// SQL lists the viewable tables, or the user's rows of ?table=.
func (w Workspace) SQL(c *gin.Context) {
	userID, ok := queryUser(c)
	if !ok {
		return
	}
	table := c.Query("table")
	if table == "" {
		c.JSON(http.StatusOK, gin.H{"tables": w.svc.Tables()})
		return
	}
	rows, err := w.svc.TableRows(c.Request.Context(), userID, table)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"table": table, "data": rows})
}

func (w Workspace) Memory(c *gin.Context) {
	userID, ok := queryUser(c)
	if !ok {
		return
	}
	view, err := w.svc.Memory(c.Request.Context(), userID, c.Query("prefix"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func queryUser(c *gin.Context) (string, bool) {
	userID := c.Query("userId")
	if userID == "" {
		badRequest(c, "userId is required")
		return "", false
	}
	return userID, authorize(c, userID)
}
