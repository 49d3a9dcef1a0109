package managernode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
)

type ChatInput struct {
	UserID     string
	AgentID    string
	Message    string
	BusinessID string
}

type ChatOutput struct {
	Result contractx.ChatResult
}

type ChatState struct {
	Kind       contractx.AgentKind
	UserID     string
	Message    string
	BusinessID string

	Result contractx.ChatResult
}

// ValidateRequest resolves the agent id before anything else, so an
// unknown agent is reported even for users without a business.
func ValidateRequest(in ChatInput) (*ChatState, error) {
	kind, err := contractx.ParseAgentKind(in.AgentID)
	if err != nil {
		return nil, err
	}

	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", contractx.ErrValidation)
	}

	return &ChatState{
		Kind:       kind,
		UserID:     userID,
		Message:    in.Message,
		BusinessID: strings.TrimSpace(in.BusinessID),
	}, nil
}
