package managernode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
)

func DispatchAgent(ctx context.Context, in *ChatState, agents map[contractx.AgentKind]contractx.Agent) (*ChatState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	agent, ok := agents[in.Kind]
	if !ok {
		return nil, &contractx.UnknownAgentError{ID: in.Kind.String()}
	}

	res, err := agent.Chat(ctx, in.UserID, in.Message, in.BusinessID)
	if err != nil {
		return nil, err
	}
	in.Result = res
	return in, nil
}
