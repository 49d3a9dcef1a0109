package managernode

import (
	"fmt"

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
)

func FinalizeReply(in *ChatState) (ChatOutput, error) {
	if in == nil {
		return ChatOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	res := in.Result
	if res.AgentID == "" {
		res.AgentID = in.Kind.String()
	}
	return ChatOutput{Result: res}, nil
}
