package manager

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	nodex "github.com/tanpawarit/microfounder-os/agent/nodes"
)

func (m *Manager) compileChatGraph(
	ctx context.Context,
) (compose.Runnable[nodex.ChatInput, nodex.ChatOutput], error) {
	graph := compose.NewGraph[nodex.ChatInput, nodex.ChatOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.ChatInput) (*nodex.ChatState, error) {
			return nodex.ValidateRequest(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("resolve_business",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.ChatState) (*nodex.ChatState, error) {
			return nodex.ResolveBusiness(ctx, in, m.sql)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node resolve_business: %w", err)
	}

	if err := graph.AddLambdaNode("dispatch_agent",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.ChatState) (*nodex.ChatState, error) {
			return nodex.DispatchAgent(ctx, in, m.agents)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch_agent: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.ChatState) (nodex.ChatOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "resolve_business"},
		{"resolve_business", "dispatch_agent"},
		{"dispatch_agent", "finalize_reply"},
		{"finalize_reply", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("manager.chat_with_agent"))
	if err != nil {
		return nil, fmt.Errorf("compile manager graph: %w", err)
	}
	return runner, nil
}
