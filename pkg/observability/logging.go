package observability

import (
	"context"
	"log/slog"

	"github.com/pichlex/debitor/pkg/domain"
)

// LoggingHooks logs node transitions at debug level and turn outcomes at info.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "conversation_id", e.ConversationID, "node", e.Node)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "node_leave", "conversation_id", e.ConversationID, "node", e.Node, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "node_leave", "conversation_id", e.ConversationID, "node", e.Node, "route", e.Route)
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "turn_end", "conversation_id", e.ConversationID, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "turn_end",
				"conversation_id", e.ConversationID,
				"turn", e.Turn,
				"route", e.Route,
				"stage", e.Stage,
				"duration", e.Duration,
			)
		},
	}
}
