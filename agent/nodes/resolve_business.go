package managernode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	"github.com/tanpawarit/microfounder-os/agent/sqlstore"
)

// ResolveBusiness fills BusinessID with the user's first business when the
// caller did not name one.
func ResolveBusiness(ctx context.Context, in *ChatState, db contractx.SQL) (*ChatState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.BusinessID != "" {
		return in, nil
	}

	id, err := FirstBusinessID(ctx, db, in.UserID)
	if err != nil {
		return nil, err
	}
	in.BusinessID = id
	return in, nil
}

// FirstBusinessID returns the id of the first businesses row owned by
// userID, or ErrNoBusinessFound.
func FirstBusinessID(ctx context.Context, db contractx.SQL, userID string) (string, error) {
	rows, err := db.Select(ctx, sqlstore.TableBusinesses, contractx.Row{"userId": userID})
	if contractx.Failed(err) {
		return "", fmt.Errorf("resolve business: %w", err)
	}
	for _, row := range rows {
		if id := contractx.BusinessFromRow(row).ID; id != "" {
			return id, nil
		}
	}
	return "", contractx.ErrNoBusinessFound
}
