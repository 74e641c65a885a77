package baostock

import (
	"context"
	"fmt"
	"strings"

	"monthbars/internal/source"
)

// Caller invokes an SDK function through the bridge.
type Caller interface {
	Call(ctx context.Context, fn string, args map[string]any) (source.Table, error)
}

// BridgeDialer opens baostock sessions hosted by the SDK bridge. The sidecar
// answers login with a single-cell table holding the session id.
type BridgeDialer struct {
	Caller Caller
}

func (d BridgeDialer) Login(ctx context.Context) (Session, error) {
	t, err := d.Caller.Call(ctx, "baostock/login", nil)
	if err != nil {
		return nil, err
	}
	if t.Len() == 0 || len(t.Rows[0]) == 0 || t.Rows[0][0] == "" {
		return nil, fmt.Errorf("login returned no session id")
	}
	return &bridgeSession{caller: d.Caller, id: t.Rows[0][0]}, nil
}

type bridgeSession struct {
	caller Caller
	id     string
}

func (s *bridgeSession) QueryHistoryKData(ctx context.Context, q Query) (source.Table, error) {
	return s.caller.Call(ctx, "baostock/query_history_k_data_plus", map[string]any{
		"session":    s.id,
		"code":       q.Code,
		"fields":     strings.Join(q.Fields, ","),
		"start_date": q.StartDate,
		"end_date":   q.EndDate,
		"frequency":  q.Frequency,
		"adjustflag": q.AdjustFlag,
	})
}

func (s *bridgeSession) Logout(ctx context.Context) error {
	_, err := s.caller.Call(ctx, "baostock/logout", map[string]any{"session": s.id})
	return err
}
