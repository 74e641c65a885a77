package baostock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"monthbars/internal/executor"
	"monthbars/internal/source"
)

type fakeSession struct {
	query     func(ctx context.Context, q Query) (source.Table, error)
	loggedOut atomic.Int32
	got       Query
}

func (s *fakeSession) QueryHistoryKData(ctx context.Context, q Query) (source.Table, error) {
	s.got = q
	return s.query(ctx, q)
}

func (s *fakeSession) Logout(context.Context) error {
	s.loggedOut.Add(1)
	return nil
}

type fakeDialer struct {
	sess *fakeSession
	err  error
}

func (d fakeDialer) Login(context.Context) (Session, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.sess, nil
}

var (
	jan = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mar = time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
)

func TestFetchMonthly_QueryShapeAndLogout(t *testing.T) {
	t.Parallel()

	// Arrange
	sess := &fakeSession{query: func(context.Context, Query) (source.Table, error) {
		return source.Table{
			Columns: []string{"date", "code", "open", "high", "low", "close", "volume", "amount", "pctChg"},
			Rows:    [][]string{{"2025-01-27", "sz.000001", "11.2", "11.9", "10.9", "11.5", "100", "1150", "0.7455"}},
		}, nil
	}}
	a := New(Config{}, fakeDialer{sess: sess}, nil)

	// Act
	tbl, err := a.FetchMonthly(t.Context(), "000001.SZ", jan, mar)
	require.NoError(t, err)
	rows, err := source.MapTable(tbl, a.Headers())

	// Assert
	require.NoError(t, err)
	require.Equal(t, "sz.000001", sess.got.Code)
	require.Equal(t, "2025-01-01", sess.got.StartDate)
	require.Equal(t, "2025-03-31", sess.got.EndDate)
	require.Equal(t, "m", sess.got.Frequency)
	require.Equal(t, "2", sess.got.AdjustFlag)
	require.EqualValues(t, 1, sess.loggedOut.Load())
	require.InDelta(t, 0.7455, rows[0].PctChg.Float64, 1e-9)
}

func TestFetchDaily_LogsOutOnError(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{query: func(context.Context, Query) (source.Table, error) {
		return source.Table{}, errors.New("10002007: network error")
	}}
	a := New(Config{}, fakeDialer{sess: sess}, nil)

	_, err := a.FetchDaily(t.Context(), "600000", jan, mar)
	require.Error(t, err)
	require.Equal(t, "d", sess.got.Frequency)
	require.Equal(t, "sh.600000", sess.got.Code)
	require.EqualValues(t, 1, sess.loggedOut.Load())
}

func TestFetch_LogsOutAfterAbandonedTimeout(t *testing.T) {
	t.Parallel()

	// Arrange: a query slower than the executor budget
	release := make(chan struct{})
	sess := &fakeSession{query: func(context.Context, Query) (source.Table, error) {
		<-release
		return source.Table{}, nil
	}}
	a := New(Config{}, fakeDialer{sess: sess}, nil)

	// Act
	_, err := executor.Run(t.Context(), 10*time.Millisecond, func(ctx context.Context) (source.Table, error) {
		return a.FetchMonthly(ctx, "000001.SZ", jan, mar)
	})

	// Assert: the caller moved on, the session is released once the call returns
	require.ErrorIs(t, err, executor.ErrTimeout)
	require.EqualValues(t, 0, sess.loggedOut.Load())
	close(release)
	require.Eventually(t, func() bool { return sess.loggedOut.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestFetch_LoginFailure(t *testing.T) {
	t.Parallel()

	a := New(Config{}, fakeDialer{err: errors.New("login refused")}, nil)
	_, err := a.FetchMonthly(t.Context(), "000001.SZ", jan, mar)
	require.ErrorContains(t, err, "login refused")
}

func TestProviderCode_BeijingUnsupported(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil, nil).ProviderCode("830799.BJ")
	require.ErrorIs(t, err, source.ErrUnsupported)
}

type recordingCaller struct {
	fns  []string
	args []map[string]any
}

func (r *recordingCaller) Call(_ context.Context, fn string, args map[string]any) (source.Table, error) {
	r.fns = append(r.fns, fn)
	r.args = append(r.args, args)
	if fn == "baostock/login" {
		return source.Table{Columns: []string{"session"}, Rows: [][]string{{"s-1"}}}, nil
	}
	return source.Table{}, nil
}

func TestBridgeDialer_SessionLifecycle(t *testing.T) {
	t.Parallel()

	c := &recordingCaller{}
	a := New(Config{AdjustFlag: "3"}, BridgeDialer{Caller: c}, nil)

	_, err := a.FetchMonthly(t.Context(), "000001.SZ", jan, mar)
	require.NoError(t, err)
	require.Equal(t, []string{"baostock/login", "baostock/query_history_k_data_plus", "baostock/logout"}, c.fns)
	require.Equal(t, "s-1", c.args[1]["session"])
	require.Equal(t, "3", c.args[1]["adjustflag"])
	require.Equal(t, "date,code,open,high,low,close,volume,amount,pctChg", c.args[1]["fields"])
	require.Equal(t, map[string]any{"session": "s-1"}, c.args[2])
}
