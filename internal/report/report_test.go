package report

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"plasmaLedger/internal/model"
	"plasmaLedger/internal/staking"
)

const (
	origin uint64 = 1_700_000_000
	day    uint64 = 86_400

	rewardToken = "0x0000000000000000000000000000000000002002"
	alice       = "0x000000000000000000000000000000000000A11c"
	bob         = "0x0000000000000000000000000000000000000B0b"
)

func monthPtr(m uint64) *uint64 { return &m }

func pools() []model.PoolSnapshot {
	return []model.PoolSnapshot{
		{
			Config: model.PoolConfig{ID: "lp", Mode: model.PoolModeMonthly, RewardAsset: rewardToken, Origin: origin},
			Budgets: []model.MonthBudget{
				{Month: 0, Amount: "10000000000000000000000"},
				{Month: 1, Amount: "20000000000000000000000"},
			},
		},
		{
			Config: model.PoolConfig{ID: "cont", Mode: model.PoolModeContinuous, RewardAsset: rewardToken, Origin: origin, Rate: "1"},
		},
	}
}

func writeEvents(t *testing.T, path string, events ...model.Event) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, ev := range events {
		require.NoError(t, enc.Encode(ev))
	}
}

func readRows(t *testing.T, path string) []model.MonthlyReward {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var rows []model.MonthlyReward
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var row model.MonthlyReward
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
		rows = append(rows, row)
	}
	require.NoError(t, scanner.Err())
	return rows
}

func TestAggregatorMonthlyRows(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	writeEvents(t, input,
		model.Event{Pool: "lp", Seq: 1, Name: model.EventDeposited, Timestamp: origin, Staker: alice, Amount: "100"},
		model.Event{Pool: "lp", Seq: 2, Name: model.EventClaimed, Timestamp: origin + day, Staker: alice, Recipient: alice, Month: monthPtr(0), Amount: "333333333333333333333"},
		model.Event{Pool: "lp", Seq: 3, Name: model.EventClaimed, Timestamp: origin + 2*day, Staker: bob, Recipient: bob, Month: monthPtr(0), Amount: "0"},
		model.Event{Pool: "cont", Seq: 1, Name: model.EventClaimed, Timestamp: origin + 10, Staker: alice, Recipient: alice, Amount: "1296000"},
		model.Event{Pool: "lp", Seq: 4, Name: model.EventClaimed, Timestamp: origin + 31*day, Staker: alice, Recipient: alice, Month: monthPtr(1), Amount: "1000000000000000000"},
		model.Event{Pool: "gone", Seq: 1, Name: model.EventClaimed, Timestamp: origin + day, Amount: "5"},
	)

	output := filepath.Join(dir, "rewards.jsonl")
	state := &FileStateStore{Path: filepath.Join(dir, "state.json")}
	agg := NewAggregator(Config{StateStore: state}, pools(), &FileWriter{Path: output}, nil, zap.NewNop())
	require.NoError(t, agg.Run(context.Background(), input))

	rows := readRows(t, output)
	require.Len(t, rows, 3)

	lp0 := rows[0]
	assert.Equal(t, "lp", lp0.PoolID)
	assert.Equal(t, uint64(0), lp0.Month)
	assert.Equal(t, uint64(2), lp0.ClaimCount)
	assert.Equal(t, uint64(2), lp0.Recipients)
	assert.Equal(t, "333.333333333333333333", lp0.Claimed)
	require.NotNil(t, lp0.Budget)
	assert.Equal(t, "10000.000000000000000000", *lp0.Budget)
	require.NotNil(t, lp0.Utilization)
	assert.Equal(t, "0.033333333333333333", *lp0.Utilization)
	assert.Equal(t, int64(origin), lp0.WindowStart.Unix())
	assert.Equal(t, int64(origin+staking.MonthDuration), lp0.WindowEnd.Unix())

	cont := rows[1]
	assert.Equal(t, "cont", cont.PoolID)
	require.NotNil(t, cont.Utilization)
	assert.Equal(t, "0.500000000000000000", *cont.Utilization)

	lp1 := rows[2]
	assert.Equal(t, uint64(1), lp1.Month)
	assert.Equal(t, "1.000000000000000000", lp1.Claimed)

	// cont is still in month 0, so a rerun starts from the beginning.
	last, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Zero(t, last)

	agg = NewAggregator(Config{StateStore: state}, pools(), &FileWriter{Path: output}, nil, zap.NewNop())
	require.NoError(t, agg.Run(context.Background(), input))
	assert.Equal(t, rows, readRows(t, output))
}

type upsertWriter struct {
	rows map[string]model.MonthlyReward
}

func (w *upsertWriter) UpsertMonthlyRewards(_ context.Context, rows []model.MonthlyReward) error {
	for _, row := range rows {
		w.rows[fmt.Sprintf("%s/%d", row.PoolID, row.Month)] = row
	}
	return nil
}

func TestAggregatorRerunRebuildsOpenMonth(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	state := &FileStateStore{Path: filepath.Join(dir, "state.json")}
	writer := &upsertWriter{rows: make(map[string]model.MonthlyReward)}
	lpOnly := pools()[:1]

	events := []model.Event{
		{Pool: "lp", Seq: 1, Name: model.EventClaimed, Timestamp: origin + 31*day, Recipient: alice, Month: monthPtr(1), Amount: "100"},
		{Pool: "lp", Seq: 2, Name: model.EventClaimed, Timestamp: origin + 32*day, Recipient: bob, Month: monthPtr(1), Amount: "200"},
	}
	writeEvents(t, input, events...)
	require.NoError(t, NewAggregator(Config{StateStore: state}, lpOnly, writer, nil, zap.NewNop()).Run(context.Background(), input))

	row := writer.rows["lp/1"]
	assert.Equal(t, uint64(2), row.ClaimCount)
	assert.Equal(t, "0.000000000000000300", row.Claimed)

	last, _, err := state.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, origin+staking.MonthDuration-1, last)

	events = append(events, model.Event{Pool: "lp", Seq: 3, Name: model.EventClaimed, Timestamp: origin + 33*day, Recipient: alice, Month: monthPtr(1), Amount: "50"})
	writeEvents(t, input, events...)
	require.NoError(t, NewAggregator(Config{StateStore: state}, lpOnly, writer, nil, zap.NewNop()).Run(context.Background(), input))

	row = writer.rows["lp/1"]
	assert.Equal(t, uint64(3), row.ClaimCount)
	assert.Equal(t, uint64(2), row.Recipients)
	assert.Equal(t, "0.000000000000000350", row.Claimed)
	assert.Len(t, writer.rows, 1)
}

func TestAggregatorSkipsClosedMonthsOnRerun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	writeEvents(t, input,
		model.Event{Pool: "lp", Seq: 1, Name: model.EventClaimed, Timestamp: origin + day, Recipient: alice, Month: monthPtr(0), Amount: "7"},
		model.Event{Pool: "lp", Seq: 2, Name: model.EventClaimed, Timestamp: origin + 31*day, Recipient: alice, Month: monthPtr(1), Amount: "9"},
	)
	state := &FileStateStore{Path: filepath.Join(dir, "state.json")}
	require.NoError(t, state.Save(context.Background(), origin+staking.MonthDuration-1))

	writer := &upsertWriter{rows: make(map[string]model.MonthlyReward)}
	require.NoError(t, NewAggregator(Config{StateStore: state}, pools()[:1], writer, nil, zap.NewNop()).Run(context.Background(), input))
	assert.Len(t, writer.rows, 1)
	assert.Contains(t, writer.rows, "lp/1")
}

func TestFileWriterReplacesPoolMonth(t *testing.T) {
	w := &FileWriter{Path: filepath.Join(t.TempDir(), "rows.jsonl")}
	ctx := context.Background()
	require.NoError(t, w.UpsertMonthlyRewards(ctx, []model.MonthlyReward{
		{PoolID: "lp", Month: 0, Claimed: "1"},
		{PoolID: "lp", Month: 1, Claimed: "2"},
	}))
	require.NoError(t, w.UpsertMonthlyRewards(ctx, []model.MonthlyReward{
		{PoolID: "lp", Month: 1, Claimed: "5"},
		{PoolID: "cont", Month: 0, Claimed: "3"},
	}))

	rows := readRows(t, w.Path)
	require.Len(t, rows, 3)
	assert.Equal(t, "1", rows[0].Claimed)
	assert.Equal(t, "5", rows[1].Claimed)
	assert.Equal(t, "cont", rows[2].PoolID)
}

func TestAccumulatorIgnoresOtherEvents(t *testing.T) {
	acc := NewAccumulator("lp", origin, 2)
	assert.Equal(t, origin+2*staking.MonthDuration, acc.WindowStart)

	require.NoError(t, acc.AddEvent(model.Event{Name: model.EventReleased, Amount: "7"}))
	assert.Zero(t, acc.ClaimCount)

	require.NoError(t, acc.AddEvent(model.Event{Name: model.EventClaimed, Recipient: alice, Amount: "7"}))
	require.NoError(t, acc.AddEvent(model.Event{Name: model.EventClaimed, Recipient: "0x000000000000000000000000000000000000a11c", Amount: "3"}))
	assert.Equal(t, uint64(2), acc.ClaimCount)
	assert.Equal(t, uint64(1), acc.Recipients())
	assert.Equal(t, "10", acc.Claimed.String())

	assert.Error(t, acc.AddEvent(model.Event{Name: model.EventClaimed, Amount: "x"}))
	assert.Error(t, acc.AddEvent(model.Event{Name: model.EventClaimed, Amount: "-1"}))
}

func TestEventMonthFallsBackToTimestamp(t *testing.T) {
	ev := model.Event{Timestamp: origin + staking.MonthDuration + 5}
	assert.Equal(t, uint64(1), eventMonth(ev, origin))
	ev.Month = monthPtr(4)
	assert.Equal(t, uint64(4), eventMonth(ev, origin))
}

func TestFormatTokenAmount(t *testing.T) {
	cases := []struct {
		value    *big.Int
		decimals uint8
		want     string
	}{
		{nil, 18, "0"},
		{big.NewInt(1234), 0, "1234"},
		{big.NewInt(1234), 2, "12.34"},
		{big.NewInt(-5), 1, "-0.5"},
	}
	for _, tc := range cases {
		if got := formatTokenAmount(tc.value, tc.decimals); got != tc.want {
			t.Fatalf("formatTokenAmount(%v, %d) = %s, want %s", tc.value, tc.decimals, got, tc.want)
		}
	}
	if computeUtilization(big.NewInt(1), big.NewInt(0)) != nil {
		t.Fatalf("expected nil utilization for zero budget")
	}
}

func TestDecimalsResolverSeedAndFallback(t *testing.T) {
	r := NewDecimalsResolver(nil, 6, nil)
	assert.Equal(t, uint8(6), r.Decimals(context.Background(), rewardToken))
	assert.Equal(t, uint8(6), r.Decimals(context.Background(), "not-an-address"))

	r.Seed(model.TokenMeta{Address: rewardToken, Decimals: 18, Symbol: "PLSM"})
	assert.Equal(t, uint8(18), r.Decimals(context.Background(), rewardToken))
}
