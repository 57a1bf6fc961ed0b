package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-dex-bot/internal/config"
	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/ingestion"
	"solana-dex-bot/internal/notify"
	"solana-dex-bot/internal/position"
	"solana-dex-bot/internal/storage"
	"solana-dex-bot/internal/strategy"
)

const testMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// scriptedSource pushes its messages, then stays connected until done
// is closed or the context ends.
type scriptedSource struct {
	msgs [][]byte
	done <-chan struct{}
}

func (s *scriptedSource) Run(ctx context.Context, sink ingestion.Sink) error {
	base := time.Now()
	for i, m := range s.msgs {
		sink(ingestion.Message{Data: m, RecvUs: base.Add(time.Duration(i) * time.Second).UnixMicro()})
	}
	if s.done == nil {
		return nil
	}
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return nil
}

func pumpTrade(mint string, lamports, tokens uint64, isBuy bool) []byte {
	return []byte(fmt.Sprintf(
		`{"PumpFunTrade":{"mint":%q,"trader":"T","amount_sol":%d,"amount_token":%d,"is_buy":%t}}`,
		mint, lamports, tokens, isBuy))
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Bot.DryRun = true
	cfg.Bot.MaxTotalPositions = 5
	cfg.Bot.MaxTotalInvestment = 10
	cfg.Bot.ExitCheckInterval.Duration = 10 * time.Millisecond
	cfg.Metrics.Addr = "off"
	cfg.Strategies = []domain.StrategyConfig{{
		Name:         "cb",
		Type:         domain.StrategyTypeConsecutiveBuy,
		Enabled:      true,
		MaxPositions: 1,
		SlippageBps:  500,
		ConsecutiveBuy: &domain.ConsecutiveBuyParams{
			Count:                3,
			TotalAmountThreshold: 5.0,
			TimeWindowSeconds:    300,
			BuyAmountSol:         0.1,
			TargetProfitRatio:    0.5,
		},
	}}
	return &cfg
}

func TestApp_ConsecutiveBuyRoundTrip(t *testing.T) {
	deps := MemoryDependencies()
	done := make(chan struct{})
	src := &scriptedSource{
		msgs: [][]byte{
			pumpTrade(testMint, 2_500_000_000, 2_500_000_000, true),
			pumpTrade(testMint, 1_800_000_000, 1_800_000_000, true),
			pumpTrade(testMint, 3_200_000_000, 3_200_000_000, true),
			// Price doubles on a sell
			pumpTrade(testMint, 1_000_000_000, 500_000_000, false),
		},
		done: done,
	}

	a, err := New(testConfig(), deps, src, nil, WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)

	events, unsubscribe := a.Notifications().Subscribe(16)
	defer unsubscribe()

	var got []notify.Event
	go func() {
		defer close(done)
		for ev := range events {
			got = append(got, ev)
			if ev.Type == notify.EventPositionClosed {
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	select {
	case <-done:
	default:
		t.Fatal("position was never closed")
	}

	var opened, closed int
	for _, ev := range got {
		switch ev.Type {
		case notify.EventPositionOpened:
			opened++
		case notify.EventPositionClosed:
			closed++
		}
	}
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)

	closedPositions := a.Positions().ClosedPositions()
	require.Len(t, closedPositions, 1)
	assert.Greater(t, closedPositions[0].PnL(), 0.0)
	assert.Equal(t, 0, a.Positions().ActiveCount())

	execs, err := deps.Journal.GetExecutionsByMint(context.Background(), testMint)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, domain.SignalBuy, execs[0].Side)
	assert.InDelta(t, 0.1, execs[0].RequestedAmount, 1e-9)
	assert.Equal(t, domain.SignalSell, execs[1].Side)
	assert.Equal(t, domain.SellAll, execs[1].RequestedAmount)

	journaled, err := deps.Journal.GetClosedPositions(context.Background(), 0, time.Now().Add(time.Hour).UnixMilli())
	require.NoError(t, err)
	assert.Len(t, journaled, 1)

	s, ok := a.engine.ByName("cb")
	require.True(t, ok)
	assert.False(t, s.(*strategy.ConsecutiveBuyStrategy).IsMarked(testMint), "bought-mark must be cleared")

	_, err = deps.State.Get(context.Background(), position.SnapshotKey)
	assert.NoError(t, err, "snapshot saved on shutdown")
}

func TestApp_ReplayWithFeedClock(t *testing.T) {
	const start = int64(1_772_600_000_000_000)
	line := func(offset time.Duration, msg []byte) string {
		return fmt.Sprintf(`{"recv_us":%d,"msg":%s}`, start+offset.Microseconds(), msg)
	}
	input := strings.Join([]string{
		line(0, pumpTrade(testMint, 2_500_000_000, 2_500_000_000, true)),
		line(1500*time.Millisecond, pumpTrade(testMint, 1_800_000_000, 1_800_000_000, true)),
		line(4*time.Second, pumpTrade(testMint, 3_200_000_000, 3_200_000_000, true)),
		line(10*time.Minute, pumpTrade(testMint, 1_000_000_000, 500_000_000, false)),
	}, "\n")

	deps := MemoryDependencies()
	a, err := New(testConfig(), deps, ingestion.NewReaderSource(strings.NewReader(input)), nil, WithFeedClock())
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	closed := a.Positions().ClosedPositions()
	require.Len(t, closed, 1)
	assert.Equal(t, start/1000+(10*time.Minute).Milliseconds(), *closed[0].ExitTime)
	assert.InDelta(t, 0.1, closed[0].PnL(), 1e-9)
	assert.Equal(t, start/1000+4000, closed[0].EntryTime)
}

func TestApp_ReplayDeliversEveryMessage(t *testing.T) {
	const lines = 5000
	var b strings.Builder
	for i := 0; i < lines; i++ {
		mint := fmt.Sprintf("%s%d", testMint[:40], i%7)
		fmt.Fprintf(&b, "{\"recv_us\":%d,\"msg\":%s}\n",
			int64(1_772_600_000_000_000)+int64(i)*1000,
			pumpTrade(mint, uint64(1_000_000+i), 1_000_000, false))
	}

	cfg := testConfig()
	cfg.Feed.QueueSize = 16
	a, err := New(cfg, MemoryDependencies(), ingestion.NewReaderSource(strings.NewReader(b.String())), nil,
		WithFeedClock(), WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	assert.Zero(t, a.queue.Dropped())
	processed := testutil.ToFloat64(a.metrics.EventsProcessed.WithLabelValues(string(domain.EventKindBondingCurveTrade)))
	assert.Equal(t, float64(lines), processed)
}

func TestApp_BelowThresholdDoesNotTrade(t *testing.T) {
	deps := MemoryDependencies()
	src := &scriptedSource{msgs: [][]byte{
		pumpTrade(testMint, 1_000_000_000, 1_000_000_000, true),
		pumpTrade(testMint, 1_000_000_000, 1_000_000_000, true),
		pumpTrade(testMint, 1_000_000_000, 1_000_000_000, true),
		[]byte(`{"Unknown":{}}`),
	}}

	a, err := New(testConfig(), deps, src, nil)
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, 0, a.Positions().ActiveCount())
	execs, err := deps.Journal.GetExecutionsByMint(context.Background(), testMint)
	require.NoError(t, err)
	assert.Empty(t, execs)
}

func TestApp_RestoresSnapshot(t *testing.T) {
	deps := MemoryDependencies()

	seed := position.NewManager(nil)
	seed.OpenPosition(&domain.Position{
		Mint:        testMint,
		Strategy:    "cb",
		EntryPrice:  1,
		Amount:      10,
		InvestedSol: 0.1,
	})
	data, err := seed.Snapshot()
	require.NoError(t, err)
	require.NoError(t, deps.State.Put(context.Background(), position.SnapshotKey, data))

	a, err := New(testConfig(), deps, &scriptedSource{}, nil)
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	assert.True(t, a.Positions().HasActivePosition(testMint))
}

type failingState struct{ storage.StateStore }

func (failingState) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func TestApp_RestoreFailureStopsStartup(t *testing.T) {
	deps := MemoryDependencies()
	deps.State = failingState{}

	a, err := New(testConfig(), deps, &scriptedSource{}, nil)
	require.NoError(t, err)
	assert.Error(t, a.Run(context.Background()))
}

func TestApp_Health(t *testing.T) {
	a, err := New(testConfig(), nil, &scriptedSource{}, nil)
	require.NoError(t, err)

	assert.Error(t, a.Health(), "not running yet")
	a.running.Store(true)
	assert.NoError(t, a.Health())
	a.SetEmergencyStop(true)
	assert.Error(t, a.Health())
	assert.NoError(t, a.CheckExecutor(context.Background()))
}

type recordingMirror struct {
	prices map[string]float64
	times  map[string]time.Time
}

func (m *recordingMirror) SetPrice(_ context.Context, mint string, price float64, at time.Time) error {
	m.prices[mint] = price
	m.times[mint] = at
	return nil
}

func TestMirrorSink_KeepsNewestPerMint(t *testing.T) {
	mirror := &recordingMirror{prices: map[string]float64{}, times: map[string]time.Time{}}
	sink := &mirrorSink{mirror: mirror}

	err := sink.InsertBulk(context.Background(), []*domain.PriceTick{
		{Mint: "A", Price: 1, TimestampMs: 1000},
		{Mint: "B", Price: 5, TimestampMs: 1000},
		{Mint: "A", Price: 3, TimestampMs: 3000},
		{Mint: "A", Price: 2, TimestampMs: 2000},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"A": 3, "B": 5}, mirror.prices)
	assert.Equal(t, int64(3000), mirror.times["A"].UnixMilli())
}

func TestDependencies_CloseRunsInReverse(t *testing.T) {
	var order []string
	d := MemoryDependencies()
	d.closers = append(d.closers,
		func() error { order = append(order, "first"); return nil },
		func() error { order = append(order, "second"); return errors.New("boom") },
	)

	err := d.Close()
	assert.Error(t, err)
	assert.Equal(t, []string{"second", "first"}, order)
	assert.Nil(t, d.closers)
}
