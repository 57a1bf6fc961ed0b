package execution

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/position"
	"solana-dex-bot/internal/pricing"
	"solana-dex-bot/internal/risk"
	"solana-dex-bot/internal/strategy"
)

// testStrategy satisfies strategy.Strategy; only Name matters to the coordinator.
type testStrategy struct{ name string }

func (s *testStrategy) Name() string                     { return s.name }
func (s *testStrategy) Config() domain.StrategyConfig    { return domain.StrategyConfig{Name: s.name} }
func (s *testStrategy) Initialize(context.Context) error { return nil }

func (s *testStrategy) AnalyzeEvent(domain.DexEvent, *domain.LatencyInfo) []domain.TradeSignal {
	return nil
}

func (s *testStrategy) CheckExitConditions(*domain.Position) *domain.TradeSignal { return nil }
func (s *testStrategy) OnTradeResult(domain.TradeSignal, domain.TradeResult)     {}
func (s *testStrategy) Destroy() error                                           { return nil }

type callback struct {
	strategy string
	signal   domain.TradeSignal
	result   domain.TradeResult
}

type recordingResults struct{ calls []callback }

func (r *recordingResults) NotifyResult(s strategy.Strategy, sig domain.TradeSignal, res domain.TradeResult) {
	r.calls = append(r.calls, callback{strategy: s.Name(), signal: sig, result: res})
}

type recordingNotifier struct {
	rejected []error
	failed   []domain.TradeResult
}

func (n *recordingNotifier) SignalRejected(_ domain.TradeSignal, err error) {
	n.rejected = append(n.rejected, err)
}

func (n *recordingNotifier) ExecutionFailed(_ domain.TradeSignal, res domain.TradeResult) {
	n.failed = append(n.failed, res)
}

type memJournal struct{ records []*domain.ExecutionRecord }

func (j *memJournal) RecordExecution(_ context.Context, rec *domain.ExecutionRecord) error {
	j.records = append(j.records, rec)
	return nil
}

// scriptedExecutor fills at a fixed price unless the mint is listed in fail.
type scriptedExecutor struct {
	price  float64
	fail   map[string]bool
	orders []Order
}

func (e *scriptedExecutor) Execute(_ context.Context, order Order) (domain.TradeResult, error) {
	e.orders = append(e.orders, order)
	if e.fail[order.Signal.Mint] {
		err := errors.New("connection refused")
		return domain.FailedResult(err.Error(), 1), err
	}
	price := e.price
	tokens := order.Signal.Amount / price
	if order.Signal.IsSellAll() {
		tokens = order.Position.Amount
	}
	return domain.TradeResult{
		Success:        true,
		Signature:      "sig-" + order.Signal.ID,
		ExecutedAmount: &tokens,
		ExecutedPrice:  &price,
		ExecutedAt:     time.Now().UnixMilli(),
	}, nil
}

type harness struct {
	cache     *pricing.Cache
	positions *position.Manager
	executor  *scriptedExecutor
	results   *recordingResults
	notifier  *recordingNotifier
	journal   *memJournal
	coord     *Coordinator
	strat     *testStrategy
}

func newHarness(t *testing.T, limits risk.Limits) *harness {
	t.Helper()
	h := &harness{
		cache:    pricing.NewCache(),
		executor: &scriptedExecutor{price: 0.001, fail: map[string]bool{}},
		results:  &recordingResults{},
		notifier: &recordingNotifier{},
		journal:  &memJournal{},
		strat:    &testStrategy{name: "cb"},
	}
	h.positions = position.NewManager(h.cache)
	gate := risk.NewGate(limits, h.positions, nil, nil)
	h.coord = NewCoordinator(gate, h.executor, h.positions,
		WithPrices(h.cache),
		WithResults(h.results),
		WithNotifier(h.notifier),
		WithJournal(h.journal),
	)
	return h
}

func defaultLimits() risk.Limits {
	return risk.Limits{MaxTotalPositions: 10, MaxTotalInvestment: 10}
}

func buySignal(id, mint string, amount float64, prio domain.Priority) domain.TradeSignal {
	return domain.TradeSignal{
		ID:       id,
		Type:     domain.SignalBuy,
		Mint:     mint,
		Amount:   amount,
		Priority: prio,
		Strategy: "cb",
		Params: &domain.SignalParams{SourceEvent: &domain.BondingCurveTrade{
			Mint:         mint,
			IsBuy:        true,
			BondingCurve: "curve-" + mint,
		}},
	}
}

func (h *harness) emit(sigs ...domain.TradeSignal) []strategy.Emitted {
	out := make([]strategy.Emitted, len(sigs))
	for i, s := range sigs {
		out[i] = strategy.Emitted{Strategy: h.strat, Signal: s}
	}
	return out
}

func TestCoordinator_PriorityOrderIsStable(t *testing.T) {
	h := newHarness(t, defaultLimits())

	report := h.coord.Execute(context.Background(), h.emit(
		buySignal("1", "A", 0.01, domain.PriorityLow),
		buySignal("2", "B", 0.01, domain.PriorityHigh),
		buySignal("3", "C", 0.01, domain.PriorityMedium),
		buySignal("4", "D", 0.01, domain.PriorityHigh),
	))

	var got []string
	for _, o := range h.executor.orders {
		got = append(got, o.Signal.ID)
	}
	want := []string{"2", "4", "3", "1"}
	if len(got) != len(want) {
		t.Fatalf("executed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("executed %v, want %v", got, want)
		}
	}
	if report.Executed != 4 || !report.PositionsChanged {
		t.Errorf("unexpected report %+v", report)
	}
	if len(h.results.calls) != 4 {
		t.Errorf("expected 4 strategy callbacks, got %d", len(h.results.calls))
	}
}

func TestCoordinator_RejectionSkipsWithoutSideEffects(t *testing.T) {
	h := newHarness(t, risk.Limits{MaxTotalPositions: 1, MaxTotalInvestment: 10})

	report := h.coord.Execute(context.Background(), h.emit(
		buySignal("1", "A", 0.01, domain.PriorityMedium),
		buySignal("2", "B", 0.01, domain.PriorityMedium),
	))

	if report.Executed != 1 || report.Rejected != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(h.executor.orders) != 1 {
		t.Errorf("rejected signal must not reach the executor")
	}
	if h.positions.HasActivePosition("B") {
		t.Error("rejected buy opened a position")
	}
	if len(h.notifier.rejected) != 1 || !errors.Is(h.notifier.rejected[0], risk.ErrRejected) {
		t.Errorf("expected one rejection notification, got %v", h.notifier.rejected)
	}
	if len(h.journal.records) != 1 {
		t.Errorf("rejections are not journaled, got %d records", len(h.journal.records))
	}

	last := h.results.calls[len(h.results.calls)-1]
	if last.signal.ID != "2" || last.result.Success {
		t.Errorf("strategy must be told about the rejection, got %+v", last)
	}
}

func TestCoordinator_BuyThenSellAll(t *testing.T) {
	h := newHarness(t, defaultLimits())
	ctx := context.Background()

	h.coord.Execute(ctx, h.emit(buySignal("buy", "M", 0.01, domain.PriorityMedium)))

	pos, ok := h.positions.GetPosition("M")
	if !ok {
		t.Fatal("buy did not open a position")
	}
	if math.Abs(pos.Amount-10) > 1e-9 || pos.EntryPrice != 0.001 || pos.InvestedSol != 0.01 {
		t.Errorf("unexpected position %+v", pos)
	}
	if pos.Metadata[metaBondingCurve] != "curve-M" || pos.Metadata[metaSignalID] != "buy" {
		t.Errorf("entry parameters not kept: %v", pos.Metadata)
	}

	h.positions.UpdatePrice("M", 0.0011)
	h.executor.price = 0.0011
	sell := domain.TradeSignal{ID: "sell", Type: domain.SignalSell, Mint: "M", Amount: domain.SellAll, Priority: domain.PriorityHigh, Strategy: "cb"}
	report := h.coord.Execute(ctx, h.emit(sell))

	if report.Executed != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	order := h.executor.orders[len(h.executor.orders)-1]
	if order.Params.Dex != DexPumpFun || order.Params.BondingCurve != "curve-M" {
		t.Errorf("sell without source event should reuse entry params, got %+v", order.Params)
	}
	if order.Position == nil || order.Position.Amount != pos.Amount {
		t.Errorf("sell-all needs the live position, got %+v", order.Position)
	}
	if h.positions.HasActivePosition("M") {
		t.Error("position still active after sell")
	}
	closed := h.positions.ClosedPositions()
	if len(closed) != 1 || closed[0].RealizedPnL == nil || *closed[0].RealizedPnL <= 0 {
		t.Errorf("expected one profitable closed position, got %+v", closed)
	}
}

func TestCoordinator_FailureDoesNotBlockBatch(t *testing.T) {
	h := newHarness(t, defaultLimits())
	h.executor.fail["A"] = true

	report := h.coord.Execute(context.Background(), h.emit(
		buySignal("1", "A", 0.01, domain.PriorityHigh),
		buySignal("2", "B", 0.01, domain.PriorityLow),
	))

	if report.Failed != 1 || report.Executed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if h.positions.HasActivePosition("A") || !h.positions.HasActivePosition("B") {
		t.Error("only the successful buy should open a position")
	}
	if len(h.notifier.failed) != 1 {
		t.Errorf("expected one failure notification, got %d", len(h.notifier.failed))
	}
	if len(h.journal.records) != 2 || h.journal.records[0].Success {
		t.Errorf("both executions are journaled, failure first: %+v", h.journal.records)
	}
	if h.journal.records[0].ExecutionID == h.journal.records[1].ExecutionID {
		t.Error("execution ids must differ")
	}
}

func TestCoordinator_SellWithoutPosition(t *testing.T) {
	h := newHarness(t, defaultLimits())
	sell := domain.TradeSignal{ID: "s", Type: domain.SignalSell, Mint: "X", Amount: domain.SellAll, Strategy: "cb"}

	report := h.coord.Execute(context.Background(), h.emit(sell))

	if report.Failed != 1 || len(h.executor.orders) != 0 {
		t.Fatalf("sell of an unknown mint must fail before execution, report %+v", report)
	}
	if len(h.results.calls) != 1 || h.results.calls[0].result.Success {
		t.Error("strategy must be notified of the failure")
	}
}

func TestCoordinator_FailedSellKeepsPositionActive(t *testing.T) {
	h := newHarness(t, defaultLimits())
	ctx := context.Background()
	h.coord.Execute(ctx, h.emit(buySignal("b", "M", 0.01, domain.PriorityMedium)))

	h.executor.fail["M"] = true
	sell := domain.TradeSignal{ID: "s", Type: domain.SignalSell, Mint: "M", Amount: domain.SellAll, Strategy: "cb"}
	h.coord.Execute(ctx, h.emit(sell))

	pos, ok := h.positions.GetPosition("M")
	if !ok || pos.Status != domain.PositionActive {
		t.Fatalf("failed sell must leave the position active, got %+v", pos)
	}
}

func TestCoordinator_EmergencyStopBlocksEverything(t *testing.T) {
	h := newHarness(t, risk.Limits{MaxTotalPositions: 10, MaxTotalInvestment: 10, EmergencyStop: true})

	report := h.coord.Execute(context.Background(), h.emit(buySignal("1", "A", 0.01, domain.PriorityHigh)))
	if report.Rejected != 1 || len(h.executor.orders) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}
