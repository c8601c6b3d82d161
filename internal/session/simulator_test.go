package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

var start = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func btcPair() domain.TradingPair {
	return domain.TradingPair{
		Symbol:   "BTC/USDT",
		Price:    decimal.RequireFromString("64231.50"),
		Change:   decimal.RequireFromString("2.45"),
		Volume:   "45.2B",
		Decimals: 2,
	}
}

func xrpPair() domain.TradingPair {
	return domain.TradingPair{
		Symbol:   "XRP/USDT",
		Price:    decimal.RequireFromString("0.6234"),
		Change:   decimal.RequireFromString("-0.89"),
		Volume:   "1.5B",
		Decimals: 4,
	}
}

func btcBook() domain.OrderBookSnapshot {
	lvl := func(p, a string) domain.OrderBookLevel {
		return domain.OrderBookLevel{Price: decimal.RequireFromString(p), Amount: decimal.RequireFromString(a)}
	}
	return domain.OrderBookSnapshot{
		Pair: "BTC/USDT",
		Asks: []domain.OrderBookLevel{
			lvl("64231.50", "2.5"), lvl("64232.00", "0.89"), lvl("64233.50", "0.05"),
			lvl("64234.00", "1.2"), lvl("64235.50", "0.4521"),
		},
		Bids: []domain.OrderBookLevel{
			lvl("64231.00", "0.12"), lvl("64230.50", "0.5"), lvl("64229.00", "1.5"),
			lvl("64228.50", "0.33"), lvl("64225.00", "5"),
		},
	}
}

func newTestSim(t *testing.T) (*Simulator, *ManualClock) {
	t.Helper()
	clock := NewManualClock(start)
	sim := New(Config{ID: "s-1", Clock: clock}, btcPair(), btcBook())
	t.Cleanup(sim.Close)
	return sim, clock
}

func TestNewDefaults(t *testing.T) {
	sim, _ := newTestSim(t)
	d := sim.Draft()
	if d.Side != domain.SideBuy {
		t.Fatalf("side = %q, want buy", d.Side)
	}
	if d.Price != "64231.5" {
		t.Fatalf("price = %q, want pair last price", d.Price)
	}
	if d.Amount != "" {
		t.Fatalf("amount = %q, want empty", d.Amount)
	}
	if len(sim.Trades()) != 0 {
		t.Fatal("new session must have no trades")
	}
	if !sim.Notification().IsZero() {
		t.Fatal("new session must have no notification")
	}
}

func TestScenarioClickAndBuy(t *testing.T) {
	sim, _ := newTestSim(t)

	ask, ok := sim.Book().Level(domain.SideSell, 4)
	if !ok {
		t.Fatal("missing ask level 4")
	}
	if got := sim.ClickBookLevel(ask.Price); got != "64235.50" {
		t.Fatalf("clicked price = %q, want 64235.50", got)
	}
	sim.SetDraftAmount("0.5")
	sim.SetSide(domain.SideBuy)

	res, err := sim.PlaceOrder()
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !res.Accepted || res.Trade == nil {
		t.Fatalf("result = %+v, want accepted with trade", res)
	}

	trades := sim.Trades()
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	tr := trades[0]
	if !tr.Price.Equal(decimal.RequireFromString("64235.50")) || !tr.Amount.Equal(decimal.RequireFromString("0.5")) || tr.Side != domain.SideBuy {
		t.Fatalf("trade = %+v", tr)
	}
	if tr.Time != "09:26:53" {
		t.Fatalf("trade time = %q", tr.Time)
	}
	if tr.Pair != "BTC/USDT" || tr.SessionID != "s-1" || tr.ID == "" {
		t.Fatalf("trade identity = %+v", tr)
	}

	n := sim.Notification()
	if n.Message != "Order Placed: BUY 0.5 BTC @ 64235.50" {
		t.Fatalf("notification = %q", n.Message)
	}
	if n.Kind != domain.NotificationInfo {
		t.Fatalf("kind = %q, want info", n.Kind)
	}

	d := sim.Draft()
	if d.Amount != "" {
		t.Fatalf("amount = %q, want cleared", d.Amount)
	}
	if d.Price != "64235.50" || d.Side != domain.SideBuy {
		t.Fatalf("draft = %+v, want price and side kept", d)
	}
}

func TestScenarioZeroAmount(t *testing.T) {
	sim, _ := newTestSim(t)
	sim.SetDraftAmount("0")

	res, err := sim.PlaceOrder()
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
	if res.Accepted || res.Reason != MsgInvalidAmount {
		t.Fatalf("result = %+v", res)
	}
	if len(sim.Trades()) != 0 {
		t.Fatal("rejected order must not touch the log")
	}
	n := sim.Notification()
	if n.Message != "Invalid Amount" || n.Kind != domain.NotificationError {
		t.Fatalf("notification = %+v", n)
	}
	if sim.Draft().Amount != "0" {
		t.Fatal("rejected order must leave the draft as entered")
	}
}

func TestPlaceOrderRejectsBadAmounts(t *testing.T) {
	for _, amount := range []string{"", "   ", "0", "0.000", "-1", "-0.5", "abc", "1.2.3", "1e", "NaN", "1e50000000", "1e-30"} {
		t.Run(fmt.Sprintf("%q", amount), func(t *testing.T) {
			sim, _ := newTestSim(t)
			sim.SetDraftAmount("1")
			if _, err := sim.PlaceOrder(); err != nil {
				t.Fatalf("seed order: %v", err)
			}
			before := sim.Trades()

			sim.SetDraftAmount(amount)
			_, err := sim.PlaceOrder()
			if !errors.Is(err, domain.ErrInvalidAmount) {
				t.Fatalf("err = %v, want ErrInvalidAmount", err)
			}
			after := sim.Trades()
			if len(after) != len(before) || after[0].ID != before[0].ID {
				t.Fatal("trade log changed on rejection")
			}
		})
	}
}

func TestPlaceOrderAcceptsAnyDraftPrice(t *testing.T) {
	cases := []struct {
		price, want string
	}{
		{"", "0"},
		{"abc", "0"},
		{"0", "0"},
		{"-64000", "-64000"},
		{"1e50000000", "0"},
		{" 64000.5 ", "64000.5"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%q", tc.price), func(t *testing.T) {
			sim, _ := newTestSim(t)
			sim.SetDraftPrice(tc.price)
			sim.SetDraftAmount("1")
			res, err := sim.PlaceOrder()
			if err != nil || !res.Accepted {
				t.Fatalf("PlaceOrder: %+v, %v", res, err)
			}
			if got := res.Trade.Price.String(); got != tc.want {
				t.Fatalf("trade price = %s, want %s", got, tc.want)
			}
			want := "Order Placed: BUY 1 BTC @ " + strings.TrimSpace(tc.price)
			if got := sim.Notification().Message; got != want {
				t.Fatalf("notification = %q, want %q", got, want)
			}
			if len(sim.Trades()) != 1 || sim.Draft().Amount != "" {
				t.Fatal("accepted order did not fill")
			}
		})
	}
}

func TestExponentInputsStayBounded(t *testing.T) {
	sim, _ := newTestSim(t)
	sim.SetDraftAmount("1e50000000")
	if _, err := sim.PlaceOrder(); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
	if !sim.OrderTotal().IsZero() {
		t.Fatalf("order total = %s, want 0", sim.OrderTotal())
	}

	sim.SetDraftPrice("1e30000000")
	sim.SetDraftAmount("2")
	if _, err := sim.PlaceOrder(); err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(sim.View())
	if err != nil {
		t.Fatal(err)
	}
	if len(b) > 4096 {
		t.Fatalf("view JSON is %d bytes", len(b))
	}
}

func TestClosedSessionRejectsOrders(t *testing.T) {
	sim, _ := newTestSim(t)
	sim.SetDraftAmount("1")
	sim.Close()
	if _, err := sim.PlaceOrder(); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("PlaceOrder err = %v, want ErrNotFound", err)
	}
	if _, err := sim.Submit(domain.PlaceOrderRequest{Amount: "1"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Submit err = %v, want ErrNotFound", err)
	}
	if len(sim.Trades()) != 0 {
		t.Fatal("closed session filled an order")
	}
}

func TestAmountCheckedBeforePrice(t *testing.T) {
	sim, _ := newTestSim(t)
	sim.SetDraftPrice("abc")
	sim.SetDraftAmount("0")
	if _, err := sim.PlaceOrder(); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestValidOrdersPrependAndKeepSideAndPrice(t *testing.T) {
	sim, _ := newTestSim(t)
	sim.SetSide(domain.SideSell)
	sim.SetDraftPrice("64000")

	for i, amount := range []string{"0.1", "2", "0.00000001", " 3 "} {
		sim.SetDraftAmount(amount)
		res, err := sim.PlaceOrder()
		if err != nil {
			t.Fatalf("order %d: %v", i, err)
		}
		trades := sim.Trades()
		if len(trades) != i+1 {
			t.Fatalf("order %d: len = %d", i, len(trades))
		}
		if trades[0].ID != res.Trade.ID {
			t.Fatalf("order %d: new trade not at front", i)
		}
		d := sim.Draft()
		if d.Amount != "" || d.Price != "64000" || d.Side != domain.SideSell {
			t.Fatalf("order %d: draft = %+v", i, d)
		}
	}
	if got := sim.Notification().Message; got != "Order Placed: SELL 3 BTC @ 64000" {
		t.Fatalf("notification = %q", got)
	}
}

func TestTradeLogBoundedToTen(t *testing.T) {
	sim, _ := newTestSim(t)
	var ids []string
	for i := 1; i <= 11; i++ {
		sim.SetDraftAmount(fmt.Sprint(i))
		res, err := sim.PlaceOrder()
		if err != nil {
			t.Fatalf("order %d: %v", i, err)
		}
		ids = append(ids, res.Trade.ID)
	}
	trades := sim.Trades()
	if len(trades) != 10 {
		t.Fatalf("len = %d, want 10", len(trades))
	}
	if trades[0].ID != ids[10] {
		t.Fatal("newest trade must be first")
	}
	for _, tr := range trades {
		if tr.ID == ids[0] {
			t.Fatal("oldest trade was not evicted")
		}
	}
	if !trades[9].Amount.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("last kept amount = %s, want 2", trades[9].Amount)
	}
}

func TestCustomTradeLogSize(t *testing.T) {
	sim := New(Config{TradeLogSize: 3, Clock: NewManualClock(start)}, btcPair(), btcBook())
	defer sim.Close()
	for i := 0; i < 5; i++ {
		sim.SetDraftAmount("1")
		if _, err := sim.PlaceOrder(); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(sim.Trades()); n != 3 {
		t.Fatalf("len = %d, want 3", n)
	}
}

func TestSelectPairResetsDraft(t *testing.T) {
	sim, _ := newTestSim(t)
	sim.SetSide(domain.SideSell)
	sim.SetDraftPrice("1")
	sim.SetDraftAmount("42")
	sim.SetDraftAmount("1")
	if _, err := sim.PlaceOrder(); err != nil {
		t.Fatal(err)
	}

	xrp := xrpPair()
	sim.SelectPair(xrp, domain.OrderBookSnapshot{Pair: xrp.Symbol})
	d := sim.Draft()
	if d.Price != xrp.Price.String() {
		t.Fatalf("price = %q, want %q", d.Price, xrp.Price.String())
	}
	if d.Amount != "" {
		t.Fatalf("amount = %q, want empty", d.Amount)
	}
	if d.Side != domain.SideSell {
		t.Fatal("side must survive a pair switch")
	}
	if sim.Pair().Symbol != "XRP/USDT" || sim.Book().Pair != "XRP/USDT" {
		t.Fatal("pair and book not replaced")
	}
	if len(sim.Trades()) != 1 {
		t.Fatal("trade log must survive a pair switch")
	}
}

func TestClickBookLevelUsesPairPrecision(t *testing.T) {
	sim, _ := newTestSim(t)
	cases := []struct {
		pair  domain.TradingPair
		price string
		want  string
	}{
		{btcPair(), "64235.5", "64235.50"},
		{btcPair(), "64225", "64225.00"},
		{btcPair(), "64231.005", "64231.01"},
		{xrpPair(), "0.62", "0.6200"},
		{xrpPair(), "0.623456", "0.6235"},
	}
	for _, tc := range cases {
		sim.SelectPair(tc.pair, domain.OrderBookSnapshot{Pair: tc.pair.Symbol})
		if got := sim.ClickBookLevel(decimal.RequireFromString(tc.price)); got != tc.want {
			t.Errorf("%s click %s = %q, want %q", tc.pair.Symbol, tc.price, got, tc.want)
		}
		if sim.Draft().Price != tc.want {
			t.Errorf("draft price not updated")
		}
	}
}

func TestBookIsIsolatedFromCaller(t *testing.T) {
	book := btcBook()
	sim := New(Config{Clock: NewManualClock(start)}, btcPair(), book)
	defer sim.Close()
	book.Asks[0].Price = decimal.NewFromInt(1)
	if sim.Book().Asks[0].Price.Equal(decimal.NewFromInt(1)) {
		t.Fatal("simulator shares the caller's ladder")
	}
	got := sim.Book()
	got.Bids[0].Amount = decimal.Zero
	if sim.Book().Bids[0].Amount.IsZero() {
		t.Fatal("Book returned a shared ladder")
	}
}

func TestOrderTotal(t *testing.T) {
	sim, _ := newTestSim(t)
	cases := []struct{ price, amount, want string }{
		{"64235.50", "0.5", "32117.75"},
		{"64235.50", "", "0"},
		{"abc", "1", "0"},
		{"0.6234", "3", "1.87"},
	}
	for _, tc := range cases {
		sim.SetDraftPrice(tc.price)
		sim.SetDraftAmount(tc.amount)
		if got := sim.OrderTotal(); !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("total(%s x %s) = %s, want %s", tc.price, tc.amount, got, tc.want)
		}
	}
}

func TestSubmit(t *testing.T) {
	sim, _ := newTestSim(t)

	res, err := sim.Submit(domain.PlaceOrderRequest{Pair: "btc-usdt", Side: "SELL", Price: "64231.00", Amount: "0.25"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Accepted || res.Trade.Side != domain.SideSell {
		t.Fatalf("result = %+v", res)
	}
	if res.Notification.Message != "Order Placed: SELL 0.25 BTC @ 64231.00" {
		t.Fatalf("notification = %q", res.Notification.Message)
	}

	_, err = sim.Submit(domain.PlaceOrderRequest{Pair: "ETH/USDT", Side: "buy", Price: "1", Amount: "1"})
	if !errors.Is(err, domain.ErrPairMismatch) {
		t.Fatalf("err = %v, want ErrPairMismatch", err)
	}
	_, err = sim.Submit(domain.PlaceOrderRequest{Side: "hold", Amount: "1"})
	if !errors.Is(err, domain.ErrInvalidSide) {
		t.Fatalf("err = %v, want ErrInvalidSide", err)
	}
	if d := sim.Draft(); d.Side != domain.SideSell || d.Amount != "" {
		t.Fatalf("failed submit mutated draft: %+v", d)
	}

	sim.SetDraftAmount("7")
	before := sim.Draft()
	res, _ = sim.Submit(domain.PlaceOrderRequest{Side: "buy", Price: "1", Amount: "-1"})
	if res.Accepted || res.Reason != MsgInvalidAmount {
		t.Fatalf("result = %+v", res)
	}
	if d := sim.Draft(); d != before {
		t.Fatalf("rejected submit changed draft: %+v, want %+v", d, before)
	}
	_, err = sim.Submit(domain.PlaceOrderRequest{Price: "abc", Amount: "1"})
	if !errors.Is(err, domain.ErrInvalidPrice) {
		t.Fatalf("err = %v, want ErrInvalidPrice", err)
	}
	if d := sim.Draft(); d != before {
		t.Fatalf("bad price submit changed draft: %+v", d)
	}
	if len(sim.Trades()) != 1 {
		t.Fatal("only the first submit may fill")
	}
}

func TestNotificationExpires(t *testing.T) {
	sim, clock := newTestSim(t)
	var dismissed []domain.Notification
	sim.onDismiss = func(_ string, n domain.Notification) { dismissed = append(dismissed, n) }

	sim.SetDraftAmount("0")
	sim.PlaceOrder()
	if sim.Notification().IsZero() {
		t.Fatal("notification not shown")
	}
	if want := start.Add(domain.DefaultNotificationTTL); !sim.Notification().ExpiresAt.Equal(want) {
		t.Fatalf("expires at %v, want %v", sim.Notification().ExpiresAt, want)
	}

	clock.Advance(2999 * time.Millisecond)
	if sim.Notification().IsZero() {
		t.Fatal("notification dismissed early")
	}
	clock.Advance(time.Millisecond)
	if !sim.Notification().IsZero() {
		t.Fatal("notification still showing after ttl")
	}
	if len(dismissed) != 1 || dismissed[0].Message != MsgInvalidAmount {
		t.Fatalf("dismiss callbacks = %+v", dismissed)
	}
	if clock.Pending() != 0 {
		t.Fatalf("pending timers = %d", clock.Pending())
	}
}

func TestNewerNotificationCancelsOlderTimer(t *testing.T) {
	sim, clock := newTestSim(t)
	var dismissed int
	sim.onDismiss = func(string, domain.Notification) { dismissed++ }

	sim.SetDraftAmount("")
	sim.PlaceOrder()
	first := sim.Notification()

	clock.Advance(2 * time.Second)
	sim.SetDraftAmount("1")
	sim.PlaceOrder()
	second := sim.Notification()
	if second.ID == first.ID || !strings.HasPrefix(second.Message, "Order Placed") {
		t.Fatalf("second notification = %+v", second)
	}
	if clock.Pending() != 1 {
		t.Fatalf("pending timers = %d, want only the newest", clock.Pending())
	}

	clock.Advance(time.Second)
	if sim.Notification().ID != second.ID {
		t.Fatal("stale timer cleared the newer notification")
	}
	if dismissed != 0 {
		t.Fatalf("dismissed = %d, want 0", dismissed)
	}

	clock.Advance(2 * time.Second)
	if !sim.Notification().IsZero() || dismissed != 1 {
		t.Fatal("newest notification did not expire on its own schedule")
	}
}

func TestDismissStaleIDIsNoop(t *testing.T) {
	sim, _ := newTestSim(t)
	first := sim.Notify(domain.NotificationInfo, "one")
	second := sim.Notify(domain.NotificationInfo, "two")

	if sim.Dismiss(first.ID) {
		t.Fatal("stale dismiss reported success")
	}
	if sim.Notification().ID != second.ID {
		t.Fatal("stale dismiss cleared the active notification")
	}
	if !sim.Dismiss(second.ID) {
		t.Fatal("dismiss of active notification failed")
	}
	if sim.Dismiss(second.ID) {
		t.Fatal("second dismiss of the same id reported success")
	}
}

func TestCloseStopsTimers(t *testing.T) {
	sim, clock := newTestSim(t)
	sim.Notify(domain.NotificationInfo, "bye")
	sim.Close()
	if clock.Pending() != 0 {
		t.Fatalf("pending timers = %d after Close", clock.Pending())
	}
	if n := sim.Notify(domain.NotificationInfo, "late"); !n.IsZero() {
		t.Fatal("closed session showed a notification")
	}
}

func TestLastActive(t *testing.T) {
	sim, clock := newTestSim(t)
	if !sim.LastActive().Equal(start) {
		t.Fatalf("last active = %v", sim.LastActive())
	}
	clock.Advance(time.Minute)
	sim.SetDraftAmount("1")
	if !sim.LastActive().Equal(start.Add(time.Minute)) {
		t.Fatalf("last active = %v", sim.LastActive())
	}
	clock.Advance(time.Minute)
	sim.Notification()
	if !sim.LastActive().Equal(start.Add(time.Minute)) {
		t.Fatal("reads must not refresh activity")
	}
}

func TestViewIsConsistentCopy(t *testing.T) {
	sim, _ := newTestSim(t)
	sim.SetDraftPrice("64235.50")
	sim.SetDraftAmount("0.5")
	v := sim.View()
	if v.ID != "s-1" || v.Pair.Symbol != "BTC/USDT" || len(v.Book.Asks) != 5 {
		t.Fatalf("view = %+v", v)
	}
	if !v.OrderTotal.Equal(decimal.RequireFromString("32117.75")) {
		t.Fatalf("order total = %s", v.OrderTotal)
	}
	v.Book.Asks[0].Amount = decimal.Zero
	if sim.Book().Asks[0].Amount.IsZero() {
		t.Fatal("view shares the book")
	}
}
