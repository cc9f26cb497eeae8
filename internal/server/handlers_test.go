package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hb-market-api/internal/history"
	"hb-market-api/internal/snapshot"
	"hb-market-api/internal/store"
	"hb-market-api/internal/types"
)

// stubSupervisor serves a fixed connection state to the handlers.
type stubSupervisor struct {
	state        types.ConnState
	reconnects   int
	lastReceived time.Time
}

func (s *stubSupervisor) Start(ctx context.Context) error { return nil }
func (s *stubSupervisor) Stop(ctx context.Context)        {}
func (s *stubSupervisor) ForceReconnect()                 { s.reconnects++ }
func (s *stubSupervisor) State() types.ConnState          { return s.state }

func (s *stubSupervisor) Status() types.ConnectionStatus {
	return types.ConnectionStatus{
		State:            s.state.String(),
		Connected:        s.state == types.StateConnected,
		ReceivingData:    s.state == types.StateConnected,
		LastDataReceived: s.lastReceived,
	}
}

type fixture struct {
	snap *snapshot.Store
	sup  *stubSupervisor
	srv  *httptest.Server
}

func newFixture(t *testing.T, catalog *store.Catalog) *fixture {
	t.Helper()

	snap := snapshot.New()
	sup := &stubSupervisor{state: types.StateConnecting, lastReceived: time.Now()}
	cfg := &store.Config{Mode: "SIM", TickersFile: "tickers.json"}

	s := New(snap, sup, history.NewSimProvider(), catalog, cfg)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	return &fixture{snap: snap, sup: sup, srv: srv}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, body
}

func seedQuote(f *fixture, class types.Class, ticker string, last float64) {
	f.snap.Upsert(class, ticker, types.Quote{
		Ticker:    ticker,
		Class:     class,
		Last:      last,
		UpdatedAt: time.Now(),
	})
}

func TestRootListsEndpoints(t *testing.T) {
	f := newFixture(t, &store.Catalog{})

	resp, body := f.get(t, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out["version"] != apiVersion {
		t.Errorf("expected version %s, got %v", apiVersion, out["version"])
	}
	if _, ok := out["endpoints"]; !ok {
		t.Error("expected endpoint map in root response")
	}
}

// A catalogued ticker with no update yet: lookup is 404 and health reflects
// the connection state, never a server error.
func TestUnknownTickerBeforeFirstUpdate(t *testing.T) {
	f := newFixture(t, &store.Catalog{StockPrefixes: []string{"GGAL"}})

	resp, _ := f.get(t, "/securities/ticker/GGAL")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 before first update, got %d", resp.StatusCode)
	}

	resp, body := f.get(t, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out["status"] != "connecting" {
		t.Errorf("expected connecting status, got %v", out["status"])
	}
}

func TestListingsEmptyUntilDataArrives(t *testing.T) {
	f := newFixture(t, &store.Catalog{})

	for _, path := range []string{"/options", "/securities", "/cauciones"} {
		resp, body := f.get(t, path)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		var out []any
		if err := json.Unmarshal(body, &out); err != nil {
			t.Errorf("%s: expected JSON array, got %s", path, body)
		}
		if len(out) != 0 {
			t.Errorf("%s: expected empty array, got %d items", path, len(out))
		}
	}
}

func TestOptionsByPrefix(t *testing.T) {
	f := newFixture(t, &store.Catalog{})
	seedQuote(f, types.ClassOption, "GFG26JUN1500C", 100)
	seedQuote(f, types.ClassOption, "GFG26JUN1700C", 55)
	seedQuote(f, types.ClassOption, "PAM26JUN900C", 30)

	resp, body := f.get(t, "/options/prefix/GFG")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var quotes []types.Quote
	if err := json.Unmarshal(body, &quotes); err != nil {
		t.Fatal(err)
	}
	if len(quotes) != 2 {
		t.Errorf("expected 2 GFG options, got %d", len(quotes))
	}

	resp, _ = f.get(t, "/options/prefix/ZZZ")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unmatched prefix, got %d", resp.StatusCode)
	}
}

func TestStocksDefaultPrefixFilter(t *testing.T) {
	f := newFixture(t, &store.Catalog{StockPrefixes: []string{"GGAL"}})
	seedQuote(f, types.ClassStock, "GGAL", 4500)
	seedQuote(f, types.ClassStock, "COME", 120)

	resp, body := f.get(t, "/stocks")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var quotes []types.Quote
	if err := json.Unmarshal(body, &quotes); err != nil {
		t.Fatal(err)
	}
	if len(quotes) != 1 || quotes[0].Ticker != "GGAL" {
		t.Errorf("expected only GGAL under default prefixes, got %v", quotes)
	}

	// /stocks/all bypasses the default filter.
	resp, body = f.get(t, "/stocks/all")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var wrapped struct {
		TotalCount int `json:"total_count"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		t.Fatal(err)
	}
	if wrapped.TotalCount != 2 {
		t.Errorf("expected 2 stocks in /stocks/all, got %d", wrapped.TotalCount)
	}
}

func TestStocksByTickerCaseInsensitive(t *testing.T) {
	f := newFixture(t, &store.Catalog{})
	seedQuote(f, types.ClassStock, "GGAL", 4500)

	resp, _ := f.get(t, "/stocks/ticker/ggal")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for lowercase ticker, got %d", resp.StatusCode)
	}
}

func TestSecuritiesTickerMatchesAllSettlements(t *testing.T) {
	f := newFixture(t, &store.Catalog{})
	seedQuote(f, types.ClassSecurity, "GGAL - 24hs", 4500)
	seedQuote(f, types.ClassSecurity, "GGAL - SPOT", 4480)
	seedQuote(f, types.ClassSecurity, "PAMP - 24hs", 900)

	resp, body := f.get(t, "/securities/ticker/GGAL")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var quotes []types.Quote
	if err := json.Unmarshal(body, &quotes); err != nil {
		t.Fatal(err)
	}
	if len(quotes) != 2 {
		t.Errorf("expected both settlements for GGAL, got %d", len(quotes))
	}
}

func TestCauciones(t *testing.T) {
	f := newFixture(t, &store.Catalog{})
	f.snap.UpsertRepo(types.RepoRate{
		Settlement: time.Now().AddDate(0, 0, 1),
		Last:       0.35,
	})

	resp, body := f.get(t, "/cauciones")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var rates []types.RepoRate
	if err := json.Unmarshal(body, &rates); err != nil {
		t.Fatal(err)
	}
	if len(rates) != 1 || rates[0].Last != 0.35 {
		t.Errorf("unexpected cauciones payload: %v", rates)
	}
}

func TestConfigReportsCounts(t *testing.T) {
	f := newFixture(t, &store.Catalog{OptionPrefixes: []string{"GFG"}})
	seedQuote(f, types.ClassOption, "GFG26JUN1500C", 100)
	seedQuote(f, types.ClassSecurity, "GGAL - 24hs", 4500)

	resp, body := f.get(t, "/config")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out["options_count"] != float64(1) {
		t.Errorf("expected options_count 1, got %v", out["options_count"])
	}
	if out["securities_count"] != float64(1) {
		t.Errorf("expected securities_count 1, got %v", out["securities_count"])
	}
}

func TestReconnectEndpoint(t *testing.T) {
	f := newFixture(t, &store.Catalog{})

	resp, err := http.Post(f.srv.URL+"/reconnect", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if f.sup.reconnects != 1 {
		t.Errorf("expected one forced reconnect, got %d", f.sup.reconnects)
	}
}

func TestHistoricalRequiresSession(t *testing.T) {
	f := newFixture(t, &store.Catalog{})
	f.sup.state = types.StateDisconnected

	resp, _ := f.get(t, "/historical/GGAL")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without session, got %d", resp.StatusCode)
	}

	// Snapshot endpoints stay readable regardless of connectivity.
	resp, _ = f.get(t, "/options")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /options while disconnected, got %d", resp.StatusCode)
	}
}

func TestHistoricalValidatesDays(t *testing.T) {
	f := newFixture(t, &store.Catalog{})
	f.sup.state = types.StateConnected

	resp, _ := f.get(t, "/historical/GGAL?days=9999")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for out-of-range days, got %d", resp.StatusCode)
	}

	resp, body := f.get(t, "/historical/GGAL?days=10")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		TotalRecords int            `json:"total_records"`
		Data         []types.Candle `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.TotalRecords != len(out.Data) || out.TotalRecords == 0 {
		t.Errorf("expected consistent non-empty candle payload, got %d/%d", out.TotalRecords, len(out.Data))
	}
}

func TestIntradayBatch(t *testing.T) {
	f := newFixture(t, &store.Catalog{})
	f.sup.state = types.StateConnected

	resp, err := http.Post(f.srv.URL+"/intraday/batch", "application/json",
		strings.NewReader(`{"symbols":["GGAL","PAMP"]}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Data map[string][]types.Candle `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Data) != 2 {
		t.Errorf("expected results for 2 symbols, got %d", len(out.Data))
	}
}

func TestBatchRejectsMissingSymbols(t *testing.T) {
	f := newFixture(t, &store.Catalog{})
	f.sup.state = types.StateConnected

	resp, err := http.Post(f.srv.URL+"/historical/batch", "application/json",
		strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing symbols, got %d", resp.StatusCode)
	}
}
