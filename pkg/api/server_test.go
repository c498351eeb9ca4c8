package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bourse/pkg/engine"
	"bourse/pkg/ledger"
	"bourse/pkg/matching"
	"bourse/pkg/protocol"
	"bourse/pkg/store"
)

const testISIN = "IRO1MAPN0001"

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "bourse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	buyer := ledger.NewBroker(1, "Alpha", 100_000_000)
	seller := ledger.NewBroker(2, "Beta", 100_000_000)
	buySh := ledger.NewShareholder(1, "Fund A")
	sellSh := ledger.NewShareholder(2, "Fund B")
	sellSh.SetPosition(testISIN, 10_000)

	eng := engine.New(
		zap.NewNop().Sugar(),
		[]*matching.Security{matching.NewSecurity(testISIN, "MAPN", 15000)},
		[]*ledger.Broker{buyer, seller},
		[]*ledger.Shareholder{buySh, sellSh},
		0,
	)
	t.Cleanup(eng.Close)

	return NewServer(zap.NewNop().Sugar(), eng, st, fixedClock{t: time.Unix(1700000000, 0)})
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func enterBody(id int64, side string, qty, price int64) EnterOrderRequest {
	brokerID, shareholderID := int64(1), int64(1)
	if side == "SELL" {
		brokerID, shareholderID = 2, 2
	}
	return EnterOrderRequest{
		RequestID: id, Security: testISIN, OrderID: id,
		Type: "NEW", Side: side, Quantity: qty, Price: price,
		BrokerID: brokerID, ShareholderID: shareholderID,
	}
}

func eventKinds(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var resp EventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	out := make([]string, len(resp.Events))
	for i, ev := range resp.Events {
		out[i] = ev.Kind
	}
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEnterOrderEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/orders", enterBody(1, "SELL", 100, 15500))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"OrderAccepted"}, eventKinds(t, rec))

	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders", enterBody(2, "BUY", 100, 15500))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"OrderAccepted", "OrderExecuted", "TradeRecord"}, eventKinds(t, rec))
}

func TestEnterOrderValidation(t *testing.T) {
	s := newTestServer(t)

	bad := enterBody(1, "HOLD", 100, 15500)
	rec := doJSON(t, s, http.MethodPost, "/api/v1/orders", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad = enterBody(2, "BUY", 0, 15500)
	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad = enterBody(3, "BUY", 100, 15500)
	bad.PeakSize = 10
	bad.StopPrice = 15600
	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad = enterBody(4, "BUY", 100, 15500)
	bad.StopPrice = 15600
	bad.MinExecQty = 10
	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteOrderEndpoint(t *testing.T) {
	s := newTestServer(t)
	doJSON(t, s, http.MethodPost, "/api/v1/orders", enterBody(1, "BUY", 100, 15500))

	rec := doJSON(t, s, http.MethodPost, "/api/v1/orders/delete", DeleteOrderRequest{
		RequestID: 2, Security: testISIN, Side: "BUY", OrderID: 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"OrderDeleted"}, eventKinds(t, rec))
}

func TestBookEndpointShowsVisibleQuantity(t *testing.T) {
	s := newTestServer(t)

	iceberg := enterBody(1, "SELL", 450, 15500)
	iceberg.PeakSize = 200
	doJSON(t, s, http.MethodPost, "/api/v1/orders", iceberg)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/securities/"+testISIN+"/book", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap BookSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, int64(200), snap.Asks[0].Quantity, "hidden part stays hidden")
	assert.Equal(t, "CONTINUOUS", snap.State)
}

func TestStateChangeEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/securities/"+testISIN+"/state",
		ChangeStateRequest{Target: "AUCTION"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"SecurityStateChanged", "OpeningPrice"}, eventKinds(t, rec))

	rec = doJSON(t, s, http.MethodPost, "/api/v1/securities/"+testISIN+"/state",
		ChangeStateRequest{Target: "LUNCH"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/securities/IRO1NONE0001/state",
		ChangeStateRequest{Target: "AUCTION"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLedgerEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/brokers/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var b BrokerInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, "Alpha", b.Name)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/shareholders/2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sh ShareholderInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sh))
	assert.Equal(t, int64(10_000), sh.Positions[testISIN])

	rec = doJSON(t, s, http.MethodGet, "/api/v1/brokers/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTradesEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/securities/"+testISIN+"/trades", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trades []protocol.TradeRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	assert.Empty(t, trades)
}
