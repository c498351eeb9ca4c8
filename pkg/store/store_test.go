package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bourse/pkg/ledger"
	"bourse/pkg/protocol"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "bourse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestBrokerRoundtrip(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.SaveBroker(ledger.NewBroker(1, "Alpha Securities", 5_000_000)))
	require.NoError(t, st.SaveBroker(ledger.NewBroker(2, "Beta Brokerage", 3_000_000)))

	got, err := st.LoadBrokers()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "Alpha Securities", got[0].Name)
	assert.Equal(t, int64(5_000_000), got[0].Credit())
}

func TestShareholderRoundtrip(t *testing.T) {
	st := openTestStore(t)

	sh := ledger.NewShareholder(7, "Fund")
	sh.SetPosition("IRO1MAPN0001", 1000)
	sh.SetPosition("IRO1FOLD0001", 250)
	require.NoError(t, st.SaveShareholder(sh))

	got, err := st.LoadShareholders()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, int64(1000), got[0].Position("IRO1MAPN0001"))
	assert.Equal(t, int64(250), got[0].Position("IRO1FOLD0001"))
}

func TestSecurityRoundtrip(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.SaveSecurity(SecurityDef{ISIN: "IRO1MAPN0001", Symbol: "MAPN", LastTradePrice: 15500}))
	require.NoError(t, st.SaveSecurity(SecurityDef{ISIN: "IRO1FOLD0001", Symbol: "FOLD", LastTradePrice: 4200}))

	got, err := st.LoadSecurities()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "FOLD", got[0].Symbol)
	assert.Equal(t, int64(15500), got[1].LastTradePrice)
}

func TestTradeHistoryOrderAndLimit(t *testing.T) {
	st := openTestStore(t)
	const isin = "IRO1MAPN0001"

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, st.AppendTrade(protocol.TradeRecord{
			ID: "t", Security: isin, Price: 15000 + i, Quantity: i,
		}))
	}
	// A second security's history stays separate.
	require.NoError(t, st.AppendTrade(protocol.TradeRecord{
		ID: "t", Security: "IRO1FOLD0001", Price: 4200, Quantity: 1,
	}))

	got, err := st.Trades(isin, 0)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, rec := range got {
		assert.Equal(t, int64(15000+i+1), rec.Price, "settlement order preserved")
	}

	limited, err := st.Trades(isin, 3)
	require.NoError(t, err)
	assert.Len(t, limited, 3)

	other, err := st.Trades("IRO1FOLD0001", 0)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestTradeHistorySurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bourse.db")
	const isin = "IRO1MAPN0001"

	st, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, st.AppendTrade(protocol.TradeRecord{ID: "a", Security: isin, Price: 15500, Quantity: 10}))
	require.NoError(t, st.Close())

	// Reopening must continue the sequence, not restart it.
	st, err = Open(dir)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.AppendTrade(protocol.TradeRecord{ID: "b", Security: isin, Price: 15600, Quantity: 20}))

	got, err := st.Trades(isin, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestRunTradeSinkPersistsTradeRecords(t *testing.T) {
	st := openTestStore(t)

	events := make(chan protocol.Event, 8)
	events <- protocol.OrderAccepted{OrderID: 1}
	events <- protocol.TradeRecord{ID: "a", Security: "IRO1MAPN0001", Price: 15500, Quantity: 10}
	events <- protocol.TradeRecord{ID: "b", Security: "IRO1MAPN0001", Price: 15600, Quantity: 20}
	close(events)

	st.RunTradeSink(events, nil)

	got, err := st.Trades("IRO1MAPN0001", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}
