package market

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simcore/simcore/internal/domain/geom"
)

type nopLogger struct{ warnings []string }

func (l *nopLogger) Warnf(format string, args ...any) { l.warnings = append(l.warnings, format) }

const (
	sellerA ParticipantID = 1
	sellerB ParticipantID = 2
	buyerC  ParticipantID = 3
)

// TestMakeTrades_BasicTrade is spec.md §8 scenario 1: the nearer seller (A)
// is matched to the buyer; the farther seller (B) is untouched because its
// stock threshold leaves no exportable surplus.
func TestMakeTrades_BasicTrade(t *testing.T) {
	m := New()
	def, err := NewItemDef("cereal", 1000, 10, false)
	require.NoError(t, err)
	book := m.RegisterItem(def)

	book.SetCapital(sellerA, 3)
	book.SetCapital(sellerB, 3)

	sellA, err := NewSellOrder(sellerA, geom.NewVec2(1, 0), 3, 3)
	require.NoError(t, err)
	sellB, err := NewSellOrder(sellerB, geom.NewVec2(10, 10), 3, 3)
	require.NoError(t, err)
	buy, err := NewBuyOrder(buyerC, geom.NewVec2(0, 0), 2)
	require.NoError(t, err)

	book.RegisterSell(sellA)
	book.RegisterSell(sellB)
	book.RegisterBuy(buy)

	log := &nopLogger{}
	trades := m.MakeTrades(log)

	require.Len(t, trades, 1)
	require.Equal(t, Trade{Item: "cereal", Buyer: buyerC, Seller: sellerA, Qty: 2, Kind: TradeLocal}, trades[0])

	require.Equal(t, 1, book.Capital(sellerA))
	require.Equal(t, 3, book.Capital(sellerB))
	require.Equal(t, 2, book.Capital(buyerC))
}

func TestMakeTrades_SelfTradeSkippedWithWarning(t *testing.T) {
	m := New()
	def, _ := NewItemDef("wood", 5, 1, false)
	book := m.RegisterItem(def)
	book.SetCapital(sellerA, 5)

	sell, _ := NewSellOrder(sellerA, geom.NewVec2(0, 0), 5, 5)
	buy, _ := NewBuyOrder(sellerA, geom.NewVec2(0, 0), 2)
	book.RegisterSell(sell)
	book.RegisterBuy(buy)

	log := &nopLogger{}
	trades := m.MakeTrades(log)
	require.Len(t, trades, 1)
	require.Equal(t, TradeExternalBuy, trades[0].Kind)
	require.NotEmpty(t, log.warnings)
}

func TestMakeTrades_ExternalFallbackFillsUnmatchedBuy(t *testing.T) {
	m := New()
	def, _ := NewItemDef("steel", 100, 2, false)
	book := m.RegisterItem(def)

	buy, _ := NewBuyOrder(buyerC, geom.NewVec2(0, 0), 4)
	book.RegisterBuy(buy)

	trades := m.MakeTrades(&nopLogger{})
	require.Len(t, trades, 1)
	require.Equal(t, TradeExternalBuy, trades[0].Kind)
	require.Equal(t, External, trades[0].Seller)
	require.Equal(t, 4, book.Capital(buyerC))
}

func TestMakeTrades_OptOutSkipsExternal(t *testing.T) {
	m := New()
	def, _ := NewItemDef("contraband", 100, 2, true)
	book := m.RegisterItem(def)

	buy, _ := NewBuyOrder(buyerC, geom.NewVec2(0, 0), 4)
	book.RegisterBuy(buy)

	trades := m.MakeTrades(&nopLogger{})
	require.Empty(t, trades)
	require.Equal(t, 0, book.Capital(buyerC))
}

// TestMakeTrades_PartialLocalMatchExportsRemainder mirrors egregoria's
// make_trades: a seller only partially consumed by a local trade still
// sweeps its leftover quantity into the external pass in the same tick.
func TestMakeTrades_PartialLocalMatchExportsRemainder(t *testing.T) {
	m := New()
	def, err := NewItemDef("timber", 20, 1, false)
	require.NoError(t, err)
	book := m.RegisterItem(def)
	book.SetCapital(sellerA, 10)

	sell, err := NewSellOrder(sellerA, geom.NewVec2(0, 0), 10, 0)
	require.NoError(t, err)
	buy, err := NewBuyOrder(buyerC, geom.NewVec2(0, 0), 2)
	require.NoError(t, err)
	book.RegisterSell(sell)
	book.RegisterBuy(buy)

	trades := m.MakeTrades(&nopLogger{})
	require.Len(t, trades, 2)

	require.Equal(t, Trade{Item: "timber", Buyer: buyerC, Seller: sellerA, Qty: 2, Kind: TradeLocal}, trades[0])
	require.Equal(t, Trade{Item: "timber", Buyer: External, Seller: sellerA, Qty: 8, Kind: TradeExternalSell}, trades[1])

	require.Equal(t, 0, book.Capital(sellerA))
	require.Equal(t, 2, book.Capital(buyerC))
}

func TestMakeTrades_SellerCapitalShortfallSkipsWithWarning(t *testing.T) {
	m := New()
	def, _ := NewItemDef("ore", 50, 1, false)
	book := m.RegisterItem(def)
	book.SetCapital(sellerA, 1) // below the sell order's quantity

	sell, _ := NewSellOrder(sellerA, geom.NewVec2(0, 0), 5, 0)
	buy, _ := NewBuyOrder(buyerC, geom.NewVec2(0, 0), 5)
	book.RegisterSell(sell)
	book.RegisterBuy(buy)

	log := &nopLogger{}
	trades := m.MakeTrades(log)
	require.Len(t, trades, 1)
	require.Equal(t, TradeExternalBuy, trades[0].Kind)
	require.NotEmpty(t, log.warnings)
}
