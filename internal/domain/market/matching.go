package market

import "sort"

// Logger is the minimal warning sink matching.go needs; callers typically
// pass the application-layer SimLogger.
type Logger interface {
	Warnf(format string, args ...any)
}

// TradeKind distinguishes a locally-matched trade from an external fill or
// export (spec.md §4.9 "abstract External source").
type TradeKind int

const (
	TradeLocal TradeKind = iota
	TradeExternalBuy
	TradeExternalSell
)

// Trade is one cleared exchange, as returned by MakeTrades.
type Trade struct {
	Item   string
	Buyer  ParticipantID
	Seller ParticipantID
	Qty    int
	Kind   TradeKind
}

type candidate struct {
	buyIdx, sellIdx int
	distSq          float64
}

// MakeTrades runs one tick's clearing pass across every registered item and
// returns the trades produced, per spec.md §4.9's deterministic procedure.
// Each participant takes part in at most one local trade or external buy
// per item per tick; a seller whose order was only partly filled locally
// may also export its remaining surplus in the same tick. Order books are
// consulted in symbol-sorted order so the result is reproducible
// across runs of the same tick's inputs.
func (m *Market) MakeTrades(log Logger) []Trade {
	var out []Trade
	symbols := make([]string, 0, len(m.books))
	for s := range m.books {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		out = append(out, m.clearBook(m.books[sym], log)...)
	}
	return out
}

func (m *Market) clearBook(b *Book, log Logger) []Trade {
	var trades []Trade
	usedBuy := make(map[int]bool)
	usedSell := make(map[int]bool)

	// sellRemaining tracks each sell order's unfilled quantity as local
	// trades consume part of it; sellComplete marks an order as fully
	// consumed so it drops out of the external pass below, mirroring
	// egregoria's sell_orders.remove on a complete match vs. order.qty -=
	// trade.qty on a partial one.
	sellRemaining := make([]int, len(b.sells))
	sellComplete := make([]bool, len(b.sells))
	for si, sell := range b.sells {
		sellRemaining[si] = sell.Qty
	}

	var candidates []candidate
	for bi, buy := range b.buys {
		for si, sell := range b.sells {
			if sell.Qty < buy.Qty {
				continue
			}
			candidates = append(candidates, candidate{buyIdx: bi, sellIdx: si, distSq: buy.Pos.DistanceTo2(sell.Pos)})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].distSq < candidates[j].distSq })

	usedParticipant := make(map[ParticipantID]bool)
	for _, c := range candidates {
		if usedBuy[c.buyIdx] || usedSell[c.sellIdx] {
			continue
		}
		buy := b.buys[c.buyIdx]
		sell := b.sells[c.sellIdx]
		if usedParticipant[buy.Participant] || usedParticipant[sell.Participant] {
			continue
		}
		if buy.Participant == sell.Participant {
			log.Warnf("market: skipping self-trade for participant %d on %s", buy.Participant, b.def.symbol)
			continue
		}
		if b.Capital(sell.Participant) < sell.Qty {
			log.Warnf("market: seller %d capital fell below order on %s, skipping", sell.Participant, b.def.symbol)
			continue
		}

		qty := buy.Qty
		b.AddCapital(buy.Participant, qty)
		b.AddCapital(sell.Participant, -qty)
		trades = append(trades, Trade{Item: b.def.symbol, Buyer: buy.Participant, Seller: sell.Participant, Qty: qty, Kind: TradeLocal})

		usedBuy[c.buyIdx] = true
		usedSell[c.sellIdx] = true
		usedParticipant[buy.Participant] = true
		usedParticipant[sell.Participant] = true

		sellRemaining[c.sellIdx] -= qty
		if sellRemaining[c.sellIdx] <= 0 {
			sellComplete[c.sellIdx] = true
		}
	}

	if b.def.optOutExternal {
		return trades
	}

	for bi, buy := range b.buys {
		if usedBuy[bi] || usedParticipant[buy.Participant] {
			continue
		}
		b.AddCapital(buy.Participant, buy.Qty)
		trades = append(trades, Trade{Item: b.def.symbol, Buyer: buy.Participant, Seller: External, Qty: buy.Qty, Kind: TradeExternalBuy})
		usedParticipant[buy.Participant] = true
	}
	for si, sell := range b.sells {
		if sellComplete[si] {
			continue
		}
		surplus := sellRemaining[si] - sell.StockThreshold
		if surplus <= 0 {
			continue
		}
		if b.Capital(sell.Participant) < surplus {
			continue
		}
		b.AddCapital(sell.Participant, -surplus)
		trades = append(trades, Trade{Item: b.def.symbol, Buyer: External, Seller: sell.Participant, Qty: surplus, Kind: TradeExternalSell})
	}

	return trades
}
