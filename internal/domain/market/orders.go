package market

import "github.com/simcore/simcore/internal/domain/geom"

// ParticipantID is an opaque identifier for a market participant (company,
// freight station, household) — caller-assigned, per the leaf-package
// pattern used by railway/traffic/router.
type ParticipantID uint64

// External is the sentinel participant representing the abstract external
// market (spec.md §4.9 "filled from an abstract External source").
const External ParticipantID = 0

// BuyOrder is one participant's standing demand for an item.
type BuyOrder struct {
	Participant ParticipantID
	Pos         geom.Vec2
	Qty         int
}

// NewBuyOrder validates and builds a BuyOrder.
func NewBuyOrder(participant ParticipantID, pos geom.Vec2, qty int) (BuyOrder, error) {
	if qty <= 0 {
		return BuyOrder{}, ErrInvalidQuantity
	}
	return BuyOrder{Participant: participant, Pos: pos, Qty: qty}, nil
}

// SellOrder is one participant's standing supply of an item, offering qty
// above its stock threshold.
type SellOrder struct {
	Participant    ParticipantID
	Pos            geom.Vec2
	Qty            int
	StockThreshold int
}

// NewSellOrder validates and builds a SellOrder.
func NewSellOrder(participant ParticipantID, pos geom.Vec2, qty, stockThreshold int) (SellOrder, error) {
	if qty <= 0 {
		return SellOrder{}, ErrInvalidQuantity
	}
	return SellOrder{Participant: participant, Pos: pos, Qty: qty, StockThreshold: stockThreshold}, nil
}
