package market

// ItemDef is an immutable value object describing one tradeable item kind:
// its abstract external value and per-unit transport cost, which govern
// fallback trade once local matching is exhausted (spec.md §4.9). Carries
// forward the teacher's TradeGood validated-constructor idiom.
type ItemDef struct {
	symbol         string
	externalValue  float64
	transportCost  float64
	optOutExternal bool
}

// NewItemDef creates a validated ItemDef.
func NewItemDef(symbol string, externalValue, transportCost float64, optOutExternal bool) (ItemDef, error) {
	if symbol == "" {
		return ItemDef{}, ErrInvalidItemSymbol
	}
	if externalValue < 0 {
		return ItemDef{}, ErrInvalidPrice
	}
	if transportCost < 0 {
		return ItemDef{}, ErrInvalidPrice
	}
	return ItemDef{symbol: symbol, externalValue: externalValue, transportCost: transportCost, optOutExternal: optOutExternal}, nil
}

func (d ItemDef) Symbol() string          { return d.symbol }
func (d ItemDef) ExternalValue() float64  { return d.externalValue }
func (d ItemDef) TransportCost() float64  { return d.transportCost }
func (d ItemDef) OptOutExternal() bool    { return d.optOutExternal }
