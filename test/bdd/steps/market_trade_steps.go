package steps

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/market"
)

// marketTradeContext drives spec.md §8 scenario 1 ("Basic trade") through
// market.Market's public Book/MakeTrades surface, the same API
// internal/domain/market/market_test.go exercises directly.
type marketTradeContext struct {
	m        *market.Market
	book     *market.Book
	byName   map[string]market.ParticipantID
	nextID   market.ParticipantID
	trades   []market.Trade
	tradeErr error
}

func (c *marketTradeContext) reset() {
	c.m = market.New()
	c.book = nil
	c.byName = make(map[string]market.ParticipantID)
	c.nextID = 1
	c.trades = nil
	c.tradeErr = nil
}

func (c *marketTradeContext) participant(name string) market.ParticipantID {
	if id, ok := c.byName[name]; ok {
		return id
	}
	id := c.nextID
	c.nextID++
	c.byName[name] = id
	return id
}

func (c *marketTradeContext) aMarketItemWithExternalValueAndTransportCost(symbol string, extValue, transportCost float64) error {
	def, err := market.NewItemDef(symbol, extValue, transportCost, false)
	if err != nil {
		return err
	}
	c.book = c.m.RegisterItem(def)
	return nil
}

func (c *marketTradeContext) sellerAtWithUnitsAndCapital(name string, x, y float64, qty, capital int) error {
	id := c.participant(name)
	c.book.SetCapital(id, capital)
	order, err := market.NewSellOrder(id, geom.NewVec2(x, y), qty, qty)
	if err != nil {
		return err
	}
	c.book.RegisterSell(order)
	return nil
}

func (c *marketTradeContext) buyerAtWantsToBuyUnits(name string, x, y float64, qty int) error {
	id := c.participant(name)
	order, err := market.NewBuyOrder(id, geom.NewVec2(x, y), qty)
	if err != nil {
		return err
	}
	c.book.RegisterBuy(order)
	return nil
}

func (c *marketTradeContext) theMarketClearsTrades() error {
	c.trades = c.m.MakeTrades(noopMarketLogger{})
	return nil
}

func (c *marketTradeContext) exactlyTradesAreProduced(n int) error {
	if len(c.trades) != n {
		return fmt.Errorf("expected %d trades, got %d: %+v", n, len(c.trades), c.trades)
	}
	return nil
}

func (c *marketTradeContext) tradeIsALocalTradeFromToForUnits(idx int, seller, buyer string, qty int) error {
	if idx < 1 || idx > len(c.trades) {
		return fmt.Errorf("no trade at index %d", idx)
	}
	trade := c.trades[idx-1]
	if trade.Kind != market.TradeLocal {
		return fmt.Errorf("expected a local trade, got kind %v", trade.Kind)
	}
	if trade.Seller != c.participant(seller) {
		return fmt.Errorf("expected seller %q, got participant %d", seller, trade.Seller)
	}
	if trade.Buyer != c.participant(buyer) {
		return fmt.Errorf("expected buyer %q, got participant %d", buyer, trade.Buyer)
	}
	if trade.Qty != qty {
		return fmt.Errorf("expected qty %d, got %d", qty, trade.Qty)
	}
	return nil
}

func (c *marketTradeContext) participantHasCapital(name string, capital int) error {
	got := c.book.Capital(c.participant(name))
	if got != capital {
		return fmt.Errorf("expected %q to have capital %d, got %d", name, capital, got)
	}
	return nil
}

type noopMarketLogger struct{}

func (noopMarketLogger) Warnf(string, ...any) {}

func InitializeMarketTradeScenario(ctx *godog.ScenarioContext) {
	c := &marketTradeContext{}
	ctx.Before(func(goctx context.Context, sc *godog.Scenario) (context.Context, error) {
		c.reset()
		return goctx, nil
	})

	ctx.Step(`^a market item "([^"]*)" with external value (\d+) and transport cost (\d+)$`, c.aMarketItemWithExternalValueAndTransportCost)
	ctx.Step(`^seller "([^"]*)" at \((-?\d+), (-?\d+)\) with (\d+) units and capital (\d+)$`, c.sellerAtWithUnitsAndCapital)
	ctx.Step(`^buyer "([^"]*)" at \((-?\d+), (-?\d+)\) wants to buy (\d+) units$`, c.buyerAtWantsToBuyUnits)
	ctx.Step(`^the market clears trades$`, c.theMarketClearsTrades)
	ctx.Step(`^exactly (\d+) trade is produced$`, c.exactlyTradesAreProduced)
	ctx.Step(`^exactly (\d+) trades are produced$`, c.exactlyTradesAreProduced)
	ctx.Step(`^trade (\d+) is a local trade from "([^"]*)" to "([^"]*)" for (\d+) units$`, c.tradeIsALocalTradeFromToForUnits)
	ctx.Step(`^seller "([^"]*)" has capital (\d+)$`, c.participantHasCapital)
	ctx.Step(`^buyer "([^"]*)" has capital (\d+)$`, c.participantHasCapital)
}
