package broker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "session-trader/internal/errors"
	"session-trader/internal/models"
)

// Paper is an in-memory broker used for dry runs and tests. Prices follow a
// small random walk around their seed values; closing a position realizes
// its profit into the balance.
type Paper struct {
	log         zerolog.Logger
	instruments map[string]models.Instrument

	mu         sync.Mutex
	connected  bool
	balance    float64
	prices     map[string]float64
	positions  map[int64]*models.Position
	nextTicket int64
	rng        *rand.Rand

	// quoteErr injects per-symbol quote failures for tests.
	quoteErr map[string]error
	// downErr fails every call when set, simulating a venue outage.
	downErr error
}

// NewPaper creates a paper broker with the given starting balance. Seed
// prices default to plausible levels for the built-in universe.
func NewPaper(balance float64, instruments map[string]models.Instrument, log zerolog.Logger) *Paper {
	prices := map[string]float64{
		"EURUSD": 1.0850, "GBPUSD": 1.2650, "USDJPY": 149.50,
		"AUDUSD": 0.6550, "USDCAD": 1.3550, "NZDUSD": 0.6100,
		"EURGBP": 0.8570, "EURJPY": 162.20, "GBPJPY": 189.10, "AUDJPY": 97.90,
	}
	return &Paper{
		log:         log,
		instruments: instruments,
		balance:     balance,
		prices:      prices,
		positions:   make(map[int64]*models.Position),
		nextTicket:  1000,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		quoteErr:    make(map[string]error),
	}
}

// SetPrice pins a symbol's price, disabling its random walk drift for the
// next quote.
func (p *Paper) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
}

// FailQuotes makes quote requests for symbol return err until cleared with
// a nil err.
func (p *Paper) FailQuotes(symbol string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.quoteErr, symbol)
		return
	}
	p.quoteErr[symbol] = err
}

// SetDown makes every call fail with err until cleared with a nil err.
func (p *Paper) SetDown(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.downErr = err
}

func (p *Paper) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.downErr != nil {
		return apperrors.NewBrokerError("connect", "", p.downErr)
	}
	p.connected = true
	p.log.Info().Float64("balance", p.balance).Msg("Paper broker connected")
	return nil
}

func (p *Paper) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

func (p *Paper) Positions(ctx context.Context) ([]*models.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.downErr != nil {
		return nil, apperrors.NewBrokerError("positions", "", p.downErr)
	}

	out := make([]*models.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		if price, ok := p.prices[pos.Symbol]; ok {
			pos.UpdatePrice(price, p.instruments[pos.Symbol].PipValue)
		}
		clone := *pos
		out = append(out, &clone)
	}
	return out, nil
}

func (p *Paper) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.downErr != nil {
		return models.Quote{}, apperrors.NewBrokerError("quote", symbol, p.downErr)
	}
	if err, ok := p.quoteErr[symbol]; ok {
		return models.Quote{}, apperrors.NewBrokerError("quote", symbol, err)
	}
	price, ok := p.prices[symbol]
	if !ok {
		return models.Quote{}, apperrors.NewBrokerError("quote", symbol, apperrors.ErrSymbolNotFound)
	}

	// Drift by up to 2 pips per quote.
	if inst, ok := p.instruments[symbol]; ok {
		price += (p.rng.Float64()*4 - 2) * inst.PipValue
		p.prices[symbol] = price
		half := inst.Spread / 2 * inst.PipValue
		return models.Quote{
			Symbol: symbol, Bid: price - half, Ask: price + half, Timestamp: time.Now(),
		}, nil
	}
	return models.Quote{Symbol: symbol, Bid: price, Ask: price, Timestamp: time.Now()}, nil
}

func (p *Paper) Account(ctx context.Context) (models.AccountInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.downErr != nil {
		return models.AccountInfo{}, apperrors.NewBrokerError("account", "", p.downErr)
	}

	equity := p.balance
	for _, pos := range p.positions {
		equity += pos.Profit
	}
	return models.AccountInfo{Balance: p.balance, Equity: equity, Currency: "USD"}, nil
}

func (p *Paper) OpenPosition(ctx context.Context, symbol string, direction models.Direction, volume float64) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.downErr != nil {
		return 0, apperrors.NewBrokerError("open", symbol, p.downErr)
	}
	price, ok := p.prices[symbol]
	if !ok {
		return 0, apperrors.NewBrokerError("open", symbol, apperrors.ErrSymbolNotFound)
	}

	p.nextTicket++
	ticket := p.nextTicket
	p.positions[ticket] = &models.Position{
		Ticket:          ticket,
		Symbol:          symbol,
		Direction:       direction,
		OpenedVolume:    volume,
		RemainingVolume: volume,
		EntryPrice:      price,
		CurrentPrice:    price,
		OpenTime:        time.Now(),
	}
	p.log.Info().Int64("ticket", ticket).Str("symbol", symbol).
		Float64("volume", volume).Msg("Paper position opened")
	return ticket, nil
}

func (p *Paper) ClosePosition(ctx context.Context, ticket int64, volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.downErr != nil {
		return apperrors.NewBrokerError("close", "", p.downErr)
	}
	pos, ok := p.positions[ticket]
	if !ok {
		return apperrors.NewBrokerError("close", "", apperrors.ErrPositionNotFound)
	}

	if volume >= pos.RemainingVolume {
		volume = pos.RemainingVolume
	}
	if inst, ok := p.instruments[pos.Symbol]; ok && inst.PipValue > 0 {
		p.balance += pos.ProfitPips * inst.PipValue * volume
	}
	pos.RemainingVolume -= volume
	if pos.RemainingVolume <= 0 {
		delete(p.positions, ticket)
	}
	p.log.Info().Int64("ticket", ticket).Str("symbol", pos.Symbol).
		Float64("volume", volume).Float64("remaining", pos.RemainingVolume).
		Msg("Paper position closed")
	return nil
}

func (p *Paper) ModifyStop(ctx context.Context, ticket int64, stop float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.downErr != nil {
		return apperrors.NewBrokerError("modify", "", p.downErr)
	}
	pos, ok := p.positions[ticket]
	if !ok {
		return apperrors.NewBrokerError("modify", "", apperrors.ErrPositionNotFound)
	}
	pos.StopLoss = stop
	return nil
}
