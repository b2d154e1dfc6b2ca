package distribution

import (
	"sync"
	"time"

	"github.com/Aidin1998/pincex_fixmd/internal/marketdata"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// Quote is the best bid and ask last seen for a symbol
type Quote struct {
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	HasBid    bool            `json:"has_bid"`
	HasAsk    bool            `json:"has_ask"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Spread returns ask minus bid when both sides are present
func (q Quote) Spread() (decimal.Decimal, bool) {
	if !q.HasBid || !q.HasAsk {
		return decimal.Zero, false
	}
	return q.Ask.Sub(q.Bid), true
}

func (q Quote) sameLevels(o Quote) bool {
	return q.HasBid == o.HasBid && q.HasAsk == o.HasAsk &&
		q.Bid.Equal(o.Bid) && q.Ask.Equal(o.Ask)
}

// TopOfBook tracks the best quote per symbol from successive snapshots,
// ordered by symbol
type TopOfBook struct {
	mu     sync.RWMutex
	quotes *btree.Map[string, Quote]
}

// NewTopOfBook creates an empty tracker
func NewTopOfBook() *TopOfBook {
	return &TopOfBook{quotes: btree.NewMap[string, Quote](32)}
}

// Apply records snap and reports whether the best bid or ask changed
func (t *TopOfBook) Apply(snap marketdata.Snapshot, at time.Time) (Quote, bool) {
	next := Quote{Symbol: snap.Symbol, UpdatedAt: at}
	bid, ask := snap.Best()
	if bid != nil {
		next.Bid, next.HasBid = bid.Price, true
	}
	if ask != nil {
		next.Ask, next.HasAsk = ask.Price, true
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	prev, seen := t.quotes.Set(snap.Symbol, next)
	return next, !seen || !prev.sameLevels(next)
}

// Get returns the last quote for symbol
func (t *TopOfBook) Get(symbol string) (Quote, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.quotes.Get(symbol)
}

// All returns every tracked quote ordered by symbol
func (t *TopOfBook) All() []Quote {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Quote, 0, t.quotes.Len())
	t.quotes.Scan(func(_ string, q Quote) bool {
		out = append(out, q)
		return true
	})
	return out
}

// Publish implements marketdata.Sink
func (t *TopOfBook) Publish(ev marketdata.Event) {
	if ev.Kind == marketdata.EventSnapshot && ev.Snapshot != nil {
		t.Apply(*ev.Snapshot, ev.Time)
	}
}
