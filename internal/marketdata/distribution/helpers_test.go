package distribution

import (
	"time"

	"github.com/Aidin1998/pincex_fixmd/internal/marketdata"
	"github.com/shopspring/decimal"
)

func snapshotEvent(symbol string, bid, ask string) marketdata.Event {
	ev := marketdata.NewEvent(marketdata.EventSnapshot, "FIX.4.4:CLIENT->BROKER")
	snap := marketdata.Snapshot{Symbol: symbol, RequestID: marketdata.SubscriptionRequestID}
	if bid != "" {
		snap.Entries = append(snap.Entries, marketdata.Entry{Side: marketdata.Bid, Price: decimal.RequireFromString(bid), Position: 1})
	}
	if ask != "" {
		snap.Entries = append(snap.Entries, marketdata.Entry{Side: marketdata.Ask, Price: decimal.RequireFromString(ask), Position: len(snap.Entries) + 1})
	}
	ev.Snapshot = &snap
	return ev
}

func rejectEvent(reqID, code, text string) marketdata.Event {
	ev := marketdata.NewEvent(marketdata.EventReject, "FIX.4.4:CLIENT->BROKER")
	ev.Reject = &marketdata.RejectNotice{RequestID: reqID, ReasonCode: code, Text: text}
	return ev
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
