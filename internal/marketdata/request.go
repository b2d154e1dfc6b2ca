package marketdata

import (
	"strings"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
)

// Market depth values
const (
	DepthTopOfBook = 1
	DepthFullBook  = 0
)

// requestedEntryTypes is fixed: a subscription always asks for both sides
var requestedEntryTypes = []enum.MDEntryType{enum.MDEntryType_BID, enum.MDEntryType_OFFER}

// NewSubscriptionSpec builds the top-of-book spec for the given symbols.
// Blank names are dropped; an empty list falls back to DefaultSymbol.
func NewSubscriptionSpec(symbols []string) SubscriptionSpec {
	return SubscriptionSpec{
		RequestID:  SubscriptionRequestID,
		Symbols:    cleanSymbols(symbols),
		Depth:      DepthTopOfBook,
		EntryTypes: append([]enum.MDEntryType(nil), requestedEntryTypes...),
	}
}

// cleanSymbols trims names and drops blanks. The result is never empty.
func cleanSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = append(out, DefaultSymbol)
	}
	return out
}

// MarketDataRequest is an outbound MarketDataRequest (35=V)
type MarketDataRequest struct {
	RequestID        string
	SubscriptionType enum.SubscriptionRequestType
	Depth            int
	EntryTypes       []enum.MDEntryType
	Symbols          []string
}

// IsSubscribe reports whether the request opens a subscription
func (r MarketDataRequest) IsSubscribe() bool {
	return r.SubscriptionType == enum.SubscriptionRequestType_SNAPSHOT_PLUS_UPDATES
}

// Name is a short label for logs and metrics
func (r MarketDataRequest) Name() string {
	if r.IsSubscribe() {
		return "subscribe"
	}
	return "unsubscribe"
}

// BuildSubscribe returns a snapshot+updates request for spec. The entry type
// group is always Bid then Offer.
func BuildSubscribe(spec SubscriptionSpec) MarketDataRequest {
	spec = normalize(spec)
	return MarketDataRequest{
		RequestID:        spec.RequestID,
		SubscriptionType: enum.SubscriptionRequestType_SNAPSHOT_PLUS_UPDATES,
		Depth:            DepthTopOfBook,
		EntryTypes:       append([]enum.MDEntryType(nil), requestedEntryTypes...),
		Symbols:          spec.Symbols,
	}
}

// BuildUnsubscribe returns the request cancelling the subscription opened by
// BuildSubscribe(spec): same request id and symbol group.
func BuildUnsubscribe(spec SubscriptionSpec) MarketDataRequest {
	spec = normalize(spec)
	return MarketDataRequest{
		RequestID:        spec.RequestID,
		SubscriptionType: enum.SubscriptionRequestType_DISABLE_PREVIOUS_SNAPSHOT_PLUS_UPDATE_REQUEST,
		Depth:            DepthFullBook,
		Symbols:          spec.Symbols,
	}
}

func normalize(spec SubscriptionSpec) SubscriptionSpec {
	if spec.RequestID == "" {
		spec.RequestID = SubscriptionRequestID
	}
	spec.Symbols = cleanSymbols(spec.Symbols)
	return spec
}

// ToMessage renders the request; it makes MarketDataRequest a quickfix.Messagable.
func (r MarketDataRequest) ToMessage() *quickfix.Message {
	msg := quickfix.NewMessage()
	msg.Header.SetString(tag.MsgType, string(enum.MsgType_MARKET_DATA_REQUEST))

	msg.Body.SetString(tag.MDReqID, r.RequestID)
	msg.Body.SetString(tag.SubscriptionRequestType, string(r.SubscriptionType))
	msg.Body.SetInt(tag.MarketDepth, r.Depth)

	if len(r.EntryTypes) > 0 {
		types := NewEntryTypesGroup()
		for _, t := range r.EntryTypes {
			types.Add().SetString(tag.MDEntryType, string(t))
		}
		msg.Body.SetGroup(types)
	}

	symbols := NewRelatedSymGroup()
	for _, s := range r.Symbols {
		symbols.Add().SetString(tag.Symbol, s)
	}
	msg.Body.SetGroup(symbols)

	return msg
}

// NewEntryTypesGroup returns an empty NoMDEntryTypes(267) group
func NewEntryTypesGroup() *quickfix.RepeatingGroup {
	return quickfix.NewRepeatingGroup(tag.NoMDEntryTypes,
		quickfix.GroupTemplate{quickfix.GroupElement(tag.MDEntryType)})
}

// NewRelatedSymGroup returns an empty NoRelatedSym(146) group
func NewRelatedSymGroup() *quickfix.RepeatingGroup {
	return quickfix.NewRepeatingGroup(tag.NoRelatedSym,
		quickfix.GroupTemplate{quickfix.GroupElement(tag.Symbol)})
}
