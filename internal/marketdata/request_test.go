package marketdata

import (
	"testing"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupStrings(t *testing.T, group interface {
	Len() int
}, get func(i int) string) []string {
	t.Helper()
	out := make([]string, 0, group.Len())
	for i := 0; i < group.Len(); i++ {
		out = append(out, get(i))
	}
	return out
}

func TestNewSubscriptionSpec(t *testing.T) {
	spec := NewSubscriptionSpec([]string{" EURUSD", "GBPUSD ", "", "EURUSD"})
	assert.Equal(t, []string{"EURUSD", "GBPUSD", "EURUSD"}, spec.Symbols)
	assert.Equal(t, SubscriptionRequestID, spec.RequestID)
	assert.Equal(t, DepthTopOfBook, spec.Depth)
	assert.Equal(t, []enum.MDEntryType{enum.MDEntryType_BID, enum.MDEntryType_OFFER}, spec.EntryTypes)

	assert.Equal(t, []string{DefaultSymbol}, NewSubscriptionSpec(nil).Symbols)
}

func TestBuildSubscribe(t *testing.T) {
	// symbols as configured: "EURUSD, GBPUSD"
	req := BuildSubscribe(NewSubscriptionSpec([]string{"EURUSD", " GBPUSD"}))

	assert.True(t, req.IsSubscribe())
	assert.Equal(t, "subscribe", req.Name())
	assert.Equal(t, SubscriptionRequestID, req.RequestID)
	assert.Equal(t, DepthTopOfBook, req.Depth)
	assert.Equal(t, []enum.MDEntryType{enum.MDEntryType_BID, enum.MDEntryType_OFFER}, req.EntryTypes)
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, req.Symbols)

	msg := req.ToMessage()
	msgType, err := msg.Header.GetString(tag.MsgType)
	require.Nil(t, err)
	assert.Equal(t, "V", msgType)

	reqID, err := msg.Body.GetString(tag.MDReqID)
	require.Nil(t, err)
	assert.Equal(t, "REQ-1", reqID)

	subType, err := msg.Body.GetString(tag.SubscriptionRequestType)
	require.Nil(t, err)
	assert.Equal(t, "1", subType)

	depth, err := msg.Body.GetInt(tag.MarketDepth)
	require.Nil(t, err)
	assert.Equal(t, 1, depth)

	types := NewEntryTypesGroup()
	require.Nil(t, msg.Body.GetGroup(types))
	assert.Equal(t, []string{"0", "1"}, groupStrings(t, types, func(i int) string {
		v, _ := types.Get(i).GetString(tag.MDEntryType)
		return v
	}))

	symbols := NewRelatedSymGroup()
	require.Nil(t, msg.Body.GetGroup(symbols))
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, groupStrings(t, symbols, func(i int) string {
		v, _ := symbols.Get(i).GetString(tag.Symbol)
		return v
	}))
}

func TestBuildSubscribeIgnoresRequestedEntryTypes(t *testing.T) {
	spec := NewSubscriptionSpec([]string{"EURUSD"})
	spec.EntryTypes = []enum.MDEntryType{enum.MDEntryType_TRADE}

	req := BuildSubscribe(spec)
	assert.Equal(t, []enum.MDEntryType{enum.MDEntryType_BID, enum.MDEntryType_OFFER}, req.EntryTypes)
}

func TestBuildUnsubscribe(t *testing.T) {
	spec := NewSubscriptionSpec([]string{"EURUSD", "GBPUSD", "EURUSD"})
	sub := BuildSubscribe(spec)
	unsub := BuildUnsubscribe(spec)

	assert.False(t, unsub.IsSubscribe())
	assert.Equal(t, "unsubscribe", unsub.Name())
	assert.Equal(t, sub.RequestID, unsub.RequestID)
	assert.Equal(t, sub.Symbols, unsub.Symbols)
	assert.Equal(t, DepthFullBook, unsub.Depth)
	assert.Empty(t, unsub.EntryTypes)

	msg := unsub.ToMessage()
	subType, err := msg.Body.GetString(tag.SubscriptionRequestType)
	require.Nil(t, err)
	assert.Equal(t, "2", subType)
	depth, err := msg.Body.GetInt(tag.MarketDepth)
	require.Nil(t, err)
	assert.Equal(t, 0, depth)
	assert.False(t, msg.Body.Has(tag.NoMDEntryTypes))
}

func TestDefaultSymbolSubstitution(t *testing.T) {
	for _, spec := range []SubscriptionSpec{NewSubscriptionSpec(nil), {}} {
		sub := BuildSubscribe(spec)
		unsub := BuildUnsubscribe(spec)
		assert.Equal(t, []string{DefaultSymbol}, sub.Symbols)
		assert.Equal(t, []string{DefaultSymbol}, unsub.Symbols)
		assert.Equal(t, sub.RequestID, unsub.RequestID)
	}
}

func TestRequestsDoNotShareSymbolSlices(t *testing.T) {
	spec := NewSubscriptionSpec([]string{"EURUSD"})
	req := BuildSubscribe(spec)
	req.Symbols[0] = "XXX"
	assert.Equal(t, "EURUSD", spec.Symbols[0])
}

func TestBuildTrimsSymbolsOfRawSpec(t *testing.T) {
	blank := SubscriptionSpec{Symbols: []string{" ", ""}}
	assert.Equal(t, []string{DefaultSymbol}, BuildSubscribe(blank).Symbols)
	assert.Equal(t, []string{DefaultSymbol}, BuildUnsubscribe(blank).Symbols)

	padded := SubscriptionSpec{RequestID: "REQ-7", Symbols: []string{" EURUSD ", " ", "USDJPY"}}
	sub := BuildSubscribe(padded)
	assert.Equal(t, "REQ-7", sub.RequestID)
	assert.Equal(t, []string{"EURUSD", "USDJPY"}, sub.Symbols)
	assert.Equal(t, sub.Symbols, BuildUnsubscribe(padded).Symbols)
}
