package marketdata

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
	"github.com/stretchr/testify/require"
)

var testSessionID = quickfix.SessionID{BeginString: "FIX.4.4", SenderCompID: "CLIENT", TargetCompID: "BROKER"}

type quoteLine struct {
	entryType string
	price     string
}

func newSnapshotMessage(symbol string, lines ...quoteLine) *quickfix.Message {
	msg := quickfix.NewMessage()
	msg.Header.SetString(tag.MsgType, string(enum.MsgType_MARKET_DATA_SNAPSHOT_FULL_REFRESH))
	msg.Body.SetString(tag.MDReqID, SubscriptionRequestID)
	if symbol != "" {
		msg.Body.SetString(tag.Symbol, symbol)
	}
	group := NewMDEntriesGroup()
	for _, l := range lines {
		g := group.Add()
		g.SetString(tag.MDEntryType, l.entryType)
		if l.price != "" {
			g.SetString(tag.MDEntryPx, l.price)
		}
	}
	msg.Body.SetGroup(group)
	return msg
}

// parseWire frames body (fields separated by '|') as an inbound 35=W and
// parses it the way the session layer does before calling FromApp.
func parseWire(t *testing.T, body string) *quickfix.Message {
	t.Helper()
	fields := "35=W|49=BROKER|56=CLIENT|34=2|52=20260101-00:00:00.000|" + body
	fields = strings.ReplaceAll(fields, "|", "\x01")
	head := fmt.Sprintf("8=FIX.4.4\x019=%d\x01", len(fields))

	sum := 0
	for _, b := range []byte(head + fields) {
		sum += int(b)
	}
	raw := fmt.Sprintf("%s%s10=%03d\x01", head, fields, sum%256)

	msg := quickfix.NewMessage()
	require.NoError(t, quickfix.ParseMessage(msg, bytes.NewBufferString(raw)))
	return msg
}

func newRejectMessage(reqID, reason, text string) *quickfix.Message {
	msg := quickfix.NewMessage()
	msg.Header.SetString(tag.MsgType, string(enum.MsgType_MARKET_DATA_REQUEST_REJECT))
	if reqID != "" {
		msg.Body.SetString(tag.MDReqID, reqID)
	}
	if reason != "" {
		msg.Body.SetString(tag.MDReqRejReason, reason)
	}
	if text != "" {
		msg.Body.SetString(tag.Text, text)
	}
	return msg
}

// fakeEngine records every call in order
type fakeEngine struct {
	mu        sync.Mutex
	calls     []string
	requests  []MarketDataRequest
	sendErr   error
	logoutErr error
	reasons   []string
}

var errNotConnected = errors.New("session not connected")

func (e *fakeEngine) Send(msg quickfix.Messagable, sessionID quickfix.SessionID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if req, ok := msg.(MarketDataRequest); ok {
		e.calls = append(e.calls, "send:"+req.Name())
		e.requests = append(e.requests, req)
	} else {
		e.calls = append(e.calls, "send")
	}
	return e.sendErr
}

func (e *fakeEngine) Logout(sessionID quickfix.SessionID, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "logout")
	e.reasons = append(e.reasons, reason)
	return e.logoutErr
}

func (e *fakeEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// recordingSink keeps published events
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) Kinds() []EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]EventKind, 0, len(s.events))
	for _, ev := range s.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func (s *recordingSink) Last(kind EventKind) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Kind == kind {
			return s.events[i], true
		}
	}
	return Event{}, false
}
