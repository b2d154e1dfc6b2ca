package marketdata

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quickfixgo/enum"
	"github.com/shopspring/decimal"
)

// SubscriptionRequestID correlates the subscribe request with its cancel and
// with any reject the counterparty sends back. Single-session client, so one
// fixed id is enough.
const SubscriptionRequestID = "REQ-1"

// DefaultSymbol replaces an empty symbol list
const DefaultSymbol = "GBPUSD"

// Side of a quote line
type Side string

const (
	Bid Side = "bid"
	Ask Side = "ask"
)

// SideFromEntryType maps MDEntryType(269) to a Side. Only bid and offer lines
// are part of a top-of-book subscription.
func SideFromEntryType(t string) (Side, bool) {
	switch enum.MDEntryType(t) {
	case enum.MDEntryType_BID:
		return Bid, true
	case enum.MDEntryType_OFFER:
		return Ask, true
	default:
		return "", false
	}
}

// Entry is one decoded quote line of a snapshot
type Entry struct {
	Side     Side            `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Position int             `json:"position"` // 1-based index in the received group
}

// Snapshot is a full refresh for one symbol
type Snapshot struct {
	Symbol    string  `json:"symbol"`
	RequestID string  `json:"request_id,omitempty"`
	Entries   []Entry `json:"entries"`
}

// Best returns the first bid and first ask of the snapshot, if any
func (s Snapshot) Best() (bid, ask *Entry) {
	for i := range s.Entries {
		e := &s.Entries[i]
		if e.Side == Bid && bid == nil {
			bid = e
		}
		if e.Side == Ask && ask == nil {
			ask = e
		}
	}
	return bid, ask
}

// EntryError describes a group instance that was skipped during decode
type EntryError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (e EntryError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("entry %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("entry %d: %s: %s", e.Index, e.Reason, e.Detail)
}

// Entry skip reasons
const (
	ReasonMissingEntryType     = "missing_entry_type"
	ReasonMissingPrice         = "missing_price"
	ReasonInvalidPrice         = "invalid_price"
	ReasonUnsupportedEntryType = "unsupported_entry_type"
	ReasonMissingInstance      = "missing_instance"
	ReasonUnexpectedInstance   = "unexpected_instance"
)

// RejectNotice is a decoded MarketDataRequestReject. Absent fields are empty.
type RejectNotice struct {
	RequestID  string `json:"request_id"`
	ReasonCode string `json:"reason_code"`
	Text       string `json:"text"`
}

// SubscriptionSpec is the symbol set and policy of one market data subscription
type SubscriptionSpec struct {
	RequestID  string             `json:"request_id"`
	Symbols    []string           `json:"symbols"`
	Depth      int                `json:"depth"`
	EntryTypes []enum.MDEntryType `json:"entry_types"`
}

// SessionState of the handler state machine
type SessionState int32

const (
	StateCreated SessionState = iota
	StateLoggedOn
	StateLoggedOut
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLoggedOn:
		return "logged_on"
	case StateLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// EventKind classifies events published to a Sink
type EventKind string

const (
	EventSession     EventKind = "session"
	EventSnapshot    EventKind = "snapshot"
	EventReject      EventKind = "reject"
	EventSendFailure EventKind = "send_failure"
	EventDecodeError EventKind = "decode_error"
)

// SendFailure records an outbound request the session engine refused
type SendFailure struct {
	Request string `json:"request"`
	Error   string `json:"error"`
}

// Event is the unit handed to the output sink
type Event struct {
	ID        uuid.UUID     `json:"id"`
	Kind      EventKind     `json:"kind"`
	SessionID string        `json:"session_id"`
	Time      time.Time     `json:"time"`
	State     string        `json:"state,omitempty"`
	Snapshot  *Snapshot     `json:"snapshot,omitempty"`
	Reject    *RejectNotice `json:"reject,omitempty"`
	Failure   *SendFailure  `json:"failure,omitempty"`
	Issues    []EntryError  `json:"issues,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// NewEvent stamps a new event with an id and the current time
func NewEvent(kind EventKind, sessionID string) Event {
	return Event{
		ID:        uuid.New(),
		Kind:      kind,
		SessionID: sessionID,
		Time:      time.Now().UTC(),
	}
}

// Symbol returns the instrument an event refers to, if any
func (e Event) Symbol() string {
	if e.Snapshot != nil {
		return e.Snapshot.Symbol
	}
	return ""
}

// Sink receives decoded events. Publish is called on the session callback
// goroutine and must not block on I/O.
type Sink interface {
	Publish(ev Event)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ev Event)

// Publish implements Sink
func (f SinkFunc) Publish(ev Event) { f(ev) }
