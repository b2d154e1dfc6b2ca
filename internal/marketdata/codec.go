package marketdata

import (
	"errors"
	"fmt"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
	"github.com/shopspring/decimal"
)

// ErrMissingField is returned when a message lacks a field needed to decode it at all
var ErrMissingField = errors.New("required field missing")

// MessageKind is the typed dispatch class of an inbound application message
type MessageKind int

const (
	KindOther MessageKind = iota
	KindSnapshot
	KindReject
)

func (k MessageKind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindReject:
		return "reject"
	default:
		return "other"
	}
}

// Classify sorts a message into the set of types the handler understands
func Classify(msg *quickfix.Message) MessageKind {
	t, err := msg.Header.GetString(tag.MsgType)
	if err != nil {
		return KindOther
	}
	switch enum.MsgType(t) {
	case enum.MsgType_MARKET_DATA_SNAPSHOT_FULL_REFRESH:
		return KindSnapshot
	case enum.MsgType_MARKET_DATA_REQUEST_REJECT:
		return KindReject
	default:
		return KindOther
	}
}

// mdEntriesTemplate lists the NoMDEntries(268) members of a FIX 4.4 full
// refresh. It is used to build snapshots; decoding splits the group from the
// wire fields instead, see splitMDEntries.
var mdEntriesTemplate = quickfix.GroupTemplate{
	quickfix.GroupElement(tag.MDEntryType),
	quickfix.GroupElement(tag.MDEntryID),
	quickfix.GroupElement(tag.MDEntryPx),
	quickfix.GroupElement(tag.Currency),
	quickfix.GroupElement(tag.MDEntrySize),
	quickfix.GroupElement(tag.MDEntryDate),
	quickfix.GroupElement(tag.MDEntryTime),
	quickfix.GroupElement(tag.TickDirection),
	quickfix.GroupElement(tag.MDMkt),
	quickfix.GroupElement(tag.TradingSessionID),
	quickfix.GroupElement(tag.TradingSessionSubID),
	quickfix.GroupElement(tag.QuoteCondition),
	quickfix.GroupElement(tag.TradeCondition),
	quickfix.GroupElement(tag.MDEntryOriginator),
	quickfix.GroupElement(tag.LocationID),
	quickfix.GroupElement(tag.DeskID),
	quickfix.GroupElement(tag.OpenCloseSettlFlag),
	quickfix.GroupElement(tag.TimeInForce),
	quickfix.GroupElement(tag.ExpireDate),
	quickfix.GroupElement(tag.ExpireTime),
	quickfix.GroupElement(tag.MinQty),
	quickfix.GroupElement(tag.ExecInst),
	quickfix.GroupElement(tag.SellerDays),
	quickfix.GroupElement(tag.OrderID),
	quickfix.GroupElement(tag.QuoteEntryID),
	quickfix.GroupElement(tag.MDEntryBuyer),
	quickfix.GroupElement(tag.MDEntrySeller),
	quickfix.GroupElement(tag.NumberOfOrders),
	quickfix.GroupElement(tag.MDEntryPositionNo),
	quickfix.GroupElement(tag.Scope),
	quickfix.GroupElement(tag.PriceDelta),
	quickfix.GroupElement(tag.Text),
	quickfix.GroupElement(tag.EncodedTextLen),
	quickfix.GroupElement(tag.EncodedText),
}

// NewMDEntriesGroup returns an empty NoMDEntries repeating group
func NewMDEntriesGroup() *quickfix.RepeatingGroup {
	return quickfix.NewRepeatingGroup(tag.NoMDEntries, mdEntriesTemplate)
}

// DecodeSnapshot turns a MarketDataSnapshotFullRefresh into a Snapshot.
//
// Group instances that cannot be decoded are skipped and reported in the
// returned slice; the remaining entries keep their received order and their
// own fields. An error is returned only when Symbol or NoMDEntries is absent.
func DecodeSnapshot(msg *quickfix.Message) (Snapshot, []EntryError, error) {
	symbol, ferr := msg.Body.GetString(tag.Symbol)
	if ferr != nil {
		return Snapshot{}, nil, fmt.Errorf("symbol(55): %w", ErrMissingField)
	}
	count, ferr := msg.Body.GetInt(tag.NoMDEntries)
	if ferr != nil {
		return Snapshot{}, nil, fmt.Errorf("NoMDEntries(268): %w", ErrMissingField)
	}
	if count < 0 {
		count = 0
	}

	snap := Snapshot{
		Symbol:    symbol,
		RequestID: optionalString(msg.Body, tag.MDReqID),
		Entries:   make([]Entry, 0, count),
	}
	var issues []EntryError

	instances := splitMDEntries(scanFields(msg.Bytes()))
	for i := 1; i <= count; i++ {
		if i > len(instances) {
			issues = append(issues, EntryError{Index: i, Reason: ReasonMissingInstance})
			continue
		}
		entry, issue := decodeEntry(instances[i-1], i)
		if issue != nil {
			issues = append(issues, *issue)
			continue
		}
		snap.Entries = append(snap.Entries, entry)
	}
	for i := count + 1; i <= len(instances); i++ {
		issues = append(issues, EntryError{Index: i, Reason: ReasonUnexpectedInstance})
	}

	return snap, issues, nil
}

func decodeEntry(fields entryFields, index int) (Entry, *EntryError) {
	entryType, ok := fields[tag.MDEntryType]
	if !ok {
		return Entry{}, &EntryError{Index: index, Reason: ReasonMissingEntryType}
	}
	side, ok := SideFromEntryType(entryType)
	if !ok {
		return Entry{}, &EntryError{Index: index, Reason: ReasonUnsupportedEntryType, Detail: entryType}
	}
	raw, ok := fields[tag.MDEntryPx]
	if !ok {
		return Entry{}, &EntryError{Index: index, Reason: ReasonMissingPrice}
	}
	price, perr := decimal.NewFromString(raw)
	if perr != nil {
		return Entry{}, &EntryError{Index: index, Reason: ReasonInvalidPrice, Detail: raw}
	}
	return Entry{Side: side, Price: price, Position: index}, nil
}

// DecodeReject reads a MarketDataRequestReject. It never fails.
func DecodeReject(msg *quickfix.Message) RejectNotice {
	return RejectNotice{
		RequestID:  optionalString(msg.Body, tag.MDReqID),
		ReasonCode: optionalString(msg.Body, tag.MDReqRejReason),
		Text:       optionalString(msg.Body, tag.Text),
	}
}

// RejectReasonText describes an MDReqRejReason(281) code
func RejectReasonText(code string) string {
	switch code {
	case "":
		return ""
	case "0":
		return "Unknown symbol"
	case "1":
		return "Duplicate MDReqID"
	case "2":
		return "Insufficient bandwidth"
	case "3":
		return "Insufficient permissions"
	case "4":
		return "Unsupported SubscriptionRequestType"
	case "5":
		return "Unsupported MarketDepth"
	case "6":
		return "Unsupported MDUpdateType"
	case "7":
		return "Unsupported AggregatedBook"
	case "8":
		return "Unsupported MDEntryType"
	case "9":
		return "Unsupported TradingSessionID"
	case "A":
		return "Unsupported Scope"
	case "B":
		return "Unsupported OpenCloseSettlFlag"
	case "C":
		return "Unsupported MDImplicitDelete"
	default:
		return "Unknown reason"
	}
}

type stringGetter interface {
	GetString(t quickfix.Tag) (string, quickfix.MessageRejectError)
}

func optionalString(fm stringGetter, t quickfix.Tag) string {
	v, err := fm.GetString(t)
	if err != nil {
		return ""
	}
	return v
}
