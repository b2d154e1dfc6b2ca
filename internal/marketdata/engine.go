package marketdata

import (
	"errors"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
)

// ErrNoSession is returned when an operation needs a session that was never created
var ErrNoSession = errors.New("no FIX session")

// SessionEngine is the part of the FIX session layer the handler calls into.
// Delivery, sequencing and retransmission are the engine's responsibility.
type SessionEngine interface {
	Send(msg quickfix.Messagable, sessionID quickfix.SessionID) error
	Logout(sessionID quickfix.SessionID, reason string) error
}

// QuickfixEngine routes through the quickfix session registry
type QuickfixEngine struct{}

// NewQuickfixEngine returns the engine backed by registered quickfix sessions
func NewQuickfixEngine() *QuickfixEngine {
	return &QuickfixEngine{}
}

// Send queues msg on the session identified by sessionID
func (QuickfixEngine) Send(msg quickfix.Messagable, sessionID quickfix.SessionID) error {
	if sessionID == (quickfix.SessionID{}) {
		return ErrNoSession
	}
	return quickfix.SendToTarget(msg, sessionID)
}

// Logout asks the counterparty to end the session. The initiator finishes the
// handshake and tears the connection down when it is stopped.
func (e QuickfixEngine) Logout(sessionID quickfix.SessionID, reason string) error {
	return e.Send(NewLogoutMessage(reason), sessionID)
}

// NewLogoutMessage renders a Logout (35=5) carrying reason as Text(58)
func NewLogoutMessage(reason string) *quickfix.Message {
	msg := quickfix.NewMessage()
	msg.Header.SetString(tag.MsgType, string(enum.MsgType_LOGOUT))
	if reason != "" {
		msg.Body.SetString(tag.Text, reason)
	}
	return msg
}
