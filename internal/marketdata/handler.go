package marketdata

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
	"go.uber.org/zap"
)

// Credentials injected into the outbound Logon
type Credentials struct {
	Username string
	Password string
}

// SessionSettingsLookup resolves per-session settings from the quickfix
// configuration. Implemented by *quickfix.Settings through SettingsLookup.
type SessionSettingsLookup func(sessionID quickfix.SessionID) (*quickfix.SessionSettings, bool)

// HandlerConfig holds what the handler needs besides its collaborators
type HandlerConfig struct {
	Symbols     []string
	Credentials Credentials
	Settings    SessionSettingsLookup
}

// Handler is the quickfix.Application of the market data client. It reacts
// to session lifecycle callbacks, subscribes on logon and turns inbound
// snapshots and rejects into events on the sink.
type Handler struct {
	logger *zap.Logger
	engine SessionEngine
	sink   Sink
	cfg    HandlerConfig

	sessionOnce sync.Once
	sessionID   quickfix.SessionID
	hasSession  atomic.Bool

	state        atomic.Int32
	subscription atomic.Pointer[SubscriptionSpec]
	firstData    *FirstDataSignal
}

var _ quickfix.Application = (*Handler)(nil)

// NewHandler creates the handler. sink may be nil.
func NewHandler(logger *zap.Logger, engine SessionEngine, sink Sink, cfg HandlerConfig) *Handler {
	if sink == nil {
		sink = SinkFunc(func(Event) {})
	}
	return &Handler{
		logger:    logger.Named("fix-handler"),
		engine:    engine,
		sink:      sink,
		cfg:       cfg,
		firstData: NewFirstDataSignal(),
	}
}

// FirstData is the latch fired by the first decoded snapshot
func (h *Handler) FirstData() *FirstDataSignal {
	return h.firstData
}

// State returns the current session state
func (h *Handler) State() SessionState {
	return SessionState(h.state.Load())
}

// SessionID returns the identity assigned at session creation
func (h *Handler) SessionID() (quickfix.SessionID, bool) {
	if !h.hasSession.Load() {
		return quickfix.SessionID{}, false
	}
	return h.sessionID, true
}

// Subscription returns the spec of the last subscribe request, if one was built
func (h *Handler) Subscription() (SubscriptionSpec, bool) {
	spec := h.subscription.Load()
	if spec == nil {
		return SubscriptionSpec{}, false
	}
	return *spec, true
}

// SubscriptionOrDefault returns the live subscription or, before any logon,
// the spec the configured symbols would produce.
func (h *Handler) SubscriptionOrDefault() SubscriptionSpec {
	if spec, ok := h.Subscription(); ok {
		return spec
	}
	return NewSubscriptionSpec(h.configuredSymbols(quickfix.SessionID{}))
}

// OnCreate records the session identity. Only the first session is kept.
func (h *Handler) OnCreate(sessionID quickfix.SessionID) {
	assigned := false
	h.sessionOnce.Do(func() {
		h.sessionID = sessionID
		h.hasSession.Store(true)
		assigned = true
	})
	if !assigned {
		h.logger.Warn("Ignoring additional FIX session", zap.String("session", sessionID.String()))
		return
	}
	h.setState(StateCreated)
	h.logger.Info("FIX session created", zap.String("session", sessionID.String()))
}

// OnLogon subscribes to the configured symbols
func (h *Handler) OnLogon(sessionID quickfix.SessionID) {
	if !h.isOwnSession(sessionID) {
		return
	}
	h.setState(StateLoggedOn)
	h.logger.Info("Logon", zap.String("session", sessionID.String()))
	h.publishState(StateLoggedOn)

	spec := NewSubscriptionSpec(h.configuredSymbols(sessionID))
	h.subscription.Store(&spec)

	req := BuildSubscribe(spec)
	if err := h.engine.Send(req, sessionID); err != nil {
		h.reportSendFailure(req, err)
		return
	}
	h.logger.Info("Sent MD subscription",
		zap.String("md_req_id", req.RequestID),
		zap.Strings("symbols", req.Symbols))
}

// OnLogout ends the logged-on period; later application messages are ignored
func (h *Handler) OnLogout(sessionID quickfix.SessionID) {
	if !h.isOwnSession(sessionID) {
		return
	}
	h.setState(StateLoggedOut)
	h.logger.Info("Logout", zap.String("session", sessionID.String()))
	h.publishState(StateLoggedOut)
}

// ToAdmin adds Username/Password to the outbound Logon
func (h *Handler) ToAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) {
	t, err := msg.Header.GetString(tag.MsgType)
	if err != nil || enum.MsgType(t) != enum.MsgType_LOGON {
		return
	}
	creds := h.credentials(sessionID)
	if creds.Username != "" {
		msg.Body.SetString(tag.Username, creds.Username)
	}
	if creds.Password != "" {
		msg.Body.SetString(tag.Password, creds.Password)
	}
}

// FromAdmin logs session level rejects and logout reasons
func (h *Handler) FromAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	t, _ := msg.Header.GetString(tag.MsgType)
	switch enum.MsgType(t) {
	case enum.MsgType_REJECT:
		h.logger.Warn("Session reject",
			zap.String("session", sessionID.String()),
			zap.String("ref_seq_num", optionalString(msg.Body, tag.RefSeqNum)),
			zap.String("text", optionalString(msg.Body, tag.Text)))
	case enum.MsgType_LOGOUT:
		if text := optionalString(msg.Body, tag.Text); text != "" {
			h.logger.Info("Logout requested by counterparty", zap.String("text", text))
		}
	}
	return nil
}

// ToApp is a no-op
func (h *Handler) ToApp(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	return nil
}

// FromApp dispatches snapshots and rejects while logged on
func (h *Handler) FromApp(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	if h.State() != StateLoggedOn || !h.isOwnSession(sessionID) {
		return nil
	}
	switch Classify(msg) {
	case KindSnapshot:
		h.onSnapshot(msg)
	case KindReject:
		h.onReject(msg)
	}
	return nil
}

func (h *Handler) onSnapshot(msg *quickfix.Message) {
	snap, issues, err := DecodeSnapshot(msg)
	if err != nil {
		ev := NewEvent(EventDecodeError, h.sessionName())
		ev.Error = err.Error()
		h.sink.Publish(ev)
		return
	}

	ev := NewEvent(EventSnapshot, h.sessionName())
	ev.Snapshot = &snap
	ev.Issues = issues
	h.sink.Publish(ev)

	if h.firstData.Set() {
		h.logger.Info("First market data received", zap.String("symbol", snap.Symbol))
	}
}

func (h *Handler) onReject(msg *quickfix.Message) {
	rej := DecodeReject(msg)
	ev := NewEvent(EventReject, h.sessionName())
	ev.Reject = &rej
	h.sink.Publish(ev)
}

func (h *Handler) reportSendFailure(req MarketDataRequest, err error) {
	h.logger.Error("Failed to send MD request",
		zap.String("request", req.Name()),
		zap.Strings("symbols", req.Symbols),
		zap.Error(err))
	ev := NewEvent(EventSendFailure, h.sessionName())
	ev.Failure = &SendFailure{Request: req.Name(), Error: err.Error()}
	h.sink.Publish(ev)
}

func (h *Handler) publishState(state SessionState) {
	ev := NewEvent(EventSession, h.sessionName())
	ev.State = state.String()
	h.sink.Publish(ev)
}

func (h *Handler) setState(state SessionState) {
	h.state.Store(int32(state))
}

func (h *Handler) isOwnSession(sessionID quickfix.SessionID) bool {
	own, ok := h.SessionID()
	return ok && own == sessionID
}

func (h *Handler) sessionName() string {
	if sid, ok := h.SessionID(); ok {
		return sid.String()
	}
	return ""
}

// configuredSymbols prefers the application config, then the session's
// "Symbols" setting.
func (h *Handler) configuredSymbols(sessionID quickfix.SessionID) []string {
	if len(h.cfg.Symbols) > 0 {
		return h.cfg.Symbols
	}
	if s := h.sessionSetting(sessionID, "Symbols"); s != "" {
		return strings.Split(s, ",")
	}
	return nil
}

func (h *Handler) credentials(sessionID quickfix.SessionID) Credentials {
	creds := h.cfg.Credentials
	if creds.Username == "" {
		creds.Username = h.sessionSetting(sessionID, "Username")
	}
	if creds.Password == "" {
		creds.Password = h.sessionSetting(sessionID, "Password")
	}
	return creds
}

func (h *Handler) sessionSetting(sessionID quickfix.SessionID, key string) string {
	if h.cfg.Settings == nil {
		return ""
	}
	if sessionID == (quickfix.SessionID{}) {
		var ok bool
		if sessionID, ok = h.SessionID(); !ok {
			return ""
		}
	}
	ss, ok := h.cfg.Settings(sessionID)
	if !ok || ss == nil || !ss.HasSetting(key) {
		return ""
	}
	v, err := ss.Setting(key)
	if err != nil {
		return ""
	}
	return v
}

// SettingsLookup adapts parsed quickfix settings to SessionSettingsLookup
func SettingsLookup(settings *quickfix.Settings) SessionSettingsLookup {
	return func(sessionID quickfix.SessionID) (*quickfix.SessionSettings, bool) {
		if settings == nil {
			return nil, false
		}
		ss, ok := settings.SessionSettings()[sessionID]
		return ss, ok
	}
}

// Unsubscribe cancels the subscription opened at logon, reusing its request id
// and symbols. A failure is reported to the sink and returned.
func (h *Handler) Unsubscribe() error {
	sid, _ := h.SessionID()
	req := BuildUnsubscribe(h.SubscriptionOrDefault())
	if err := h.engine.Send(req, sid); err != nil {
		h.reportSendFailure(req, err)
		return err
	}
	h.logger.Info("Sent MD unsubscribe",
		zap.String("md_req_id", req.RequestID),
		zap.Strings("symbols", req.Symbols))
	return nil
}

// Logout asks the engine to log the known session out
func (h *Handler) Logout(reason string) error {
	sid, _ := h.SessionID()
	return h.engine.Logout(sid, reason)
}
