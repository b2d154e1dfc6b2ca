package marketdata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/config"
	"go.uber.org/zap"
)

// ErrNoSessions is returned when the settings define no session
var ErrNoSessions = errors.New("no sessions in FIX settings")

// GatewayConfig holds the initiator options that are not in the settings file
type GatewayConfig struct {
	FileStorePath string
	FileLogPath   string
}

// FIXGateway owns the quickfix initiator that drives the market data session
type FIXGateway struct {
	logger   *zap.Logger
	settings *quickfix.Settings
	cfg      GatewayConfig

	mu        sync.Mutex
	initiator *quickfix.Initiator
	started   bool
}

// LoadSettings parses a quickfix settings file
func LoadSettings(path string) (*quickfix.Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FIX settings %q: %w", path, err)
	}
	defer f.Close()
	return ParseSettings(f)
}

// ParseSettings parses quickfix settings and checks that a session is defined
func ParseSettings(r io.Reader) (*quickfix.Settings, error) {
	settings, err := quickfix.ParseSettings(r)
	if err != nil {
		return nil, fmt.Errorf("parse FIX settings: %w", err)
	}
	if len(settings.SessionSettings()) == 0 {
		return nil, ErrNoSessions
	}
	return settings, nil
}

// NewFIXGateway prepares a gateway for settings
func NewFIXGateway(logger *zap.Logger, settings *quickfix.Settings, cfg GatewayConfig) *FIXGateway {
	return &FIXGateway{
		logger:   logger.Named("fix-gateway"),
		settings: settings,
		cfg:      cfg,
	}
}

// Settings returns the parsed quickfix settings
func (g *FIXGateway) Settings() *quickfix.Settings {
	return g.settings
}

// FirstSessionID returns the lowest ordered session id in the settings
func (g *FIXGateway) FirstSessionID() (quickfix.SessionID, bool) {
	ids := g.SessionIDs()
	if len(ids) == 0 {
		return quickfix.SessionID{}, false
	}
	return ids[0], true
}

// SessionIDs lists the configured sessions in a stable order
func (g *FIXGateway) SessionIDs() []quickfix.SessionID {
	ids := make([]quickfix.SessionID, 0, len(g.settings.SessionSettings()))
	for id := range g.settings.SessionSettings() {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Start creates the initiator for app and connects the configured sessions
func (g *FIXGateway) Start(app quickfix.Application) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return errors.New("FIX gateway already started")
	}

	logFactory, err := g.logFactory()
	if err != nil {
		return fmt.Errorf("FIX log factory: %w", err)
	}

	initiator, err := quickfix.NewInitiator(app, g.storeFactory(), g.settings, logFactory)
	if err != nil {
		return fmt.Errorf("create FIX initiator: %w", err)
	}
	if err := initiator.Start(); err != nil {
		return fmt.Errorf("start FIX initiator: %w", err)
	}

	g.initiator = initiator
	g.started = true
	g.logger.Info("FIX initiator started", zap.Int("sessions", len(g.settings.SessionSettings())))
	return nil
}

// Stop disconnects all sessions. It is safe to call more than once.
func (g *FIXGateway) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started {
		return
	}
	g.initiator.Stop()
	g.started = false
	g.logger.Info("FIX initiator stopped")
}

// storeFactory uses a file store when a path is configured, memory otherwise
func (g *FIXGateway) storeFactory() quickfix.MessageStoreFactory {
	global := g.settings.GlobalSettings()
	if g.cfg.FileStorePath != "" {
		global.Set(config.FileStorePath, g.cfg.FileStorePath)
	}
	if g.anySessionHas(config.FileStorePath) {
		return quickfix.NewFileStoreFactory(g.settings)
	}
	return quickfix.NewMemoryStoreFactory()
}

func (g *FIXGateway) logFactory() (quickfix.LogFactory, error) {
	global := g.settings.GlobalSettings()
	if g.cfg.FileLogPath != "" {
		global.Set(config.FileLogPath, g.cfg.FileLogPath)
	}
	if g.anySessionHas(config.FileLogPath) {
		return quickfix.NewFileLogFactory(g.settings)
	}
	return quickfix.NewScreenLogFactory(), nil
}

func (g *FIXGateway) anySessionHas(key string) bool {
	for _, ss := range g.settings.SessionSettings() {
		if ss.HasSetting(key) {
			return true
		}
	}
	return false
}
