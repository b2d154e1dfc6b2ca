package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Aidin1998/pincex_fixmd/internal/marketdata"
	"github.com/Aidin1998/pincex_fixmd/internal/marketdata/distribution"
	apierrors "github.com/Aidin1998/pincex_fixmd/pkg/errors"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quickfixgo/quickfix"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// SessionStatus is the read side of the FIX session handler
type SessionStatus interface {
	State() marketdata.SessionState
	SessionID() (quickfix.SessionID, bool)
	SubscriptionOrDefault() marketdata.SubscriptionSpec
	FirstData() *marketdata.FirstDataSignal
}

// QuoteSource exposes the tracked top of book
type QuoteSource interface {
	All() []distribution.Quote
	Get(symbol string) (distribution.Quote, bool)
}

// QuoteHistory reads journaled quote entries
type QuoteHistory interface {
	LatestQuotes(ctx context.Context, symbol string, limit int) ([]distribution.QuoteRecord, error)
}

// EventStream feeds websocket clients
type EventStream interface {
	Subscribe(buffer int) (<-chan []byte, func())
}

const (
	wsBuffer       = 256
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second

	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// Server represents the status HTTP server
type Server struct {
	logger   *zap.Logger
	session  SessionStatus
	quotes   QuoteSource
	stream   EventStream
	history  QuoteHistory
	upgrader websocket.Upgrader
	router   *gin.Engine
	http     *http.Server
}

// NewServer creates the status server. quotes, stream and history may be nil.
func NewServer(logger *zap.Logger, session SessionStatus, quotes QuoteSource, stream EventStream, history QuoteHistory) *Server {
	s := &Server{
		logger:  logger.Named("status"),
		session: session,
		quotes:  quotes,
		stream:  stream,
		history: history,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.router = s.newRouter()
	return s
}

func (s *Server) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	router.Use(otelgin.Middleware("fixmd"))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/health", s.health)
	router.GET("/subscription", s.subscription)
	router.GET("/quotes", s.listQuotes)
	router.GET("/quotes/:symbol", s.getQuote)
	router.GET("/quotes/:symbol/history", s.quoteHistory)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/quotes", s.streamQuotes)
	return router
}

// Router returns the gin engine for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start listens on addr in the background
func (s *Server) Start(addr string) {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		s.logger.Info("Starting status server", zap.String("addr", addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	state := s.session.State()
	first := s.session.FirstData()

	body := gin.H{
		"state":      state.String(),
		"first_data": first.IsSet(),
		"symbols":    s.session.SubscriptionOrDefault().Symbols,
		"time":       time.Now().UTC(),
	}
	if sid, ok := s.session.SessionID(); ok {
		body["session"] = sid.String()
	}
	if at := first.SetAt(); !at.IsZero() {
		body["first_data_at"] = at
	}

	code := http.StatusOK
	if state != marketdata.StateLoggedOn {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, body)
}

func (s *Server) subscription(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.SubscriptionOrDefault())
}

func (s *Server) listQuotes(c *gin.Context) {
	if s.quotes == nil {
		c.JSON(http.StatusOK, gin.H{"quotes": []distribution.Quote{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotes": s.quotes.All()})
}

func (s *Server) getQuote(c *gin.Context) {
	symbol := c.Param("symbol")
	if s.quotes != nil {
		if q, ok := s.quotes.Get(symbol); ok {
			c.JSON(http.StatusOK, q)
			return
		}
	}
	apierrors.Write(c, apierrors.NewNotFoundError("no quote for "+symbol, ""))
}

func (s *Server) quoteHistory(c *gin.Context) {
	if s.history == nil {
		apierrors.Write(c, apierrors.NewUnavailableError("quote journal disabled", ""))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	symbol := c.Param("symbol")
	records, err := s.history.LatestQuotes(c.Request.Context(), symbol, limit)
	if err != nil {
		s.logger.Warn("Quote journal query failed", zap.String("symbol", symbol), zap.Error(err))
		apierrors.Write(c, apierrors.NewUnavailableError("quote journal unavailable", ""))
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "entries": records})
}

func (s *Server) streamQuotes(c *gin.Context) {
	if s.stream == nil {
		apierrors.Write(c, apierrors.NewNotImplementedError("quote stream disabled", ""))
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := s.stream.Subscribe(wsBuffer)
	defer unsubscribe()

	// reads only detect the peer going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
