package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/relay/config"
	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/relay"
	"github.com/orchestra-mcp/relay/src/service"
	"github.com/orchestra-mcp/relay/src/store"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// ErrNotActive is returned when the provider is used before Activate.
var ErrNotActive = errors.New("relay provider not active")

// RelayProvider owns the relay's runtime: store, hub, protocol handler,
// service and HTTP surface.
type RelayProvider struct {
	active  bool
	cfg     *config.RelayConfig
	logger  zerolog.Logger
	store   store.MessageStore
	owned   bool
	hub     *hub.Hub
	relay   *relay.Handler
	service *service.Service
	app     *fiber.App
	server  *fasthttp.Server
	ctx     context.Context
	cancel  context.CancelFunc
}

// Option configures a RelayProvider.
type Option func(*RelayProvider)

// WithStore uses s instead of building one from the store config. The caller
// keeps ownership: Deactivate does not close it.
func WithStore(s store.MessageStore) Option {
	return func(p *RelayProvider) { p.store = s }
}

// NewRelayProvider creates a new relay provider instance.
func NewRelayProvider(cfg *config.RelayConfig, logger zerolog.Logger, opts ...Option) *RelayProvider {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	p := &RelayProvider{
		cfg:    cfg,
		logger: logger.With().Str("component", "relay").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RelayProvider) Name() string    { return "relay" }
func (p *RelayProvider) Version() string { return "0.1.0" }
func (p *RelayProvider) IsActive() bool  { return p.active }

// Activate opens the store and builds the hub, handler, service and routes.
func (p *RelayProvider) Activate(ctx context.Context) error {
	if p.active {
		return nil
	}
	if p.store == nil {
		s, err := openStore(ctx, p.cfg.Store)
		if err != nil {
			return fmt.Errorf("open %s store: %w", p.cfg.Store.Driver, err)
		}
		p.store = s
		p.owned = true
	}

	p.ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	p.hub = hub.New(p.logger, hub.WithSendBuffer(p.cfg.SendBuffer))
	p.hub.OnRegister(func(userID string) {
		p.logger.Info().Str("user_id", userID).Msg("user online")
	})
	p.hub.OnUnregister(func(userID string) {
		p.logger.Info().Str("user_id", userID).Msg("user offline")
	})

	p.relay = relay.New(p.hub, p.store, p.logger,
		relay.WithScope(relay.Scope(p.cfg.Scope)),
		relay.WithAcks(p.cfg.Acks),
	)
	p.service = service.New(p.hub, p.relay, p.store, p.cfg.HistoryLimit, p.logger)

	p.app = fiber.New(fiber.Config{
		AppName:      "relay",
		ErrorHandler: errorHandler,
	})
	p.RegisterRoutes(p.app)
	p.server = &fasthttp.Server{
		Handler: p.Handler(),
		Name:    "relay",
	}

	p.active = true
	p.logger.Info().
		Str("store", p.cfg.Store.Driver).
		Str("scope", p.cfg.Scope).
		Bool("acks", p.cfg.Acks).
		Msg("relay provider activated")
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.MessageStore, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return store.NewMemory(), nil
	case config.DriverSQLite:
		return store.OpenSQLite(cfg.SQLitePath)
	case config.DriverRedis:
		rc := cfg.Redis
		if rc == nil {
			rc = store.RedisConfigFromEnv()
		}
		r := store.NewRedis(rc)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("redis %s: %w", rc.Addr, err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Deactivate closes every connection and any store Activate opened.
func (p *RelayProvider) Deactivate() error {
	if !p.active {
		return nil
	}
	p.cancel()
	p.hub.Stop()
	p.active = false

	if p.owned {
		err := p.store.Close()
		p.store, p.owned = nil, false
		if err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	p.logger.Info().Msg("relay provider deactivated")
	return nil
}

// Service exposes the relay service.
func (p *RelayProvider) Service() *service.Service { return p.service }

// App exposes the fiber app serving the HTTP API.
func (p *RelayProvider) App() *fiber.App { return p.app }
