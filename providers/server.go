package providers

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/valyala/fasthttp"
)

// Handler returns the fasthttp handler for the whole server. Requests to the
// WebSocket path are upgraded; everything else goes to the fiber app.
func (p *RelayProvider) Handler() fasthttp.RequestHandler {
	api := p.app.Handler()
	ws := p.WebSocketHandler()
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) == p.cfg.WSPath {
			ws(ctx)
			return
		}
		api(ctx)
	}
}

// WebSocketHandler returns a raw fasthttp handler for WebSocket upgrades.
func (p *RelayProvider) WebSocketHandler() fasthttp.RequestHandler {
	upgrader := websocket.FastHTTPUpgrader{
		ReadBufferSize:  p.cfg.ReadBufferSize,
		WriteBufferSize: p.cfg.WriteBufferSize,
		CheckOrigin:     func(*fasthttp.RequestCtx) bool { return true },
	}

	return func(ctx *fasthttp.RequestCtx) {
		upgrade := string(ctx.Request.Header.Peek("Upgrade"))
		if !strings.EqualFold(upgrade, "websocket") {
			ctx.SetStatusCode(fasthttp.StatusUpgradeRequired)
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"error":"upgrade_required","message":"WebSocket upgrade required"}`)
			return
		}
		if p.hub.ClientCount() >= p.cfg.MaxConnections {
			p.logger.Warn().Int("max_connections", p.cfg.MaxConnections).Msg("connection refused, relay full")
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"error":"too_many_connections","message":"relay is at capacity"}`)
			return
		}

		clientID := uuid.New().String()
		err := upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			p.serveConn(clientID, conn)
		})
		if err != nil {
			p.logger.Error().Err(err).Msg("websocket upgrade failed")
		}
	}
}

func (p *RelayProvider) serveConn(clientID string, conn *websocket.Conn) {
	wc := newWSConn(conn, p.cfg.MaxFrameBytes, p.cfg.WriteWait(), p.cfg.PongWait())
	client := hub.NewClient(clientID, wc, p.hub)
	if !p.hub.Connect(client) {
		_ = wc.Close()
		return
	}
	p.logger.Debug().Str("client_id", clientID).Str("remote", conn.RemoteAddr().String()).Msg("client connected")

	go client.WritePump(p.cfg.PingPeriod())
	client.ReadPump(p.ctx, p.relay)
}

// Serve accepts connections on ln until Shutdown.
func (p *RelayProvider) Serve(ln net.Listener) error {
	if !p.active {
		return ErrNotActive
	}
	p.logger.Info().Str("addr", ln.Addr().String()).Str("ws_path", p.cfg.WSPath).Msg("relay listening")
	return p.server.Serve(ln)
}

// ListenAndServe listens on the configured address and serves.
func (p *RelayProvider) ListenAndServe() error {
	ln, err := net.Listen("tcp", p.cfg.Addr)
	if err != nil {
		return err
	}
	return p.Serve(ln)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (p *RelayProvider) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}
	return p.server.ShutdownWithContext(ctx)
}

// Stop closes every WebSocket, shuts the server down and deactivates the
// provider.
func (p *RelayProvider) Stop(ctx context.Context) error {
	if p.hub != nil {
		p.hub.Stop()
	}
	if err := p.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return p.Deactivate()
}
