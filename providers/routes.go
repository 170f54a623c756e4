package providers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/hay-kot/criterio"
	"github.com/orchestra-mcp/relay/src/relay"
	"github.com/orchestra-mcp/relay/src/store"
	"github.com/orchestra-mcp/relay/src/types"
)

// RegisterRoutes registers the HTTP API. The WebSocket upgrade is served by
// WebSocketHandler at the fasthttp level since fiber v3 does not expose
// *fasthttp.RequestCtx to handlers.
func (p *RelayProvider) RegisterRoutes(r fiber.Router) {
	r.Get("/healthz", p.handleHealth)

	api := r.Group("/api")
	api.Get("/relay/info", p.handleInfo)
	api.Get("/relay/clients", p.handleListClients)
	api.Get("/relay/clients/:id", p.handleClientInfo)
	api.Get("/relay/channels", p.handleListChannels)
	api.Get("/channels/:id/messages", p.handleHistory)
	api.Post("/channels/:id/messages", p.handlePostMessage)
	api.Post("/channels/:id/calls", p.handleStartCall)
	api.Get("/users/:id", p.handleUserClient)
	api.Post("/users/:id/frames", p.handleSendToUser)
}

func (p *RelayProvider) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (p *RelayProvider) handleInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"websocket": true,
		"endpoint":  p.cfg.WSPath,
		"clients":   p.service.ClientCount(),
		"users":     len(p.service.GetConnectedUsers()),
		"channels":  len(p.service.GetChannels()),
		"scope":     p.service.Scope(),
		"store":     p.cfg.Store.Driver,
	})
}

func (p *RelayProvider) handleHistory(c fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	msgs, err := p.service.History(c.Context(), c.Params("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"messages": msgs, "count": len(msgs)})
}

type postMessageRequest struct {
	UserID      types.ID          `json:"userId"`
	Content     string            `json:"content"`
	MessageType types.MessageType `json:"messageType"`
	FileURL     string            `json:"fileUrl"`
	FileName    string            `json:"fileName"`
	FileSize    int64             `json:"fileSize"`
	ReplyTo     types.ID          `json:"replyTo"`
}

func (p *RelayProvider) handlePostMessage(c fiber.Ctx) error {
	var req postMessageRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	msg, err := p.service.PostMessage(c.Context(), store.NewMessage{
		ChannelID:   c.Params("id"),
		UserID:      req.UserID.String(),
		Content:     req.Content,
		MessageType: req.MessageType,
		FileURL:     req.FileURL,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		ReplyTo:     req.ReplyTo.String(),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

type startCallRequest struct {
	CallID   types.ID       `json:"callId"`
	CallType types.CallType `json:"callType"`
	UserID   types.ID       `json:"userId"`
}

func (p *RelayProvider) handleStartCall(c fiber.Ctx) error {
	var req startCallRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	call, err := p.service.StartCall(types.CallSession{
		ID:        req.CallID.String(),
		Type:      req.CallType,
		Initiator: req.UserID.String(),
		ChannelID: c.Params("id"),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(call)
}

func decodeBody(c fiber.Ctx, v any) error {
	body := c.Body()
	if len(body) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body: "+err.Error())
	}
	return nil
}

// errorHandler maps validation failures to 400 and everything else to 500.
func errorHandler(c fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		for _, f := range fieldErrs {
			fields[f.Field] = f.Err.Error()
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error(), "fields": fields})
	}

	if errors.Is(err, store.ErrInvalidMessage) || errors.Is(err, relay.ErrMalformedFrame) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
