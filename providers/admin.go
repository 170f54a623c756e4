package providers

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/relay/src/service"
)

func (p *RelayProvider) handleListClients(c fiber.Ctx) error {
	clients := p.service.GetConnectedClients()
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].ConnectedAt.Before(clients[j].ConnectedAt)
	})
	return c.JSON(fiber.Map{
		"clients": clients,
		"count":   len(clients),
	})
}

func (p *RelayProvider) handleClientInfo(c fiber.Ctx) error {
	info, err := p.service.GetClientInfo(c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}
	return c.JSON(info)
}

// handleUserClient reports the connection a user most recently joined with.
func (p *RelayProvider) handleUserClient(c fiber.Ctx) error {
	info, err := p.service.GetUserClient(c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrUserOffline) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}
	return c.JSON(info)
}

func (p *RelayProvider) handleListChannels(c fiber.Ctx) error {
	channels := p.service.GetChannels()
	result := make([]fiber.Map, 0, len(channels))
	for name, count := range channels {
		result = append(result, fiber.Map{
			"channel":     name,
			"subscribers": count,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i]["channel"].(string) < result[j]["channel"].(string)
	})
	return c.JSON(fiber.Map{"channels": result, "count": len(result)})
}

// handleSendToUser relays an arbitrary JSON object to one user's latest
// connection.
func (p *RelayProvider) handleSendToUser(c fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 || !json.Valid(body) {
		return fiber.NewError(fiber.StatusBadRequest, "body must be a JSON object")
	}

	userID := c.Params("id")
	if err := p.service.SendToUser(userID, json.RawMessage(body)); err != nil {
		if errors.Is(err, service.ErrUserOffline) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"sent": true, "userId": userID})
}
