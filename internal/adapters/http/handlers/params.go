package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"toolhub/internal/pkg/response"
)

// paramID parses a positive numeric path parameter. On failure it writes a
// 400 and returns ok=false.
func paramID(c *fiber.Ctx, name, label string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		_ = response.BadRequest(c, "Invalid "+label+" ID")
		return 0, false
	}
	return uint(id), true
}

// currentUser returns the authenticated user ID set by AuthMiddleware
func currentUser(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("userID").(uint)
	return id, ok && id != 0
}

func currentRole(c *fiber.Ctx) string {
	role, _ := c.Locals("role").(string)
	return role
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// getClientIP prefers the proxy headers over the socket address
func getClientIP(c *fiber.Ctx) string {
	ip := c.Get("X-Real-IP")
	if ip == "" {
		ip = c.Get(fiber.HeaderXForwardedFor)
	}
	if ip == "" {
		ip = c.IP()
	}
	return ip
}
