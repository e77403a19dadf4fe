package threatguard

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// MiddlewareOptions wires host-specific context extraction into the guard
// middleware. The engine never resolves identity itself; it consumes
// whatever the host already authenticated.
type MiddlewareOptions struct {
	// UserID returns the resolved user identity, empty when anonymous.
	UserID func(c *fiber.Ctx) string
	// SessionID returns the resolved session identifier, if any.
	SessionID func(c *fiber.Ctx) string
	// ClientIP overrides source address resolution.
	ClientIP func(c *fiber.Ctx) string
}

func defaultUserID(c *fiber.Ctx) string    { return c.Get("X-User-ID") }
func defaultSessionID(c *fiber.Ctx) string { return c.Get("X-Session-ID") }

// ClientIP resolves the request's source address, honoring the usual proxy
// headers before falling back to the socket address.
func ClientIP(c *fiber.Ctx) string {
	if ip := c.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := c.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	return c.IP()
}

// Middleware returns a Fiber handler that runs every inbound request
// through the engine and enforces the uniform policy: already-blocked
// addresses and requests producing a critical event are denied with 403,
// everything else proceeds.
func Middleware(engine *Engine, opts MiddlewareOptions) fiber.Handler {
	if opts.UserID == nil {
		opts.UserID = defaultUserID
	}
	if opts.SessionID == nil {
		opts.SessionID = defaultSessionID
	}
	if opts.ClientIP == nil {
		opts.ClientIP = ClientIP
	}
	return func(c *fiber.Ctx) error {
		clientIP := opts.ClientIP(c)
		if engine.IsIPBlocked(clientIP) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "Access Denied",
				"message": "source address is blocked",
			})
		}

		desc := DescribeRequest(c, clientIP)
		events := engine.AnalyzeRequest(c.UserContext(), desc, opts.UserID(c), opts.SessionID(c))
		for _, ev := range events {
			if ev.Severity == SeverityCritical {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error":   "Access Denied",
					"message": "request rejected by security policy",
					"eventId": ev.ID,
				})
			}
		}
		return c.Next()
	}
}

// DescribeRequest normalizes a Fiber request into the engine's descriptor.
func DescribeRequest(c *fiber.Ctx, clientIP string) *RequestDescriptor {
	headers := make(map[string]string)
	for key, values := range c.GetReqHeaders() {
		headers[key] = strings.Join(values, ",")
	}
	return &RequestDescriptor{
		Method:        c.Method(),
		URL:           c.OriginalURL(),
		Query:         c.Queries(),
		Params:        c.AllParams(),
		Body:          string(c.Body()),
		Headers:       headers,
		SourceAddress: clientIP,
		UserAgent:     c.Get("User-Agent"),
	}
}
