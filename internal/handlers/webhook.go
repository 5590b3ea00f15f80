package handlers

import (
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/recallhq/memobot-backend/internal/services"
)

// WebhookHandler processes inbound WhatsApp messages from Twilio
type WebhookHandler struct {
	ingest *services.IngestService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(ingest *services.IngestService) *WebhookHandler {
	return &WebhookHandler{ingest: ingest}
}

// TwilioWebhookPayload represents an incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid        string `form:"MessageSid"`
	AccountSid        string `form:"AccountSid"`
	From              string `form:"From"` // WhatsApp number (whatsapp:+919876543210)
	To                string `form:"To"`   // Your Twilio number
	WaId              string `form:"WaId"` // Stable WhatsApp identity
	Body              string `form:"Body"` // Message text
	NumMedia          string `form:"NumMedia"`
	MediaUrl0         string `form:"MediaUrl0"`
	MediaContentType0 string `form:"MediaContentType0"`
}

// HandleWebhook runs the ingestion pipeline and answers with TwiML.
// GET/HEAD answer a fixed acknowledgement for Twilio console validation.
func (h *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead {
		return respondTwiML(c, "OK")
	}

	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	log.Printf("📱 WhatsApp message from %s (media: %s)", payload.From, payload.NumMedia)

	numMedia, _ := strconv.Atoi(payload.NumMedia)
	reply := h.ingest.Process(c.UserContext(), services.InboundMessage{
		From:             payload.From,
		WaID:             payload.WaId,
		Body:             payload.Body,
		NumMedia:         numMedia,
		MediaURL:         payload.MediaUrl0,
		MediaContentType: payload.MediaContentType0,
		MessageSid:       payload.MessageSid,
	})

	return respondTwiML(c, reply)
}

// respondTwiML wraps the reply in the provider's minimal XML envelope.
func respondTwiML(c *fiber.Ctx, msg string) error {
	c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
	return c.SendString(TwiML(msg))
}

// TwiML entity-escapes the message and wraps it for the messaging provider.
func TwiML(msg string) string {
	safe := strings.ReplaceAll(msg, "&", "&amp;")
	safe = strings.ReplaceAll(safe, "<", "&lt;")
	safe = strings.ReplaceAll(safe, ">", "&gt;")
	return "<Response><Message>" + safe + "</Message></Response>"
}
