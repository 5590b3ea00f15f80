package services

import (
	"fmt"
	"log"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioService sends proactive WhatsApp messages via Twilio. Missing
// credentials leave the service unconfigured rather than failing startup.
type TwilioService struct {
	client *twilio.RestClient
	from   string // Format: "whatsapp:+14155238886"
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService(accountSID, authToken, whatsappFrom string) *TwilioService {
	if accountSID == "" || authToken == "" || whatsappFrom == "" {
		log.Println("⚠️  Twilio credentials not found - outbound WhatsApp disabled")
		return &TwilioService{}
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioService{
		client: client,
		from:   whatsappFrom,
	}
}

// IsConfigured reports whether outbound messaging is available.
func (t *TwilioService) IsConfigured() bool {
	return t.client != nil
}

// SendWhatsAppMessage sends a WhatsApp message and returns the provider
// message SID, or ("", false) when sending is unavailable or failed.
func (t *TwilioService) SendWhatsAppMessage(toPhoneE164, body string) (string, bool) {
	if !t.IsConfigured() {
		return "", false
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(fmt.Sprintf("whatsapp:%s", toPhoneE164))
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		log.Printf("❌ Failed to send WhatsApp message: %v", err)
		return "", false
	}
	if resp.Sid == nil {
		return "", false
	}

	log.Printf("✅ WhatsApp message sent! SID: %s", *resp.Sid)
	return *resp.Sid, true
}
