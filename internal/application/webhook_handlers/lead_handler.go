package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"call-companion-core/internal/domain"

	"github.com/rs/zerolog"
)

// LeadIngester materializes inbound leads as customer records
type LeadIngester interface {
	IngestLead(ctx context.Context, input domain.LeadInput) ([]*domain.CustomerRecord, error)
}

type leadPayload struct {
	BusinessID string              `json:"business_id"`
	LeadID     string              `json:"lead_id"`
	Name       string              `json:"name"`
	Company    string              `json:"company"`
	Phone      string              `json:"phone"`
	Fields     map[string]string   `json:"fields"`
	FieldData  []leadFieldData     `json:"field_data"`
	Owners     []domain.LeadTarget `json:"owners"`
}

// leadFieldData is the ad-form answer shape: one question name with its values
type leadFieldData struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// LeadHandler handles lead webhook events
type LeadHandler struct {
	ingester LeadIngester
	logger   zerolog.Logger
}

// NewLeadHandler creates a new lead webhook handler
func NewLeadHandler(ingester LeadIngester, logger zerolog.Logger) *LeadHandler {
	return &LeadHandler{
		ingester: ingester,
		logger:   logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *LeadHandler) CanHandle(topic string) bool {
	return topic == domain.TopicLeadCreated
}

// Handle processes a lead webhook event
func (h *LeadHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var payload leadPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("%w: failed to parse lead webhook payload: %v", domain.ErrInvalidInput, err)
	}

	input := payload.toLeadInput()
	if event.Source != "" {
		if input.Attributes == nil {
			input.Attributes = make(map[string]string)
		}
		if _, ok := input.Attributes["source"]; !ok {
			input.Attributes["source"] = event.Source
		}
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("source", event.Source).
		Str("businessId", input.BusinessID).
		Str("leadId", input.ExternalLeadID).
		Int("owners", len(input.Targets)).
		Msg("Processing lead webhook event")

	created, err := h.ingester.IngestLead(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to ingest lead: %w", err)
	}

	h.logger.Info().
		Str("businessId", input.BusinessID).
		Str("leadId", input.ExternalLeadID).
		Int("created", len(created)).
		Msg("Lead webhook processed")
	return nil
}

func (p leadPayload) toLeadInput() domain.LeadInput {
	input := domain.LeadInput{
		BusinessID:     p.BusinessID,
		ExternalLeadID: p.LeadID,
		Name:           strings.TrimSpace(p.Name),
		Company:        strings.TrimSpace(p.Company),
		Phone:          strings.TrimSpace(p.Phone),
		Targets:        p.Owners,
	}

	attrs := make(map[string]string, len(p.Fields)+len(p.FieldData))
	for k, v := range p.Fields {
		attrs[k] = v
	}
	for _, field := range p.FieldData {
		value := strings.Join(field.Values, ", ")
		switch field.Name {
		case "full_name", "name":
			if input.Name == "" {
				input.Name = value
			}
		case "phone_number", "phone":
			if input.Phone == "" {
				input.Phone = value
			}
		case "company_name", "company":
			if input.Company == "" {
				input.Company = value
			}
		default:
			attrs[field.Name] = value
		}
	}
	if len(attrs) > 0 {
		input.Attributes = attrs
	}
	return input
}
