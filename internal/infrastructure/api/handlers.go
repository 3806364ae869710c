package api

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"call-companion-core/internal/application"
	"call-companion-core/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const maxWebhookBody = 1 << 20

type sendMessageRequest struct {
	Target        string `json:"target"`
	Text          string `json:"text"`
	ImageBase64   string `json:"image_base64,omitempty"`
	ImageMimeType string `json:"image_mime_type,omitempty"`
}

type updateCustomerRequest struct {
	Fields map[string]string `json:"fields"`
}

type configureBindingRequest struct {
	SpreadsheetRef string                 `json:"spreadsheet_ref"`
	TabName        string                 `json:"tab_name"`
	FieldMapping   []domain.ColumnMapping `json:"field_mapping"`
	Enabled        bool                   `json:"enabled"`
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func channelStatusHandler(channel ChannelService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, channel.Status())
	}
}

func channelConnectHandler(channel ChannelService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := channel.Connect(r.Context()); err != nil {
			logger.Error().Err(err).Msg("Failed to connect channel")
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, channel.Status())
	}
}

func channelLogoutHandler(channel ChannelService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := channel.Logout(r.Context()); err != nil {
			logger.Error().Err(err).Msg("Failed to log out channel")
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, channel.Status())
	}
}

func sendMessageHandler(channel ChannelService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}

		var image *domain.OutboundImage
		if req.ImageBase64 != "" {
			data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
			if err != nil {
				writeError(w, fmt.Errorf("%w: image_base64 is not valid base64", domain.ErrInvalidInput))
				return
			}
			mimeType := req.ImageMimeType
			if mimeType == "" {
				mimeType = http.DetectContentType(data)
			}
			image = &domain.OutboundImage{Data: data, MimeType: mimeType}
		}

		if err := channel.Send(r.Context(), req.Target, req.Text, image); err != nil {
			logger.Warn().Err(err).Str("target", req.Target).Msg("Outbound message rejected")
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
	}
}

func updateCustomerHandler(records RecordUpdater, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateCustomerRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}

		businessID := domain.GetBusinessIDFromContext(r.Context())
		record, err := records.UpdateRecord(r.Context(), businessID, chi.URLParam(r, "id"), req.Fields)
		if err != nil {
			logger.Warn().Err(err).Str("customer_id", chi.URLParam(r, "id")).Msg("Customer update failed")
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

func callRequestHandler(calls CallRequester, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		result, err := calls.RequestCall(
			ctx,
			domain.GetBusinessIDFromContext(ctx),
			domain.GetUserIDFromContext(ctx),
			chi.URLParam(r, "id"),
		)
		if err != nil {
			writeError(w, err)
			return
		}

		if !result.Delivered {
			reason := "device not connected"
			if result.Reason != nil {
				reason = result.Reason.Error()
			}
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"delivered":  false,
				"request_id": result.RequestID,
				"error":      reason,
				"code":       "DEVICE_NOT_CONNECTED",
			})
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func configureBindingHandler(bindings BindingManager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req configureBindingRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}

		binding, err := bindings.Configure(r.Context(), application.ConfigureBindingInput{
			BusinessID:     domain.GetBusinessIDFromContext(r.Context()),
			CollectionID:   chi.URLParam(r, "id"),
			SpreadsheetRef: req.SpreadsheetRef,
			TabName:        req.TabName,
			FieldMapping:   req.FieldMapping,
			Enabled:        req.Enabled,
		})
		if err != nil {
			logger.Warn().Err(err).Str("collection_id", chi.URLParam(r, "id")).Msg("Sheet binding rejected")
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, binding)
	}
}

func getBindingHandler(bindings BindingManager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		binding, err := bindings.Get(r.Context(), domain.GetBusinessIDFromContext(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, binding)
	}
}

func exportNowHandler(bindings BindingManager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collectionID := chi.URLParam(r, "id")
		if err := bindings.ExportNow(r.Context(), domain.GetBusinessIDFromContext(r.Context()), collectionID); err != nil {
			logger.Error().Err(err).Str("collection_id", collectionID).Msg("Manual export failed")
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"exported": collectionID})
	}
}

// webhookVerifyHandler answers the subscription handshake of lead sources
func webhookVerifyHandler(verifyToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if verifyToken == "" || q.Get("hub.mode") != "subscribe" || !tokensMatch(q.Get("hub.verify_token"), verifyToken) {
			http.Error(w, "Invalid verify token", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(q.Get("hub.challenge")))
	}
}

// leadWebhookHandler accepts inbound leads. A 500 response makes the sender retry.
func leadWebhookHandler(dispatcher WebhookDispatcher, verifyToken string, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Webhook-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if verifyToken == "" || !tokensMatch(token, verifyToken) {
			logger.Warn().Str("remote", r.RemoteAddr).Msg("Webhook token verification failed")
			http.Error(w, "Invalid webhook token", http.StatusUnauthorized)
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			logger.Error().Err(err).Msg("Failed to read webhook payload")
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		topic := r.Header.Get("X-Webhook-Topic")
		if topic == "" {
			topic = domain.TopicLeadCreated
		}
		event := &domain.WebhookEvent{
			Topic:      topic,
			Source:     r.URL.Query().Get("source"),
			Payload:    payload,
			Verified:   true,
			ReceivedAt: time.Now().UTC(),
		}

		if err := dispatcher.Dispatch(r.Context(), event); err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				logger.Warn().Err(err).Str("topic", topic).Msg("Rejected malformed webhook event")
				writeError(w, err)
				return
			}
			logger.Error().Err(err).Str("topic", topic).Msg("Failed to dispatch webhook event")
			http.Error(w, "Failed to process webhook event", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"received": "true",
		})
	}
}

func tokensMatch(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
