package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/autoventas/sales-ai-platform/internal/statestore"
	"github.com/autoventas/sales-ai-platform/internal/turn"
	"github.com/autoventas/sales-ai-platform/pkg/logging"
)

var webhookTracer = otel.Tracer("autoventas.internal.http.webhook")

// WebhookHandler receives Twilio-style WhatsApp/SMS deliveries and answers
// inline with TwiML. Conversational failures return 200 with the fallback
// reply; storage outages return 503 so the provider redelivers the message.
type WebhookHandler struct {
	turns         turnHandler
	authToken     string
	publicBaseURL string
	validate      bool
	logger        *logging.Logger
}

// NewWebhookHandler creates the webhook handler. When validate is true,
// requests without a valid X-Twilio-Signature are rejected.
func NewWebhookHandler(turns turnHandler, authToken, publicBaseURL string, validate bool, logger *logging.Logger) *WebhookHandler {
	if turns == nil {
		panic("handlers: turn handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		turns:         turns,
		authToken:     authToken,
		publicBaseURL: publicBaseURL,
		validate:      validate,
		logger:        logger,
	}
}

// Webhook handles POST /webhook/twilio requests.
func (h *WebhookHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := webhookTracer.Start(r.Context(), "webhook.twilio.message",
		trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	if h.validate {
		if !ValidateTwilioSignature(r, h.authToken, h.webhookURL(r)) {
			h.logger.Warn("invalid webhook signature", "remote_ip", r.RemoteAddr)
			span.RecordError(errors.New("invalid webhook signature"))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	if err := r.ParseForm(); err != nil {
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	from := normalizePhone(r.PostForm.Get("From"))
	body := r.PostForm.Get("Body")
	messageSID := r.PostForm.Get("MessageSid")

	if from == "" || strings.TrimSpace(body) == "" {
		err := errors.New("missing required webhook fields")
		h.logger.Warn("invalid webhook payload", "error", err)
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	span.SetAttributes(
		attribute.String("autoventas.webhook.message_sid", messageSID),
		attribute.String("autoventas.webhook.channel", "webhook"),
	)

	resp, err := h.turns.HandleTurn(ctx, turn.Request{
		SessionID: sessionIDForPhone(from),
		Message:   body,
		Channel:   "webhook",
		MessageID: messageSID,
	})
	reply := resp.Reply
	if err != nil {
		h.logger.Error("webhook turn failed", "error", err, "message_sid", messageSID)
		span.RecordError(err)
		// Storage outages must surface as retryable so the provider
		// redelivers instead of dropping the message.
		if errors.Is(err, statestore.ErrStorageUnavailable) {
			w.Header().Set("Retry-After", "2")
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		reply = turn.FallbackReply
	}
	if reply == "" {
		reply = turn.FallbackReply
	}

	writeTwiML(w, reply)
}

// sessionIDForPhone derives the stable session key for a sender. The same
// number always maps to the same conversation.
func sessionIDForPhone(phone string) string {
	return "wa:" + phone
}

// normalizePhone keeps digits only and strips the whatsapp: prefix Twilio
// adds on that channel.
func normalizePhone(value string) string {
	value = strings.TrimPrefix(strings.TrimSpace(value), "whatsapp:")
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

func writeTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(twimlResponse{Message: message})
}

// ValidateTwilioSignature checks the X-Twilio-Signature header against the
// HMAC-SHA1 of the request URL plus sorted form parameters.
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" || authToken == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	expected := computeTwilioSignature(authToken, webhookURL, r.PostForm)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func computeTwilioSignature(authToken, webhookURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(webhookURL)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// webhookURL reconstructs the URL Twilio signed. A configured public base
// URL wins over reverse-proxy headers.
func (h *WebhookHandler) webhookURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return strings.TrimRight(h.publicBaseURL, "/") + r.URL.RequestURI()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
