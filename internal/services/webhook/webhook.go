// Package webhook delivers pipeline events to user-registered endpoints.
//
// Go Pattern: Deliveries are fire-and-forget from the caller's point of view.
// Notify looks up the subscribed webhooks and hands each delivery to its own
// goroutine, which retries with increasing delays and records every attempt.
// A WaitGroup tracks in-flight deliveries so shutdown can drain them.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shimizu-Technology/reelforge-api/internal/models"
	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

// SignatureHeader carries the hex HMAC-SHA256 of the body.
const SignatureHeader = "X-Webhook-Signature"

// DefaultRetryDelays waits before each attempt: immediately, then 1s, 5s
// and 30s.
var DefaultRetryDelays = []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}

// Store is the persistence the service needs.
type Store interface {
	ActiveWebhooksForEvent(ctx context.Context, userID, event string) ([]models.Webhook, error)
	CreateWebhookDelivery(ctx context.Context, d *models.WebhookDelivery) error
	UpdateWebhookDelivery(ctx context.Context, d *models.WebhookDelivery) error
}

// Service handles webhook notification delivery.
type Service struct {
	store       Store
	client      *http.Client
	retryDelays []time.Duration
	log         zerolog.Logger

	shutdownCh chan struct{} // Signals pending deliveries to stop
	once       sync.Once
	wg         sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithRetryDelays overrides DefaultRetryDelays. The first entry is the wait
// before the first attempt.
func WithRetryDelays(d ...time.Duration) Option {
	return func(s *Service) { s.retryDelays = d }
}

// WithHTTPClient overrides the delivery client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// New creates a new webhook service.
func New(store Store, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		client:      &http.Client{Timeout: 10 * time.Second},
		retryDelays: DefaultRetryDelays,
		log:         log.With().Str("component", "webhook").Logger(),
		shutdownCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Shutdown signals all pending deliveries to stop and waits for them.
// Call this during graceful server shutdown.
func (s *Service) Shutdown() {
	s.once.Do(func() { close(s.shutdownCh) })
	s.wg.Wait()
}

// Wait blocks until every delivery started so far has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// GenerateSecret creates a random HMAC secret for a webhook.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// SignPayload creates an HMAC-SHA256 signature for a payload.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches payload under secret.
// Receivers use it to authenticate deliveries.
func VerifySignature(payload []byte, secret, signature string) bool {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), want)
}

// Notify implements pipeline.Notifier. It sends ev to every active webhook
// of the event's user that subscribes to it.
func (s *Service) Notify(ctx context.Context, ev pipeline.Event) {
	select {
	case <-s.shutdownCh:
		return
	default:
	}

	event := string(ev.Type)
	webhooks, err := s.store.ActiveWebhooksForEvent(ctx, ev.UserID, event)
	if err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("failed to get webhooks for event")
		return
	}
	if len(webhooks) == 0 {
		return
	}

	payloadJSON, err := json.Marshal(models.WebhookPayload{
		Event:     event,
		SessionID: ev.SessionID,
		JobID:     ev.JobID,
		PostID:    ev.PostID,
		Data:      ev.Data,
		Timestamp: ev.At.UTC(),
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to marshal webhook payload")
		return
	}

	for _, wh := range webhooks {
		s.wg.Add(1)
		go func(wh models.Webhook) {
			defer s.wg.Done()
			s.deliverWithRetry(wh, event, payloadJSON)
		}(wh)
	}
}

// deliverWithRetry attempts delivery once per retry delay and stops early on
// shutdown. Every attempt updates the delivery record.
func (s *Service) deliverWithRetry(wh models.Webhook, event string, payloadJSON []byte) {
	// Generous timeout for the entire retry sequence plus delivery time.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log := s.log.With().Str("event", event).Str("webhook_id", wh.ID).Str("url", wh.URL).Logger()

	delivery := &models.WebhookDelivery{
		WebhookID: wh.ID,
		Event:     event,
		Payload:   string(payloadJSON),
		Status:    models.DeliveryPending,
	}
	if err := s.store.CreateWebhookDelivery(ctx, delivery); err != nil {
		log.Warn().Err(err).Msg("failed to create webhook delivery record")
		return
	}

	for attempt, delay := range s.retryDelays {
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-s.shutdownCh:
				timer.Stop()
				s.finish(ctx, delivery, models.DeliveryFailed, "shutdown during delivery")
				log.Warn().Msg("webhook delivery aborted due to shutdown")
				return
			case <-ctx.Done():
				timer.Stop()
				s.finish(ctx, delivery, models.DeliveryFailed, "delivery timeout")
				log.Warn().Msg("webhook delivery timed out")
				return
			case <-timer.C:
			}
		}

		delivery.Attempts = attempt + 1
		statusCode, err := s.deliver(ctx, wh, payloadJSON)
		delivery.ResponseCode = statusCode

		if err == nil && statusCode >= 200 && statusCode < 300 {
			now := time.Now()
			delivery.DeliveredAt = &now
			s.finish(ctx, delivery, models.DeliverySuccess, "")
			log.Info().Int("attempt", attempt+1).Msg("webhook delivered")
			return
		}

		lastError := fmt.Sprintf("HTTP %d", statusCode)
		if err != nil {
			lastError = err.Error()
		}
		s.finish(ctx, delivery, models.DeliveryPending, lastError)
		log.Warn().Int("attempt", attempt+1).Int("max_attempts", len(s.retryDelays)).
			Str("error", lastError).Msg("webhook delivery failed")
	}

	s.finish(ctx, delivery, models.DeliveryFailed, delivery.LastError)
	log.Error().Msg("webhook delivery failed permanently")
}

func (s *Service) finish(ctx context.Context, d *models.WebhookDelivery, status models.DeliveryStatus, lastError string) {
	d.Status = status
	d.LastError = lastError
	if err := s.store.UpdateWebhookDelivery(ctx, d); err != nil {
		s.log.Warn().Err(err).Str("delivery_id", d.ID).Msg("failed to update delivery record")
	}
}

// deliver sends a single webhook HTTP request.
func (s *Service) deliver(ctx context.Context, wh models.Webhook, payloadJSON []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(payloadJSON))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ReelForge-Webhook/1.0")
	if wh.Secret != "" {
		req.Header.Set(SignatureHeader, SignPayload(payloadJSON, wh.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}
