// webhooks.go handles webhook-related database operations. Every query is
// scoped to the owning user so one user can never see or change another's
// endpoints.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Shimizu-Technology/reelforge-api/internal/models"
)

// ErrWebhookNotFound is returned when no webhook matches the id and user.
var ErrWebhookNotFound = errors.New("webhook not found")

const webhookColumns = `id, user_id, url, events, secret, active, created_at`

func scanWebhook(row interface{ Scan(...any) error }) (models.Webhook, error) {
	var w models.Webhook
	err := row.Scan(&w.ID, &w.UserID, &w.URL, pq.Array(&w.Events), &w.Secret, &w.Active, &w.CreatedAt)
	return w, err
}

// CreateWebhook inserts a new webhook record.
func (db *DB) CreateWebhook(ctx context.Context, w *models.Webhook) error {
	query := `
		INSERT INTO webhooks (user_id, url, events, secret, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return db.QueryRowContext(ctx, query,
		w.UserID, w.URL, pq.Array(w.Events), w.Secret, w.Active,
	).Scan(&w.ID, &w.CreatedAt)
}

// GetWebhook retrieves one of the user's webhooks.
func (db *DB) GetWebhook(ctx context.Context, userID, id string) (*models.Webhook, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+webhookColumns+` FROM webhooks WHERE id = $1 AND user_id = $2`, id, userID)
	w, err := scanWebhook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWebhookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return &w, nil
}

// ListWebhooks returns all webhooks for a user.
func (db *DB) ListWebhooks(ctx context.Context, userID string) ([]models.Webhook, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+webhookColumns+` FROM webhooks WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []models.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

// UpdateWebhookActive toggles a webhook's active state.
func (db *DB) UpdateWebhookActive(ctx context.Context, userID, id string, active bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE webhooks SET active = $3 WHERE id = $1 AND user_id = $2`, id, userID, active)
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrWebhookNotFound
	}
	return nil
}

// DeleteWebhook removes a webhook and, by cascade, its deliveries.
func (db *DB) DeleteWebhook(ctx context.Context, userID, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrWebhookNotFound
	}
	return nil
}

// ActiveWebhooksForEvent returns the user's active webhooks subscribed to
// event. It satisfies webhook.Store.
func (db *DB) ActiveWebhooksForEvent(ctx context.Context, userID, event string) ([]models.Webhook, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+webhookColumns+` FROM webhooks
		 WHERE user_id = $1 AND active = true AND $2 = ANY(events)`, userID, event)
	if err != nil {
		return nil, fmt.Errorf("failed to get webhooks for event: %w", err)
	}
	defer rows.Close()

	var webhooks []models.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

// CreateWebhookDelivery inserts a new webhook delivery record.
func (db *DB) CreateWebhookDelivery(ctx context.Context, d *models.WebhookDelivery) error {
	query := `
		INSERT INTO webhook_deliveries (webhook_id, event, payload, status, attempts, last_error, response_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	return db.QueryRowContext(ctx, query,
		d.WebhookID, d.Event, d.Payload, d.Status, d.Attempts, d.LastError, d.ResponseCode,
	).Scan(&d.ID, &d.CreatedAt)
}

// UpdateWebhookDelivery updates a delivery record after an attempt.
func (db *DB) UpdateWebhookDelivery(ctx context.Context, d *models.WebhookDelivery) error {
	query := `
		UPDATE webhook_deliveries
		SET status = $2, attempts = $3, last_error = $4, response_code = $5, delivered_at = $6
		WHERE id = $1`

	_, err := db.ExecContext(ctx, query,
		d.ID, d.Status, d.Attempts, d.LastError, d.ResponseCode, d.DeliveredAt,
	)
	return err
}

// ListWebhookDeliveries returns recent deliveries for one of the user's
// webhooks.
func (db *DB) ListWebhookDeliveries(ctx context.Context, userID, webhookID string, limit int) ([]models.WebhookDelivery, error) {
	var deliveries []models.WebhookDelivery
	err := db.SelectContext(ctx, &deliveries,
		`SELECT wd.* FROM webhook_deliveries wd
		 JOIN webhooks w ON w.id = wd.webhook_id
		 WHERE wd.webhook_id = $1 AND w.user_id = $2
		 ORDER BY wd.created_at DESC LIMIT $3`,
		webhookID, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook deliveries: %w", err)
	}
	return deliveries, nil
}

// ListAllDeliveries returns recent deliveries across all of a user's webhooks.
func (db *DB) ListAllDeliveries(ctx context.Context, userID string, limit int) ([]models.WebhookDelivery, error) {
	var deliveries []models.WebhookDelivery
	err := db.SelectContext(ctx, &deliveries,
		`SELECT wd.* FROM webhook_deliveries wd
		 JOIN webhooks w ON w.id = wd.webhook_id
		 WHERE w.user_id = $1
		 ORDER BY wd.created_at DESC LIMIT $2`,
		userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return deliveries, nil
}
