// Package notify publishes account events to the platform message bus over
// redis pub/sub. Delivery is best-effort: callers log publish failures and
// move on, they never roll back the surrounding operation.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stayvia/user-service/internal/domain"
)

const publishTimeout = 2 * time.Second

// NotificationProducer feeds the notification service (welcome, account
// verification, password reset emails).
type NotificationProducer struct {
	client  *redis.Client
	channel string
}

func NewNotificationProducer(client *redis.Client, channel string) *NotificationProducer {
	return &NotificationProducer{client: client, channel: channel}
}

func (p *NotificationProducer) Send(ctx context.Context, n domain.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	return publish(ctx, p.client, p.channel, n)
}

// ProfileChangeProducer announces wallet/role changes to downstream profile
// consumers.
type ProfileChangeProducer struct {
	client  *redis.Client
	channel string
}

func NewProfileChangeProducer(client *redis.Client, channel string) *ProfileChangeProducer {
	return &ProfileChangeProducer{client: client, channel: channel}
}

func (p *ProfileChangeProducer) Send(ctx context.Context, userID uuid.UUID, complete bool) error {
	return publish(ctx, p.client, p.channel, domain.ProfileChange{UserID: userID, Complete: complete})
}

func publish(ctx context.Context, client *redis.Client, channel string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("notify: publish to %s: %w", channel, err)
	}
	return nil
}
