package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"automation-service/internal/models"
	"automation-service/internal/utils"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	AutomationLogQueue     = "automation_log_events"
	AutomationRuleRanEvent = "automation.rule.ran"
)

// AutomationLogEvent is the message body consumers of automation_log_events receive.
type AutomationLogEvent struct {
	EventType string           `json:"event_type"`
	LogID     uuid.UUID        `json:"log_id"`
	RuleID    uuid.UUID        `json:"rule_id"`
	Status    models.LogStatus `json:"status"`
	Summary   string           `json:"summary"`
	Details   utils.JSONMap    `json:"details"`
	RunAt     time.Time        `json:"run_at"`
}

type publishChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AutomationLogPublisher pushes every audit entry to RabbitMQ. amqp channels are not
// safe for concurrent use, so publishes are serialized.
type AutomationLogPublisher struct {
	mu                sync.Mutex
	ch                publishChannel
	queueDeclared     bool
	messagesPublished int64
	messagesFailed    int64
	lastPublishTime   time.Time
}

// NewAutomationLogPublisher creates a publisher on the channel of conn
func NewAutomationLogPublisher(conn *RabbitMQConnection) *AutomationLogPublisher {
	return &AutomationLogPublisher{ch: conn.Channel}
}

func (p *AutomationLogPublisher) PublishAutomationLog(ctx context.Context, entry models.AutomationLog) error {
	body, err := json.Marshal(AutomationLogEvent{
		EventType: AutomationRuleRanEvent,
		LogID:     entry.ID,
		RuleID:    entry.RuleID,
		Status:    entry.Status,
		Summary:   entry.Summary,
		Details:   entry.Details,
		RunAt:     entry.RunAt,
	})
	if err != nil {
		p.recordFailure()
		return fmt.Errorf("failed to marshal automation log event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.queueDeclared {
		if _, err := p.ch.QueueDeclare(AutomationLogQueue, true, false, false, false, nil); err != nil {
			p.messagesFailed++
			return fmt.Errorf("failed to declare queue: %w", err)
		}
		p.queueDeclared = true
	}

	err = p.ch.PublishWithContext(ctx, "", AutomationLogQueue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    entry.ID.String(),
		Type:         AutomationRuleRanEvent,
		Body:         body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to publish automation log event: %w", err)
	}

	p.messagesPublished++
	p.lastPublishTime = time.Now()
	slog.Debug("Automation log event published", "queue", AutomationLogQueue, "rule_id", entry.RuleID, "status", entry.Status)
	return nil
}

func (p *AutomationLogPublisher) recordFailure() {
	p.mu.Lock()
	p.messagesFailed++
	p.mu.Unlock()
}

// Stats returns publish counters for health reporting.
func (p *AutomationLogPublisher) Stats() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]any{
		"messages_published": p.messagesPublished,
		"messages_failed":    p.messagesFailed,
		"last_publish_time":  p.lastPublishTime,
	}
}
