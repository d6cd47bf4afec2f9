package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/events"
)

// NotificationService handles emitting notifications for domain events and
// serves as the escalation Notifier.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// Notify delivers an escalation alert to the resolved recipients.
func (n *NotificationService) Notify(ctx context.Context, recipients []string, ticketID string, level int, reason string) error {
	n.logger.Info("EscalationAlert",
		zap.String("ticket_id", ticketID),
		zap.Int("level", level),
		zap.String("reason", reason),
		zap.Strings("recipients", recipients))
	n.sendEmailNotificationStub(ctx, events.Event{TicketID: ticketID, Type: events.EventTicketEscalated})
	n.sendWebhookNotificationStub(ctx, events.Event{TicketID: ticketID, Type: events.EventTicketEscalated})
	return nil
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketReopened, n.handleTicketReopened)
	n.dispatcher.Subscribe(events.EventTicketDeescalated, n.handleTicketDeescalated)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketAssigned", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketReopened(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketReopened", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketDeescalated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketDeescalated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
