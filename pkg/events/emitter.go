// Package events publishes value and qualification events for downstream consumers.
package events

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	EventValuesChanged          = "values.changed"
	EventQualificationEvaluated = "qualification.evaluated"
)

type Emitter interface {
	EmitValuesChanged(ctx context.Context, event models.ValuesChangedEvent) error
	EmitQualificationEvaluated(ctx context.Context, event models.QualificationEvaluatedEvent) error
}

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, headers kafka.MessageHeaders, payload any) error
}

type Topics struct {
	ValuesChanged          string
	QualificationEvaluated string
}

// KafkaEmitter publishes events keyed by record so that every event of a record
// lands on the same partition.
type KafkaEmitter struct {
	publisher Publisher
	topics    Topics
	logger    ectologger.Logger
}

func NewKafkaEmitter(publisher Publisher, topics Topics, logger ectologger.Logger) *KafkaEmitter {
	return &KafkaEmitter{
		publisher: publisher,
		topics:    topics,
		logger:    logger,
	}
}

func RecordKey(tenantID string, kind models.EntityKind, entityID string) string {
	return fmt.Sprintf("%s:%s:%s", tenantID, kind, entityID)
}

func (e *KafkaEmitter) EmitValuesChanged(ctx context.Context, event models.ValuesChangedEvent) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitValuesChanged", tracing.TenantAttr(event.TenantID))
	defer span.End()

	if event.RequestID == "" {
		event.RequestID = appctx.GetRequestID(ctx)
	}

	headers := kafka.MessageHeaders{
		EventType:  EventValuesChanged,
		TenantID:   event.TenantID,
		EntityKind: event.EntityKind.String(),
		EntityID:   event.EntityID,
		RequestID:  event.RequestID,
	}

	key := RecordKey(event.TenantID, event.EntityKind, event.EntityID)
	if err := e.publisher.Publish(ctx, e.topics.ValuesChanged, key, headers, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit values.changed event")
		return err
	}

	return nil
}

func (e *KafkaEmitter) EmitQualificationEvaluated(ctx context.Context, event models.QualificationEvaluatedEvent) error {
	outcome := event.Outcome
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitQualificationEvaluated", tracing.TenantAttr(outcome.TenantID))
	defer span.End()

	if event.RequestID == "" {
		event.RequestID = appctx.GetRequestID(ctx)
	}

	headers := kafka.MessageHeaders{
		EventType:  EventQualificationEvaluated,
		TenantID:   outcome.TenantID,
		EntityKind: outcome.EntityKind.String(),
		EntityID:   outcome.EntityID,
		RequestID:  event.RequestID,
	}

	key := RecordKey(outcome.TenantID, outcome.EntityKind, outcome.EntityID)
	if err := e.publisher.Publish(ctx, e.topics.QualificationEvaluated, key, headers, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit qualification.evaluated event")
		return err
	}

	return nil
}

// Noop drops every event. Used when Kafka is not configured.
type Noop struct{}

func (Noop) EmitValuesChanged(context.Context, models.ValuesChangedEvent) error { return nil }

func (Noop) EmitQualificationEvaluated(context.Context, models.QualificationEvaluatedEvent) error {
	return nil
}
