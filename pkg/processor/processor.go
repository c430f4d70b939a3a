// Package processor runs the qualification worker: it consumes values.changed
// events, re-evaluates the record and publishes the outcome.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/qualification"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ProcessorConfig configures the qualification worker
type ProcessorConfig struct {
	// WorkerCount is the number of consumers joined to the group
	WorkerCount int

	// ProcessTimeout bounds the evaluation of a single event
	ProcessTimeout time.Duration
}

func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		WorkerCount:    4,
		ProcessTimeout: 30 * time.Second,
	}
}

type Evaluator interface {
	Evaluate(ctx context.Context, tenantID string, kind models.EntityKind, entityID string) (models.Outcome, error)
}

// MessageConsumer is satisfied by *kafka.Consumer.
type MessageConsumer interface {
	Start(ctx context.Context, handler kafka.MessageHandler) error
	Stop() error
}

type Stats struct {
	Processed int64
	Skipped   int64
	Failed    int64
}

type Processor struct {
	config    ProcessorConfig
	evaluator Evaluator
	emitter   events.Emitter
	logger    ectologger.Logger

	consumers []MessageConsumer

	stats Stats
	mu    sync.Mutex
}

func NewProcessor(config ProcessorConfig, evaluator Evaluator, emitter events.Emitter, logger ectologger.Logger) *Processor {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	return &Processor{
		config:    config,
		evaluator: evaluator,
		emitter:   emitter,
		logger:    logger,
	}
}

func (p *Processor) WorkerCount() int {
	return p.config.WorkerCount
}

// Start attaches the processor to each consumer. Consumers of the same group split
// the topic's partitions between them.
func (p *Processor) Start(ctx context.Context, consumers ...MessageConsumer) error {
	for i, consumer := range consumers {
		if err := consumer.Start(ctx, p.HandleMessage); err != nil {
			p.stopConsumers(consumers[:i])
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}
	}
	p.consumers = consumers
	p.logger.Infof("Qualification worker started with %d consumer(s)", len(consumers))
	return nil
}

func (p *Processor) Stop() error {
	err := p.stopConsumers(p.consumers)
	p.consumers = nil
	stats := p.Stats()
	p.logger.WithFields(map[string]any{
		"processed": stats.Processed,
		"skipped":   stats.Skipped,
		"failed":    stats.Failed,
	}).Info("Qualification worker stopped")
	return err
}

func (p *Processor) stopConsumers(consumers []MessageConsumer) error {
	var firstErr error
	for _, consumer := range consumers {
		if err := consumer.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HandleMessage evaluates the record named by a values.changed event. Malformed
// events are logged and skipped so they do not block the partition.
func (p *Processor) HandleMessage(ctx context.Context, msg *kafka.ReceivedMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.HandleMessage")
	defer span.End()

	if msg.Headers.EventType != "" && msg.Headers.EventType != events.EventValuesChanged {
		p.increment(&p.stats.Skipped)
		return nil
	}

	var event models.ValuesChangedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		p.logger.WithContext(ctx).WithError(err).Warnf("Skipping undecodable event at offset %d", msg.Offset)
		p.increment(&p.stats.Skipped)
		return nil
	}

	if event.TenantID == "" || event.EntityID == "" || !event.EntityKind.IsValid() {
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"tenant_id":   event.TenantID,
			"entity_kind": event.EntityKind,
			"entity_id":   event.EntityID,
		}).Warn("Skipping event without a valid record reference")
		p.increment(&p.stats.Skipped)
		return nil
	}

	ctx = appctx.SetTenantID(ctx, event.TenantID)
	requestID := event.RequestID
	if requestID == "" {
		requestID = msg.Headers.RequestID
	}
	if requestID != "" {
		ctx = appctx.SetRequestID(ctx, requestID)
	}

	if p.config.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ProcessTimeout)
		defer cancel()
	}

	if event.Record != nil {
		ctx = qualification.WithRecord(ctx, event.Record)
	}

	outcome, err := p.evaluator.Evaluate(ctx, event.TenantID, event.EntityKind, event.EntityID)
	if err != nil {
		p.increment(&p.stats.Failed)
		return fmt.Errorf("failed to evaluate %s: %w", events.RecordKey(event.TenantID, event.EntityKind, event.EntityID), err)
	}

	evaluated := models.QualificationEvaluatedEvent{
		Outcome:   outcome,
		RequestID: requestID,
	}
	if event.PreviouslyQualified != nil {
		evaluated.Transition = outcome.TransitionFrom(*event.PreviouslyQualified)
	}

	if err := p.emitter.EmitQualificationEvaluated(ctx, evaluated); err != nil {
		p.increment(&p.stats.Failed)
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_kind": event.EntityKind,
		"entity_id":   event.EntityID,
		"result":      outcome.Result,
		"transition":  evaluated.Transition,
	}).Debug("Record re-evaluated")

	p.increment(&p.stats.Processed)
	return nil
}

func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Processor) increment(counter *int64) {
	p.mu.Lock()
	*counter++
	p.mu.Unlock()
}
