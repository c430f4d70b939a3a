package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/processor"
)

// ErrKafkaDisabled is returned by RunWorker when no brokers are configured.
var ErrKafkaDisabled = errors.New("the qualification worker needs KAFKA_BROKERS")

// RunWorker consumes values.changed events with WorkerCount consumers of one group
// until ctx is cancelled. Health and metrics are served on the api port.
func (a *App) RunWorker(ctx context.Context) error {
	if !a.cfg.KafkaEnabled() {
		return ErrKafkaDisabled
	}

	consumers := make([]processor.MessageConsumer, 0, a.cfg.ProcessorWorkerCount)
	for i := 0; i < max(a.cfg.ProcessorWorkerCount, 1); i++ {
		consumerConfig := kafka.DefaultConsumerConfig()
		consumerConfig.Brokers = a.cfg.KafkaBrokers
		consumerConfig.Topic = a.cfg.KafkaValuesTopic
		consumerConfig.GroupID = a.cfg.KafkaConsumerGroup

		consumer, err := kafka.NewConsumer(consumerConfig, a.logger)
		if err != nil {
			return fmt.Errorf("failed to create consumer %d: %w", i, err)
		}
		consumers = append(consumers, consumer)
	}

	worker := processor.NewProcessor(processor.ProcessorConfig{
		WorkerCount:    len(consumers),
		ProcessTimeout: time.Duration(a.cfg.ProcessorTimeoutSeconds) * time.Second,
	}, a.services.Evaluator, a.services.Emitter, a.logger)

	if err := worker.Start(ctx, consumers...); err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	a.health.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	server := &http.Server{Addr: fmt.Sprintf(":%d", a.cfg.Port), Handler: e}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("Worker health server failed")
		}
	}()
	a.health.SetReady(true)

	<-ctx.Done()

	a.health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	return worker.Stop()
}
