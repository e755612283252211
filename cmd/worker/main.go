// Worker consumes auth events from Kafka and pushes them to Loki.
// Requires KAFKA_BROKERS and LOKI_URL; AUTH_EVENTS_TOPIC and KAFKA_GROUP_ID have defaults.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"authcore/internal/config"
	"authcore/internal/logging"
	"authcore/internal/telemetry/loki"
	"authcore/internal/telemetry/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.New("info", "json", "worker")
		l.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, "authcore-worker")

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal().Msg("KAFKA_BROKERS is required")
	}
	client, err := loki.NewClient(cfg.LokiURL, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("loki client")
	}

	reader := worker.NewReader(brokers, cfg.AuthEventsTopic, cfg.KafkaGroupID)
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("topic", cfg.AuthEventsTopic).
		Str("group", cfg.KafkaGroupID).
		Str("loki", cfg.LokiURL).
		Msg("consuming auth events")
	n := worker.Forward(ctx, reader, client.PushEventJSON, logging.Component(log, "forwarder"))
	log.Info().Int("forwarded", n).Msg("worker stopped")
}
