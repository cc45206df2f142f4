package main

import (
	"os"

	"dormbill/internal/amqp"
	"dormbill/internal/cli"
	"dormbill/internal/log"
	"dormbill/internal/notify"
	"dormbill/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentReminder)

	logger.Info("Starting dormbill-reminders")

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer store.Close()

	var notifier notify.Notifier
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		notifier = notify.NewQueueNotifier(client)
	} else {
		logger.Info("AMQP disabled, reminders will only be logged")
		notifier = notify.NewLogNotifier(logger)
	}

	cadence, err := services.CadenceFor(cfg.ReminderCadence)
	if err != nil {
		logger.Error("Invalid reminder cadence", log.FieldError, err)
		os.Exit(1)
	}

	processor := services.NewReminderProcessor(store, notifier, cadence, nil, logger)
	worker := services.NewReminderWorker(processor, cfg.ReminderInterval, logger)

	logger.Info("Overdue reminders configured",
		"interval", cfg.ReminderInterval,
		"cadence", cfg.ReminderCadence)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	if err := worker.Start(ctx); err != nil {
		logger.Error("Failed to start reminder worker", log.FieldError, err)
		os.Exit(1)
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := cli.ShutdownContext()
	defer shutdownCancel()
	if err := worker.Stop(shutdownCtx); err != nil {
		logger.Warn("Reminder worker did not stop cleanly", log.FieldError, err)
	}
	logger.Info("Reminder worker shutdown complete")
}
