package main

import (
	"context"
	"errors"
	"os"

	"dormbill/internal/amqp"
	"dormbill/internal/cli"
	"dormbill/internal/log"
	"dormbill/internal/notify"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentNotifier)

	logger.Info("Starting dormbill-notifier")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required to consume billing notifications")
		os.Exit(1)
	}
	if cfg.SMTPHost == "" {
		logger.Error("SMTP_HOST is required to deliver billing notifications")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	mailer := notify.NewMailer(notify.MailerConfig{
		Host:           cfg.SMTPHost,
		Port:           cfg.SMTPPort,
		Username:       cfg.SMTPUsername,
		Password:       cfg.SMTPPassword,
		From:           cfg.SMTPFrom,
		CurrencySymbol: cfg.CurrencySymbol,
	})

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	handle := func(ctx context.Context, msg *amqp.BillingMessage) error {
		err := mailer.Notify(ctx, msg)
		if errors.Is(err, notify.ErrNoRecipient) || errors.Is(err, notify.ErrBadRecipient) {
			// Nothing to deliver to; requeueing would not help.
			logger.WarnContext(ctx, "Dropping notification without usable recipient",
				log.FieldMessageType, msg.Type,
				log.FieldDormerID, msg.DormerID,
				log.FieldError, err)
			return nil
		}
		return err
	}

	if err := client.Consume(ctx, handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Notifier shutdown complete")
}
