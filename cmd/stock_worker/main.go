package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/oksasatya/go-sweet-shop/config"
	"github.com/oksasatya/go-sweet-shop/pkg/helpers"
	"github.com/oksasatya/go-sweet-shop/pkg/mailer"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-stock-worker", cfg.Env)

	if cfg.RabbitMQURL == "" || cfg.RabbitMQStockQueue == "" {
		log.Fatal("RabbitMQ not configured")
	}
	if cfg.StockAlertEmail == "" {
		log.Fatal("STOCK_ALERT_EMAIL not configured")
	}

	var sender mailer.Sender
	switch {
	case !cfg.MailSendEnabled:
		logger.Warn("MAIL_SEND_ENABLED=false; alerts are logged, not sent")
		sender = mailer.LogSender{Logf: logger.Infof}
	case !cfg.MailerConfigured():
		log.Fatal("Mailgun not configured")
	default:
		sender = mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)
	}
	alerter := &mailer.StockAlerter{Sender: sender, To: cfg.StockAlertEmail, Threshold: cfg.LowStockThreshold}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("amqp dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("amqp channel: %v", err)
	}
	defer func() { _ = ch.Close() }()

	// Prefetch for fair dispatch
	if err := ch.Qos(16, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	if err := helpers.DeclareQueue(ch, cfg.RabbitMQStockQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitMQStockQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx := context.Background()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for msg := range msgs {
			c, cancel := context.WithTimeout(ctx, 15*time.Second)
			sent, err := alerter.Handle(c, msg.Body)
			cancel()
			switch {
			case errors.Is(err, mailer.ErrMalformedEvent):
				logger.WithError(err).Warn("dropping bad message")
				_ = msg.Nack(false, false)
			case err != nil:
				logger.WithError(err).Error("alert failed")
				_ = msg.Nack(false, true)
			default:
				if sent {
					logger.WithField("type", msg.Type).Info("low stock alert sent")
				}
				_ = msg.Ack(false)
			}
		}
		close(done)
	}()

	logger.Infof("stock worker listening on queue=%s", cfg.RabbitMQStockQueue)
	<-stop
	logger.Info("shutting down...")
	_ = ch.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}
