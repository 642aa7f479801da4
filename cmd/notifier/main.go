// cmd/notifier runs the promotion-notification dispatcher. It consumes
// Promoted events from the fan-out exchange and delivers them best-effort
// over email (logged) and webhooks; the enrollment core never waits on it.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campushub/class-enrollment/internal/config"
	"github.com/campushub/class-enrollment/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// The broker usually starts alongside us; probe before dialing so a
	// cold start does not crash-loop the worker.
	if err := waitForBroker(cfg.AMQPURL, 60*time.Second); err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}

	consumer := worker.NewConsumer(worker.Config{
		AMQPURL:  cfg.AMQPURL,
		Exchange: cfg.PromotionExchange,
		Queue:    cfg.NotifierQueue,
	}, worker.NewDispatcher(nil, 10*time.Second))

	if err := consumer.Connect(); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	log.Printf("notifier consuming queue=%s exchange=%s", cfg.NotifierQueue, cfg.PromotionExchange)
	if err := consumer.Run(ctx); err != nil {
		log.Fatalf("consume: %v", err)
	}
	log.Println("notifier stopped")
}

// waitForBroker polls the broker's TCP endpoint until it accepts
// connections or the timeout elapses.
func waitForBroker(amqpURL string, timeout time.Duration) error {
	addr, err := brokerAddr(amqpURL)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}

// brokerAddr extracts host:port from an amqp URL, defaulting the port.
func brokerAddr(amqpURL string) (string, error) {
	u, err := url.Parse(amqpURL)
	if err != nil {
		return "", fmt.Errorf("parse amqp url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		port = "5672"
	}
	return net.JoinHostPort(host, port), nil
}
