package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/personapal/internal/bootstrap"
	"github.com/suPer8Hu/personapal/internal/chat"
	"github.com/suPer8Hu/personapal/internal/config"
	"github.com/suPer8Hu/personapal/internal/store/rabbitmq"
)

const maxAttempts = 3

var errDeliveriesClosed = errors.New("delivery channel closed by broker")

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

// retryDelay backs off 2s, 4s, 8s...
func retryDelay(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[Worker] .env not loaded: %v", err)
	}
	if err := run(config.Load()); err != nil {
		// non-zero exit so the supervisor restarts us with a fresh connection
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("backends: %w", err)
	}
	defer b.Close()

	store := chat.NewStore(b.Transcripts, b.Index)

	// publisher is only used to park failed jobs on the retry queue
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		return fmt.Errorf("rabbit publisher: %w", err)
	}
	defer pub.Close()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		return fmt.Errorf("rabbit dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbit channel: %w", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	//  strict concurrency control
	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	log.Printf("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				handleDelivery(ctx, workerID, store, pub, d)
			}
		}(i)
	}

	err = dispatch(ctx, msgs, jobs)
	close(jobs)
	wg.Wait()
	return err
}

// dispatch feeds the pool until shutdown, or until the broker closes the
// delivery channel.
func dispatch(ctx context.Context, msgs <-chan amqp.Delivery, jobs chan<- amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			return nil

		case d, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}
			select {
			case jobs <- d:
			case <-ctx.Done():
				log.Printf("worker shutting down")
				return nil
			}
		}
	}
}

func handleDelivery(ctx context.Context, workerID int, store *chat.Store, pub *rabbitmq.Publisher, d amqp.Delivery) {
	var job chat.PersistJob
	if err := json.Unmarshal(d.Body, &job); err != nil || !job.Valid() {
		log.Printf("worker=%d bad message: %v", workerID, err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	id, err := store.AppendTurn(ctx, job.Key(), job.Messages)
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.Printf("worker=%d ack failed key=%s err=%v", workerID, job.Key(), err)
		}
		if cost := time.Since(start); cost > 2*time.Second {
			log.Printf("job_timing key=%s transcript=%s turns=%d total=%s", job.Key(), id, len(job.Messages), cost)
		}
		return
	}

	attempt := rabbitmq.Attempt(d) + 1
	log.Printf("worker=%d persist failed key=%s attempt=%d cost=%s err=%v", workerID, job.Key(), attempt, time.Since(start), err)
	if attempt >= maxAttempts {
		// dead-letters to the DLQ
		_ = d.Nack(false, false)
		return
	}
	if perr := pub.PublishRetry(ctx, d.Body, attempt, retryDelay(attempt)); perr != nil {
		log.Printf("worker=%d retry publish failed key=%s err=%v", workerID, job.Key(), perr)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}
