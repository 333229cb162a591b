package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wspjoy2011/assistant-relay/internal/assistant"
	"github.com/wspjoy2011/assistant-relay/internal/chat"
	"github.com/wspjoy2011/assistant-relay/internal/config"
	"github.com/wspjoy2011/assistant-relay/internal/db"
	"github.com/wspjoy2011/assistant-relay/internal/store/rabbitmq"
	"github.com/wspjoy2011/assistant-relay/internal/store/redisstore"
)

type jobMsg struct {
	JobID string `json:"job_id"`
}

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

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDriver, cfg.DBDSN)

	repo := chat.NewRepo(gdb)

	client := assistant.New(cfg.RelayMode, cfg.AssistantBaseURL, cfg.AssistantAPIKey, cfg.AssistantModel, cfg.AssistantTemperature)

	ids := cfg.AssistantIDs()
	if strings.EqualFold(cfg.RelayMode, "mock") {
		for _, m := range []string{chat.ModeGPT, chat.ModeTalk, chat.ModeQuiz, chat.ModeRandom} {
			if ids[m] == "" {
				ids[m] = "asst_mock_" + m
			}
		}
	}

	orch := chat.NewOrchestrator(client)
	if cfg.RunMaxRetries > 0 {
		orch.MaxRetries = cfg.RunMaxRetries
	}
	if cfg.RunPollIntervalMS > 0 {
		orch.PollInterval = time.Duration(cfg.RunPollIntervalMS) * time.Millisecond
	}
	if cfg.RunPollTimeoutMS > 0 {
		orch.PollTimeout = time.Duration(cfg.RunPollTimeoutMS) * time.Millisecond
	}

	// worker replicas race the server on thread creation, so the resolver
	// gets the same distributed lock when redis is configured
	var locker chat.Locker
	if cfg.RedisAddr != "" {
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rds.Close()
		locker = rds
	}
	resolver := chat.NewResolver(repo, client, locker)

	svc := chat.NewService(repo, client, resolver, orch, ids)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	//  strict concurrency control
	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d relay_mode=%s", cfg.RabbitQueue, concurrency, cfg.RelayMode)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m jobMsg
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleJob(ctx, svc, m.JobID); err != nil {
					log.Printf("worker=%d job %s failed cost=%s err=%v", workerID, m.JobID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed job=%s err=%v", workerID, m.JobID, err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func handleJob(ctx context.Context, svc *chat.Service, jobID string) error {
	start := time.Now()
	if err := svc.ExecuteJob(ctx, jobID); err != nil {
		return err
	}

	if total := time.Since(start); total > 2*time.Second {
		log.Printf("job_timing job=%s total=%s", jobID, total)
	}
	return nil
}
