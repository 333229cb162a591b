package main

import (
	"log"

	"github.com/wspjoy2011/assistant-relay/internal/config"
	"github.com/wspjoy2011/assistant-relay/internal/db"
	"github.com/wspjoy2011/assistant-relay/internal/httpapi"
	"github.com/wspjoy2011/assistant-relay/internal/store/rabbitmq"
	"github.com/wspjoy2011/assistant-relay/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDriver, cfg.DBDSN)

	var rds *redisstore.Store
	if cfg.RedisAddr != "" {
		rds = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rds.Close()
	}

	var rabbit *rabbitmq.Publisher
	if cfg.RabbitURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			// async endpoints answer 503 until a worker deployment brings rabbit up
			log.Printf("rabbit unavailable, async disabled: %v", err)
		} else {
			rabbit = p
			defer rabbit.Close()
		}
	}

	r := httpapi.NewRouter(gdb, cfg, rds, rabbit)

	log.Printf("server started addr=%s relay_mode=%s db_driver=%s", cfg.HTTPAddr, cfg.RelayMode, cfg.DBDriver)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
