package handlers

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/wspjoy2011/assistant-relay/internal/assistant"
	"github.com/wspjoy2011/assistant-relay/internal/chat"
	"github.com/wspjoy2011/assistant-relay/internal/config"
	"github.com/wspjoy2011/assistant-relay/internal/store/rabbitmq"
	"github.com/wspjoy2011/assistant-relay/internal/store/redisstore"
)

type Handler struct {
	DB      *gorm.DB
	Cfg     config.Config
	Redis   *redisstore.Store
	Rabbit  *rabbitmq.Publisher
	ChatSvc *chat.Service
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, rabbit *rabbitmq.Publisher) *Handler {
	repo := chat.NewRepo(db)

	client := assistant.New(cfg.RelayMode, cfg.AssistantBaseURL, cfg.AssistantAPIKey, cfg.AssistantModel, cfg.AssistantTemperature)

	ids := cfg.AssistantIDs()
	if strings.EqualFold(cfg.RelayMode, "mock") {
		// mock runs don't need real assistant ids, fill the gaps
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

	// nil *Store must stay a nil interface, resolver checks for it
	var locker chat.Locker
	if rds != nil {
		locker = rds
	}
	resolver := chat.NewResolver(repo, client, locker)

	chatSvc := chat.NewService(repo, client, resolver, orch, ids)
	return &Handler{DB: db, Cfg: cfg, Redis: rds, Rabbit: rabbit, ChatSvc: chatSvc}
}
