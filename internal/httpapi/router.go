package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/wspjoy2011/assistant-relay/internal/common"
	"github.com/wspjoy2011/assistant-relay/internal/config"
	"github.com/wspjoy2011/assistant-relay/internal/httpapi/handlers"
	"github.com/wspjoy2011/assistant-relay/internal/httpapi/middleware"
	"github.com/wspjoy2011/assistant-relay/internal/store/rabbitmq"
	"github.com/wspjoy2011/assistant-relay/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, rabbit *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	// r.Use(gin.Recovery())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, rds, rabbit)

	r.GET("/ping", h.Ping)

	// CRUD users register
	r.POST("/users", h.CreateUser)
	r.GET("/users/:id", h.GetUserByID)

	// auth
	r.POST("/login", h.Login)
	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	// Chat (JWT required)
	authGroup.POST("/chat/messages", h.SendChatMessage)
	authGroup.POST("/chat/messages/async", h.SendChatMessageAsync)
	authGroup.GET("/chat/jobs/:job_id", h.GetChatJob)
	authGroup.GET("/chat/sessions/:mode/messages", h.ListChatMessages)
	authGroup.DELETE("/chat/sessions/:mode", h.ClearChatSession)
	authGroup.POST("/chat/quiz", h.GenerateQuiz)
	authGroup.POST("/chat/random", h.RandomFact)
	return r
}
