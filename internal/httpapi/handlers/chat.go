package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/wspjoy2011/assistant-relay/internal/assistant"
	"github.com/wspjoy2011/assistant-relay/internal/chat"
	"github.com/wspjoy2011/assistant-relay/internal/common"
	"github.com/wspjoy2011/assistant-relay/internal/httpapi/middleware"
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// failChatError maps pipeline errors onto the envelope. Remote failures
// surface as 502 with the canned user-facing message.
func failChatError(c *gin.Context, err error) {
	var re *assistant.RemoteError
	var ge *chat.GenerationError
	switch {
	case errors.Is(err, chat.ErrInvalidMode):
		fail(c, http.StatusBadRequest, 10005, "invalid mode")
	case errors.Is(err, chat.ErrSessionNotFound), errors.Is(err, chat.ErrUnknownThread):
		fail(c, http.StatusNotFound, 40004, "session not found")
	case errors.As(err, &ge):
		fail(c, http.StatusBadGateway, 50202, "Assistant failed to respond. Please try again later.")
	case errors.As(err, &re):
		fail(c, http.StatusBadGateway, 50201, "Assistant failed to respond. Please try again later.")
	default:
		fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}

type sendMessageReq struct {
	Mode    string `json:"mode" binding:"required"`
	Message string `json:"message" binding:"required"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	threadID, reply, msgID, err := h.ChatSvc.SendMessage(c.Request.Context(), uid, req.Mode, req.Message)
	if err != nil {
		log.Printf("[SendChatMessage] failed uid=%d mode=%s err=%v", uid, req.Mode, err)
		failChatError(c, err)
		return
	}

	ok(c, gin.H{
		"mode":       req.Mode,
		"thread_id":  threadID,
		"reply":      reply,
		"message_id": msgID,
	})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	mode := c.Param("mode")

	threadID, msgs, err := h.ChatSvc.Transcript(c.Request.Context(), uid, mode)
	if err != nil {
		failChatError(c, err)
		return
	}

	ok(c, gin.H{
		"mode":      mode,
		"thread_id": threadID,
		"messages":  msgs,
	})
}

func (h *Handler) ClearChatSession(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	mode := c.Param("mode")

	if err := h.ChatSvc.ClearSession(c.Request.Context(), uid, mode); err != nil {
		failChatError(c, err)
		return
	}

	ok(c, gin.H{
		"mode":    mode,
		"cleared": true,
	})
}

type quizReq struct {
	Topic string `json:"topic" binding:"required"`
}

func (h *Handler) GenerateQuiz(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req quizReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	threadID, items, err := h.ChatSvc.GenerateQuiz(c.Request.Context(), uid, req.Topic)
	if err != nil {
		log.Printf("[GenerateQuiz] failed uid=%d topic=%q err=%v", uid, req.Topic, err)
		failChatError(c, err)
		return
	}

	ok(c, gin.H{
		"thread_id": threadID,
		"questions": items,
	})
}

func (h *Handler) RandomFact(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	threadID, fact, msgID, err := h.ChatSvc.RandomFact(c.Request.Context(), uid)
	if err != nil {
		log.Printf("[RandomFact] failed uid=%d err=%v", uid, err)
		failChatError(c, err)
		return
	}

	ok(c, gin.H{
		"thread_id":  threadID,
		"fact":       fact,
		"message_id": msgID,
	})
}

func (h *Handler) SendChatMessageAsync(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if !chat.ValidMode(req.Mode) {
		fail(c, http.StatusBadRequest, 10005, "invalid mode")
		return
	}

	if h.Rabbit == nil {
		fail(c, http.StatusServiceUnavailable, 50003, "async processing disabled")
		return
	}

	// read idempotency key
	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}

	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	jobID, err := common.NewULID()
	if err != nil {
		log.Printf("[SendChatMessageAsync] NewULID failed uid=%d mode=%s err=%v", uid, req.Mode, err)
		fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	// The worker runs the full pipeline, including persisting the user
	// message, so a job that never runs leaves no transcript entry.
	j := &chat.Job{
		ID:             jobID,
		UserID:         uid,
		Mode:           req.Mode,
		Prompt:         req.Message,
		IdempotencyKey: idempoKeyPtr,
		Status:         chat.JobQueued,
	}

	created := true
	if idempoKeyPtr == nil {
		// backward-compatible: always new job
		if err := h.ChatSvc.CreateJob(c.Request.Context(), j); err != nil {
			log.Printf("[SendChatMessageAsync] CreateJob failed uid=%d mode=%s job_id=%s err=%v", uid, req.Mode, jobID, err)
			fail(c, http.StatusInternalServerError, 50001, "internal error")
			return
		}
	} else {
		var job *chat.Job
		job, created, err = h.ChatSvc.CreateJobOrGetExisting(c.Request.Context(), j)
		if err != nil {
			log.Printf("[SendChatMessageAsync] CreateJobOrGetExisting failed uid=%d mode=%s job_id=%s key=%s err=%v", uid, req.Mode, jobID, idempoKey, err)
			fail(c, http.StatusInternalServerError, 50001, "internal error")
			return
		}
		// If existing, use its ID for response/publish decision
		j = job
	}

	// Enqueue only when a new job was created
	if created {
		if err := h.Rabbit.PublishJob(c.Request.Context(), j.ID); err != nil {
			log.Printf("[SendChatMessageAsync] PublishJob failed uid=%d mode=%s job_id=%s err=%v", uid, req.Mode, j.ID, err)
			fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	}

	ok(c, gin.H{"job_id": j.ID})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.ChatSvc.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if j.UserID != uid {
		// hide existence
		fail(c, http.StatusNotFound, 40402, "job not found")
		return
	}

	ok(c, gin.H{
		"job": gin.H{
			"id":                j.ID,
			"mode":              j.Mode,
			"status":            j.Status,
			"result_message_id": j.ResultMessageID,
			"error":             j.Error,
			"created_at":        j.CreatedAt,
			"updated_at":        j.UpdatedAt,
		},
	})
}
