package handler

import (
	"errors"
	"net/http"
	"time"

	"docuchat-go/internal/jobs"
	"docuchat-go/internal/repository"
	"docuchat-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// JobHandler 负责处理文档处理作业相关的 API 请求，
// 包括作业查询与基于 WebSocket 的事件推送。
type JobHandler struct {
	tracker *jobs.Tracker
	jobRepo repository.JobRepository

	upgrader websocket.Upgrader
}

// NewJobHandler 创建一个新的 JobHandler 实例。
func NewJobHandler(tracker *jobs.Tracker, jobRepo repository.JobRepository) *JobHandler {
	return &JobHandler{
		tracker: tracker,
		jobRepo: jobRepo,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Get 处理获取单个作业快照的请求。
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.tracker.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "作业不存在"})
			return
		}
		log.Error("Get: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取作业失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取作业成功",
		"data":    job.Snapshot(),
	})
}

// History 处理获取某文档全部历史作业的请求，按创建时间倒序。
func (h *JobHandler) History(c *gin.Context) {
	history, err := h.jobRepo.FindByDocumentID(c.Param("id"))
	if err != nil {
		log.Error("History: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取作业历史失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取作业历史成功",
		"data":    history,
	})
}

// Events 将作业事件流升级为 WebSocket 连接并持续推送。
// jobId 查询参数为空时订阅全部作业的事件。连接建立后先推送一次当前快照，
// 避免订阅建立前已发生的事件造成状态空窗。
func (h *JobHandler) Events(c *gin.Context) {
	jobID := c.Query("jobId")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Events: websocket upgrade failed", err)
		return
	}
	defer conn.Close()

	subID, ch := h.tracker.Bus().Subscribe(jobID)
	defer h.tracker.Bus().Unsubscribe(subID)

	if jobID != "" {
		if job, err := h.tracker.Get(jobID); err == nil {
			if werr := conn.WriteJSON(job.Snapshot()); werr != nil {
				return
			}
		}
	}

	// 读协程只用于感知客户端断开
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, rerr := conn.ReadMessage(); rerr != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			if werr := conn.WriteJSON(event); werr != nil {
				log.Warnf("[JobHandler] 推送事件失败, JobID: %s, Err: %v", event.JobID, werr)
				return
			}
		case <-pingTicker.C:
			if werr := conn.WriteMessage(websocket.PingMessage, nil); werr != nil {
				return
			}
		case <-done:
			return
		}
	}
}
