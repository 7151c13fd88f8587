package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/analyzer"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/channel"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/ipcerr"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/message"
)

// MaxReceiveTimeout caps the timeout_ms query parameter
const MaxReceiveTimeout = 30 * time.Second

// Handlers contains all HTTP handlers
type Handlers struct {
	svc      *ipc.Service
	analyzer *analyzer.PerformanceAnalyzer
	metrics  *HandlerMetrics
}

// NewHandlers creates a new handler set. Sends and receives made through
// the API are sampled into perf when it is non-nil.
func NewHandlers(svc *ipc.Service, perf *analyzer.PerformanceAnalyzer, metrics *HandlerMetrics) *Handlers {
	return &Handlers{
		svc:      svc,
		analyzer: perf,
		metrics:  metrics,
	}
}

// CreateChannelRequest is the body of POST /channels
type CreateChannelRequest struct {
	Name      string `json:"name" binding:"required"`
	Type      string `json:"type"`
	Capacity  int    `json:"capacity"`
	Transport string `json:"transport"`
}

// SendMessageRequest is one message in a send request
type SendMessageRequest struct {
	SenderID   uint64 `json:"sender_id"`
	ReceiverID uint64 `json:"receiver_id"`
	Kind       string `json:"kind"`
	Priority   uint8  `json:"priority"`
	Transport  string `json:"transport"`
	Data       string `json:"data"`
}

// SendBatchRequest is the body of POST /channels/:id/batch
type SendBatchRequest struct {
	Messages []SendMessageRequest `json:"messages" binding:"required,min=1"`
	Smart    bool                 `json:"smart"`
}

// MessageResponse describes a received message
type MessageResponse struct {
	ID           uint64 `json:"id"`
	SenderID     uint64 `json:"sender_id"`
	ReceiverID   uint64 `json:"receiver_id"`
	Kind         string `json:"kind"`
	Priority     uint8  `json:"priority"`
	Transport    string `json:"transport"`
	Mode         string `json:"mode"`
	BatchID      uint64 `json:"batch_id,omitempty"`
	Timestamp    uint64 `json:"timestamp"`
	Size         int    `json:"size"`
	Data         string `json:"data"`
	PayloadError string `json:"payload_error,omitempty"`
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "online",
		"service":    "ipc",
		"service_id": h.svc.ServiceID().String(),
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	stats := h.svc.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"service_id":      stats.ServiceID,
		"active_channels": stats.ActiveChannels,
		"zero_copy":       h.svc.Config().ZeroCopyEnabled,
	})
}

// Stats returns service-wide statistics
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats())
}

// ListChannels lists all open channels
func (h *Handlers) ListChannels(c *gin.Context) {
	channels := h.svc.ListChannels()
	c.JSON(http.StatusOK, gin.H{
		"channels": channels,
		"count":    len(channels),
	})
}

// CreateChannel creates a channel
func (h *Handlers) CreateChannel(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	typ := channel.TypePointToPoint
	if req.Type != "" {
		parsed, err := channel.ParseType(req.Type)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		typ = parsed
	}

	cfg := h.svc.Config()
	capacity := req.Capacity
	if capacity == 0 {
		capacity = cfg.DefaultCapacity
	}
	transportName := req.Transport
	if transportName == "" {
		transportName = cfg.DefaultTransport
	}
	transport, err := message.ParseTransport(transportName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	done := h.metrics.TrackChannelOperation("create")
	chID, err := h.svc.CreateChannelWithTransport(req.Name, typ, capacity, transport)
	done(err)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":        chID,
		"name":      req.Name,
		"type":      typ.String(),
		"capacity":  capacity,
		"transport": transport.String(),
	})
}

// DestroyChannel closes a channel and drops its queued messages
func (h *Handlers) DestroyChannel(c *gin.Context) {
	chID, ok := channelID(c)
	if !ok {
		return
	}

	done := h.metrics.TrackChannelOperation("destroy")
	err := h.svc.DestroyChannel(chID)
	done(err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": chID})
}

// ChannelStats returns one channel's statistics
func (h *Handlers) ChannelStats(c *gin.Context) {
	chID, ok := channelID(c)
	if !ok {
		return
	}

	stats, err := h.svc.ChannelStats(chID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// SendMessage enqueues one inline message
func (h *Handlers) SendMessage(c *gin.Context) {
	chID, ok := channelID(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := req.toMessage()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	done := h.metrics.TrackMessageOperation("send")
	err = h.svc.SendMessage(chID, msg)
	done(err)
	if err != nil {
		writeError(c, err)
		return
	}
	h.sample(analyzer.OpSend, msg.Transport, msg.Size(), 1, start)

	c.JSON(http.StatusAccepted, gin.H{"id": msg.ID, "channel_id": chID})
}

// SendBatch enqueues several inline messages under one batch id
func (h *Handlers) SendBatch(c *gin.Context) {
	chID, ok := channelID(c)
	if !ok {
		return
	}

	var req SendBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msgs := make([]message.Message, len(req.Messages))
	size := 0
	for i, r := range req.Messages {
		msg, err := r.toMessage()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "index": i})
			return
		}
		msgs[i] = msg
		size += msg.Size()
	}

	send := h.svc.SendBatch
	if req.Smart {
		send = h.svc.SendBatchSmart
	}

	start := time.Now()
	done := h.metrics.TrackMessageOperation("send_batch")
	sent, err := send(chID, msgs)
	done(err)
	if sent > 0 {
		h.sample(analyzer.OpBatchSend, msgs[0].Transport, size/len(msgs), sent, start)
	}
	if err != nil {
		writeErrorWith(c, err, gin.H{"sent": sent})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"sent": sent, "channel_id": chID})
}

// ReceiveMessage dequeues one message for the receiver query parameter.
// With timeout_ms it waits up to that long. An empty channel answers 204.
func (h *Handlers) ReceiveMessage(c *gin.Context) {
	chID, ok := channelID(c)
	if !ok {
		return
	}
	receiver, ok := uintQuery(c, "receiver", 0)
	if !ok {
		return
	}
	timeoutMs, ok := uintQuery(c, "timeout_ms", 0)
	if !ok {
		return
	}

	start := time.Now()
	done := h.metrics.TrackMessageOperation("receive")

	var (
		msg message.Message
		err error
	)
	if timeoutMs > 0 {
		msg, err = h.svc.ReceiveMessageTimeout(c.Request.Context(), chID, receiver, receiveTimeout(timeoutMs))
	} else {
		msg, err = h.svc.ReceiveMessage(chID, receiver)
	}
	done(err)
	if err != nil {
		writeError(c, err)
		return
	}
	h.sample(analyzer.OpReceive, msg.Transport, msg.Size(), 1, start)

	c.JSON(http.StatusOK, h.toResponse(chID, msg))
}

// receiveTimeout converts timeout_ms, capped at MaxReceiveTimeout before the
// conversion can overflow
func receiveTimeout(ms uint64) time.Duration {
	if ms > uint64(MaxReceiveTimeout/time.Millisecond) {
		return MaxReceiveTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

// ReceiveBatch dequeues up to limit messages
func (h *Handlers) ReceiveBatch(c *gin.Context) {
	chID, ok := channelID(c)
	if !ok {
		return
	}
	receiver, ok := uintQuery(c, "receiver", 0)
	if !ok {
		return
	}
	limit, ok := uintQuery(c, "limit", 16)
	if !ok {
		return
	}
	if limit == 0 || limit > 1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1024"})
		return
	}

	receive := h.svc.ReceiveBatch
	if c.Query("optimized") == "true" {
		receive = h.svc.ReceiveBatchOptimized
	}

	start := time.Now()
	done := h.metrics.TrackMessageOperation("receive_batch")
	msgs, err := receive(chID, receiver, int(limit))
	done(err)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]MessageResponse, len(msgs))
	size := 0
	for i, m := range msgs {
		out[i] = h.toResponse(chID, m)
		size += m.Size()
	}
	if len(msgs) > 0 {
		h.sample(analyzer.OpBatchReceive, msgs[0].Transport, size/len(msgs), len(msgs), start)
	}

	c.JSON(http.StatusOK, gin.H{"messages": out, "count": len(out)})
}

// Analyzer returns the performance window statistics and tuning hints
func (h *Handlers) Analyzer(c *gin.Context) {
	if h.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analyzer disabled"})
		return
	}
	suggestions := h.analyzer.OptimizationSuggestions()
	if suggestions == nil {
		suggestions = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":       h.analyzer.Stats(),
		"suggestions": suggestions,
	})
}

func (h *Handlers) sample(op analyzer.Operation, transport message.Transport, size, n int, start time.Time) {
	if h.analyzer == nil {
		return
	}
	latency := uint64(time.Since(start).Nanoseconds())
	h.analyzer.AddSample(analyzer.Sample{
		Timestamp:     uint64(start.UnixNano()),
		LatencyNs:     latency,
		ThroughputMPS: analyzer.Throughput(uint64(n), latency),
		MessageSize:   size,
		Transport:     transport,
		Operation:     op,
	})
}

func (h *Handlers) toResponse(chID uint64, msg message.Message) MessageResponse {
	resp := MessageResponse{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Kind:       msg.Kind.String(),
		Priority:   msg.Priority,
		Transport:  msg.Transport.String(),
		Mode:       msg.Mode.String(),
		BatchID:    msg.BatchID,
		Timestamp:  msg.Timestamp,
		Size:       msg.Size(),
	}
	data, err := h.svc.ResolvePayload(chID, msg)
	if err != nil {
		resp.PayloadError = err.Error()
	} else {
		resp.Data = string(data)
	}
	return resp
}

func (r SendMessageRequest) toMessage() (message.Message, error) {
	kind := message.KindData
	if r.Kind != "" {
		parsed, err := message.ParseKind(r.Kind)
		if err != nil {
			return message.Message{}, err
		}
		kind = parsed
	}

	msg := message.New(r.SenderID, r.ReceiverID, kind).
		WithPriority(r.Priority).
		WithData([]byte(r.Data))

	if r.Transport != "" {
		transport, err := message.ParseTransport(r.Transport)
		if err != nil {
			return message.Message{}, err
		}
		msg = msg.WithTransport(transport)
	}
	return msg, nil
}

func channelID(c *gin.Context) (uint64, bool) {
	chID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return 0, false
	}
	return chID, true
}

func uintQuery(c *gin.Context, key string, def uint64) (uint64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return v, true
}

// statusFor maps an error kind to an HTTP status
func statusFor(err error) int {
	switch ipcerr.KindOf(err) {
	case ipcerr.KindInvalidArgument:
		return http.StatusBadRequest
	case ipcerr.KindNotFound:
		return http.StatusNotFound
	case ipcerr.KindNameConflict, ipcerr.KindDoubleFree, ipcerr.KindInvalidIndex:
		return http.StatusConflict
	case ipcerr.KindCapacityExceeded:
		return http.StatusServiceUnavailable
	case ipcerr.KindWouldBlock, ipcerr.KindTimeout:
		return http.StatusNoContent
	case ipcerr.KindOutOfMemory:
		return http.StatusInsufficientStorage
	case ipcerr.KindUnsupported:
		return http.StatusNotImplemented
	default:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return http.StatusRequestTimeout
		}
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	writeErrorWith(c, err, nil)
}

func writeErrorWith(c *gin.Context, err error, extra gin.H) {
	status := statusFor(err)
	if status == http.StatusNoContent {
		c.Status(status)
		return
	}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}

	body := gin.H{
		"error":     err.Error(),
		"kind":      ipcerr.KindOf(err).String(),
		"retryable": ipcerr.IsRetryable(err),
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}
