package bench

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/analyzer"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/channel"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/ipcerr"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/memory"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/message"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/queue"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/tracing"
)

const (
	senderID   = 1
	receiverID = 2
)

// Runner drives a send and drain workload through each configured
// transport and samples every operation into a PerformanceAnalyzer
type Runner struct {
	svc    *ipc.Service
	perf   *analyzer.PerformanceAnalyzer
	tracer *tracing.Tracer
	logger *logging.Logger
	opts   Options
}

// NewRunner creates a runner. A nil perf gets an analyzer sized for the
// whole run.
func NewRunner(svc *ipc.Service, perf *analyzer.PerformanceAnalyzer, logger *logging.Logger, opts Options) (*Runner, error) {
	if svc == nil {
		return nil, errors.New("bench: service is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("bench: %w", err)
	}
	if perf == nil {
		perf = analyzer.New(opts.Messages * len(opts.Transports))
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		svc:    svc,
		perf:   perf,
		logger: logger.Component("bench"),
		opts:   opts,
	}, nil
}

// WithTracer records one span per run and per transport
func (r *Runner) WithTracer(tracer *tracing.Tracer) *Runner {
	r.tracer = tracer
	return r
}

// Run executes the workload. On cancellation it returns the partial report
// together with the context error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:       uuid.New().String(),
		StartedAt:   time.Now(),
		Messages:    r.opts.Messages,
		PayloadSize: r.opts.PayloadSize,
		BatchSize:   r.opts.BatchSize,
	}
	logger := r.logger.With(zap.String("run_id", report.RunID))

	if r.tracer != nil {
		var span *tracing.Span
		span, ctx = r.tracer.StartSpan(ctx, "bench.run")
		span.SetTag("run_id", report.RunID)
		defer func() {
			span.Finish()
			r.tracer.Submit(span)
		}()
	}

	logger.Info("Benchmark started",
		zap.Int("messages", r.opts.Messages),
		zap.Int("payload_size", r.opts.PayloadSize),
		zap.Int("batch_size", r.opts.BatchSize),
		zap.Int("transports", len(r.opts.Transports)))

	var err error
	for _, t := range r.opts.Transports {
		if err = ctx.Err(); err != nil {
			break
		}
		res := r.runTransport(ctx, report.RunID, t)
		report.Results = append(report.Results, res)

		logger.Info("Transport finished",
			zap.String("transport", res.Transport),
			zap.Int("sent", res.Sent),
			zap.Int("received", res.Received),
			zap.Int("failures", res.Failures),
			zap.Uint64("throughput_mps", res.ThroughputMPS),
			zap.Bool("aborted", res.Aborted),
			zap.String("error", res.Error))
	}

	report.Stats = r.perf.Stats()
	report.Suggestions = r.perf.OptimizationSuggestions()
	if report.Suggestions == nil {
		report.Suggestions = []string{}
	}
	return report, err
}

func (r *Runner) runTransport(ctx context.Context, runID string, transport message.Transport) (res TransportResult) {
	res.Transport = transport.String()

	if r.tracer != nil {
		var span *tracing.Span
		span, ctx = r.tracer.StartSpan(ctx, "bench."+res.Transport)
		defer func() {
			span.SetTag("sent", strconv.Itoa(res.Sent))
			span.SetTag("received", strconv.Itoa(res.Received))
			if res.Error != "" {
				span.SetError(errors.New(res.Error))
			}
			span.Finish()
			r.tracer.Submit(span)
		}()
	}

	if err := r.checkPayload(transport); err != nil {
		res.Error = err.Error()
		return res
	}

	capacity := 2 * r.opts.BatchSize
	name := fmt.Sprintf("bench-%s-%s", res.Transport, runID)
	chID, err := r.svc.CreateChannelWithTransport(name, channel.TypePointToPoint, capacity, transport)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer func() {
		if err := r.svc.DestroyChannel(chID); err != nil {
			r.logger.Warn("Failed to destroy bench channel", zap.Uint64("channel_id", chID), zap.Error(err))
		}
	}()

	run := r.newTransportRun(chID, transport, capacity, &res)

	start := time.Now()
	if err := run.execute(ctx); err != nil {
		res.Error = err.Error()
	}
	res.DurationNs = uint64(time.Since(start).Nanoseconds())
	res.ThroughputMPS = analyzer.Throughput(uint64(res.Received), res.DurationNs)
	return res
}

func (r *Runner) checkPayload(transport message.Transport) error {
	cfg := r.svc.Config()
	switch transport {
	case message.TransportSharedMemory:
		if r.opts.PayloadSize > cfg.RegionBytesPerMessage {
			return fmt.Errorf("payload of %d bytes exceeds region slot of %d", r.opts.PayloadSize, cfg.RegionBytesPerMessage)
		}
	case message.TransportMemoryPool:
		if r.opts.PayloadSize > cfg.PoolBlockSize {
			return fmt.Errorf("payload of %d bytes exceeds pool block of %d", r.opts.PayloadSize, cfg.PoolBlockSize)
		}
	}
	return nil
}

// transportRun is the state of one transport's workload
type transportRun struct {
	r         *Runner
	chID      uint64
	transport message.Transport
	res       *TransportResult

	payload []byte
	buf     *queue.BatchBuffer[message.Message]
	limiter *rate.Limiter
	breaker *resilience.Breaker

	// shared-memory slots, reused round robin
	region   *memory.SharedMemoryRegion
	slots    int
	slotSize int
	next     int
}

func (r *Runner) newTransportRun(chID uint64, transport message.Transport, capacity int, res *TransportResult) *transportRun {
	payload := make([]byte, r.opts.PayloadSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if r.opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.opts.RatePerSecond), max(r.opts.RatePerSecond, r.opts.BatchSize))
	}

	maxFailures := r.opts.MaxFailures
	breaker := resilience.New(transport.String(), resilience.Settings{
		Timeout:   r.opts.ReceiveTimeout,
		IsFailure: ipcerr.IsRetryable,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to resilience.State) {
			r.logger.Warn("Send breaker changed state",
				zap.String("transport", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	run := &transportRun{
		r:         r,
		chID:      chID,
		transport: transport,
		res:       res,
		payload:   payload,
		buf:       queue.NewBatchBuffer[message.Message](r.opts.BatchSize),
		limiter:   limiter,
		breaker:   breaker,
	}
	if transport == message.TransportSharedMemory {
		run.region, _ = r.svc.SharedMemory(chID)
		run.slots = capacity
		run.slotSize = r.svc.Config().RegionBytesPerMessage
	}
	return run
}

func (t *transportRun) execute(ctx context.Context) error {
	for seq := 0; seq < t.r.opts.Messages && !t.res.Aborted; seq++ {
		msg, err := t.build()
		if err != nil {
			t.res.Failures++
			continue
		}
		t.buf.Push(msg)

		if t.buf.IsFull() || seq == t.r.opts.Messages-1 {
			if err := t.flush(ctx); err != nil {
				return err
			}
		}
	}
	if t.buf.Len() > 0 {
		t.release(t.buf.Flush())
	}
	return nil
}

// build creates the next message, staging its payload in the transport's
// store for zero-copy transports
func (t *transportRun) build() (message.Message, error) {
	msg := message.New(senderID, receiverID, message.KindData).WithTransport(t.transport)

	switch t.transport {
	case message.TransportSharedMemory:
		if t.region == nil {
			return message.Message{}, ipcerr.New("bench.build", ipcerr.KindNotFound, "channel %d has no region", t.chID)
		}
		offset := (t.next % t.slots) * t.slotSize
		t.next++
		dst, err := t.region.Slice(offset, len(t.payload))
		if err != nil {
			return message.Message{}, err
		}
		copy(dst, t.payload)
		return msg.WithSharedMemory(t.region.ID(), offset, len(t.payload)), nil

	case message.TransportMemoryPool:
		index, generation, block, err := t.r.svc.AllocateChannelBlock(t.chID)
		if err != nil {
			return message.Message{}, err
		}
		copy(block, t.payload)
		return msg.WithMemoryPool(index, len(t.payload)).WithOwnership(generation), nil

	default:
		return msg.WithData(t.payload), nil
	}
}

// flush sends the staged batch through the breaker, then drains what was
// sent
func (t *transportRun) flush(ctx context.Context) error {
	batch := t.buf.Flush()
	if len(batch) == 0 {
		return nil
	}
	if err := t.limiter.WaitN(ctx, len(batch)); err != nil {
		t.release(batch)
		return err
	}

	op := analyzer.OpBatchSend
	if len(batch) == 1 {
		op = analyzer.OpSend
	}

	start := time.Now()
	sent := 0
	err := t.breaker.Execute(func() error {
		if len(batch) == 1 {
			if err := t.r.svc.SendMessage(t.chID, batch[0]); err != nil {
				return err
			}
			sent = 1
			return nil
		}
		var err error
		sent, err = t.r.svc.SendBatch(t.chID, batch)
		return err
	})
	if sent > 0 {
		t.sample(op, sent, start)
	}
	t.res.Sent += sent

	if err != nil {
		t.release(batch[sent:])
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			t.res.Aborted = true
		} else {
			t.res.Failures++
		}
	}
	return t.drain(ctx, sent)
}

// drain receives want messages, waiting up to the receive timeout when the
// channel runs dry
func (t *transportRun) drain(ctx context.Context, want int) error {
	receive := t.r.svc.ReceiveBatch
	if t.transport == message.TransportLockFreeQueue {
		receive = t.r.svc.ReceiveBatchOptimized
	}

	for got := 0; got < want; {
		op := analyzer.OpBatchReceive
		start := time.Now()

		msgs, err := receive(t.chID, receiverID, want-got)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			msg, err := t.r.svc.ReceiveMessageTimeout(ctx, t.chID, receiverID, t.r.opts.ReceiveTimeout)
			if errors.Is(err, ipcerr.ErrTimeout) {
				t.r.logger.Warn("Messages not received in time",
					zap.Uint64("channel_id", t.chID), zap.Int("missing", want-got))
				return nil
			}
			if err != nil {
				return err
			}
			msgs = []message.Message{msg}
			op = analyzer.OpReceive
		}

		t.sample(op, len(msgs), start)
		for _, m := range msgs {
			t.verify(m)
		}
		got += len(msgs)
		t.res.Received += len(msgs)
	}
	return nil
}

func (t *transportRun) verify(m message.Message) {
	data, err := t.r.svc.ResolvePayload(t.chID, m)
	if err != nil || !bytes.Equal(data, t.payload) {
		t.res.Corrupt++
	}
	if index, _, ok := m.Payload.Pool(); ok {
		_ = t.r.svc.FreeChannelBlock(t.chID, index)
	}
}

// release returns pool blocks held by messages that were never sent
func (t *transportRun) release(msgs []message.Message) {
	for _, m := range msgs {
		if index, _, ok := m.Payload.Pool(); ok {
			_ = t.r.svc.FreeChannelBlock(t.chID, index)
		}
	}
}

func (t *transportRun) sample(op analyzer.Operation, n int, start time.Time) {
	latency := uint64(time.Since(start).Nanoseconds())
	t.r.perf.AddSample(analyzer.Sample{
		Timestamp:     uint64(start.UnixNano()),
		LatencyNs:     latency,
		ThroughputMPS: analyzer.Throughput(uint64(n), latency),
		MessageSize:   len(t.payload),
		Transport:     t.transport,
		Operation:     op,
	})
}
