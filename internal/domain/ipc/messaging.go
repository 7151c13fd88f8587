package ipc

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/ipcerr"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/message"
)

// SendMessage enqueues a message on a channel
func (s *Service) SendMessage(channelID uint64, msg message.Message) error {
	ch, err := s.channel("ipc.SendMessage", channelID)
	if err != nil {
		return err
	}

	if err := ch.Send(msg); err != nil {
		s.recordSendError(err)
		return err
	}

	s.stats.recordMessages(msg)
	s.recordSendMetrics(msg)
	return nil
}

// ReceiveMessage dequeues the next message for receiverID
func (s *Service) ReceiveMessage(channelID, receiverID uint64) (message.Message, error) {
	ch, err := s.channel("ipc.ReceiveMessage", channelID)
	if err != nil {
		return message.Message{}, err
	}

	msg, err := ch.Receive(receiverID)
	if err != nil {
		return message.Message{}, err
	}
	s.recordReceiveMetrics(1)
	return msg, nil
}

// TryReceiveMessage is ReceiveMessage reporting an empty channel as false.
// The error is set only for an unknown channel.
func (s *Service) TryReceiveMessage(channelID, receiverID uint64) (message.Message, bool, error) {
	ch, err := s.channel("ipc.TryReceiveMessage", channelID)
	if err != nil {
		return message.Message{}, false, err
	}

	msg, ok := ch.TryReceive(receiverID)
	if ok {
		s.recordReceiveMetrics(1)
	}
	return msg, ok, nil
}

// ReceiveMessageTimeout waits up to timeout for a message
func (s *Service) ReceiveMessageTimeout(ctx context.Context, channelID, receiverID uint64, timeout time.Duration) (message.Message, error) {
	ch, err := s.channel("ipc.ReceiveMessageTimeout", channelID)
	if err != nil {
		return message.Message{}, err
	}

	msg, err := ch.ReceiveTimeout(ctx, receiverID, timeout)
	if err != nil {
		if errors.Is(err, ipcerr.ErrTimeout) && s.metrics != nil {
			s.metrics.RecordTimeout()
		}
		return message.Message{}, err
	}
	s.recordReceiveMetrics(1)
	return msg, nil
}

// SendBatch enqueues msgs under one batch id. It returns how many were
// enqueued; the error is nil only when all of them were.
func (s *Service) SendBatch(channelID uint64, msgs []message.Message) (int, error) {
	ch, err := s.channel("ipc.SendBatch", channelID)
	if err != nil {
		return 0, err
	}

	sent, err := ch.SendBatch(msgs)
	s.finishBatchSend(channelID, "send", msgs, sent, err)
	return sent, err
}

// SendBatchSmart lets the channel pick the transport for the batch. With
// batch optimization disabled it behaves like SendBatch.
func (s *Service) SendBatchSmart(channelID uint64, msgs []message.Message) (int, error) {
	ch, err := s.channel("ipc.SendBatchSmart", channelID)
	if err != nil {
		return 0, err
	}

	var sent int
	if s.cfg.BatchOptimization {
		sent, err = ch.SendBatchSmart(msgs)
	} else {
		sent, err = ch.SendBatch(msgs)
	}
	s.finishBatchSend(channelID, "send_smart", msgs, sent, err)
	return sent, err
}

func (s *Service) finishBatchSend(channelID uint64, op string, msgs []message.Message, sent int, err error) {
	if sent > 0 {
		s.stats.batchOps.Add(1)
		s.stats.recordMessages(msgs[:sent]...)
		if s.metrics != nil {
			s.metrics.RecordBatch(op)
			for _, m := range msgs[:sent] {
				s.recordSendMetrics(m)
			}
		}
	}
	if err != nil {
		s.recordSendError(err)
		if sent > 0 {
			s.logger.Warn("Batch partially sent",
				zap.Uint64("channel_id", channelID),
				zap.Int("sent", sent),
				zap.Int("requested", len(msgs)),
				zap.Error(err))
		}
	}
}

// ReceiveBatch receives up to limit messages
func (s *Service) ReceiveBatch(channelID, receiverID uint64, limit int) ([]message.Message, error) {
	ch, err := s.channel("ipc.ReceiveBatch", channelID)
	if err != nil {
		return nil, err
	}

	msgs := ch.ReceiveBatch(receiverID, limit)
	s.finishBatchReceive("receive", len(msgs))
	return msgs, nil
}

// ReceiveBatchOptimized receives up to limit messages, draining the
// lock-free queue first
func (s *Service) ReceiveBatchOptimized(channelID, receiverID uint64, limit int) ([]message.Message, error) {
	ch, err := s.channel("ipc.ReceiveBatchOptimized", channelID)
	if err != nil {
		return nil, err
	}

	msgs := ch.ReceiveBatchOptimized(receiverID, limit)
	s.finishBatchReceive("receive_optimized", len(msgs))
	return msgs, nil
}

func (s *Service) finishBatchReceive(op string, n int) {
	s.stats.batchOps.Add(1)
	if s.metrics != nil {
		s.metrics.RecordBatch(op)
	}
	s.recordReceiveMetrics(n)
}

// SendToQueue sends inline data as a synchronous ordered-queue message
func (s *Service) SendToQueue(queueID, senderID, receiverID uint64, data []byte) error {
	msg := message.NewAt(s.clock, senderID, receiverID, message.KindData).
		WithData(data).
		WithTransport(message.TransportOrderedQueue).
		WithMode(message.ModeSynchronous)
	return s.SendMessage(queueID, msg)
}

// ReceiveFromQueue receives the next message from a queue
func (s *Service) ReceiveFromQueue(queueID, receiverID uint64) (message.Message, error) {
	return s.ReceiveMessage(queueID, receiverID)
}

func (s *Service) recordSendMetrics(msg message.Message) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordSend(msg.Transport.String(), msg.Size(), msg.IsZeroCopy())
}

func (s *Service) recordReceiveMetrics(n int) {
	if s.metrics == nil || n == 0 {
		return
	}
	s.metrics.RecordReceive(n)
}

func (s *Service) recordSendError(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordSendError(ipcerr.KindOf(err).String())
}
