package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/ipcerr"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/memory"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/message"
)

func newChannel(typ Type, capacity int, transport message.Transport) *Channel {
	return New(Config{
		ID:               1,
		Name:             "test",
		Type:             typ,
		MaxMessages:      capacity,
		DefaultTransport: transport,
	})
}

func dataMsg(receiver uint64, payload string) message.Message {
	return message.New(100, receiver, message.KindData).WithData([]byte(payload))
}

func TestPointToPointPriorityOrder(t *testing.T) {
	ch := newChannel(TypePointToPoint, 16, message.TransportOrderedQueue)

	for _, p := range []uint8{1, 5, 3} {
		require.NoError(t, ch.Send(dataMsg(7, "x").WithPriority(p)))
	}

	for _, want := range []uint8{5, 3, 1} {
		msg, err := ch.Receive(7)
		require.NoError(t, err)
		assert.Equal(t, want, msg.Priority)
	}

	_, err := ch.Receive(7)
	assert.ErrorIs(t, err, ipcerr.ErrWouldBlock)
}

func TestPointToPointTiesKeepSendOrder(t *testing.T) {
	ch := newChannel(TypePointToPoint, 16, message.TransportOrderedQueue)

	require.NoError(t, ch.Send(dataMsg(0, "a").WithPriority(2)))
	require.NoError(t, ch.Send(dataMsg(0, "b").WithPriority(2)))
	require.NoError(t, ch.Send(dataMsg(0, "c").WithPriority(9)))
	require.NoError(t, ch.Send(dataMsg(0, "d").WithPriority(2)))

	var got []string
	for range 4 {
		msg, err := ch.Receive(1)
		require.NoError(t, err)
		got = append(got, string(msg.Payload.Data()))
	}
	assert.Equal(t, []string{"c", "a", "b", "d"}, got)
}

func TestPointToPointReceiverFilter(t *testing.T) {
	ch := newChannel(TypePointToPoint, 16, message.TransportOrderedQueue)

	require.NoError(t, ch.Send(dataMsg(2, "for-2")))

	_, err := ch.Receive(3)
	assert.ErrorIs(t, err, ipcerr.ErrWouldBlock)
	assert.Equal(t, 1, ch.Count())

	msg, err := ch.Receive(2)
	require.NoError(t, err)
	assert.Equal(t, "for-2", string(msg.Payload.Data()))
}

func TestBroadcastLastInFirstOut(t *testing.T) {
	ch := newChannel(TypeBroadcast, 16, message.TransportOrderedQueue)

	require.NoError(t, ch.Send(dataMsg(0, "A")))
	require.NoError(t, ch.Send(dataMsg(0, "B")))

	first, err := ch.Receive(9)
	require.NoError(t, err)
	second, err := ch.Receive(9)
	require.NoError(t, err)

	assert.Equal(t, "B", string(first.Payload.Data()))
	assert.Equal(t, "A", string(second.Payload.Data()))
}

func TestSendAtCapacity(t *testing.T) {
	ch := newChannel(TypePointToPoint, 2, message.TransportOrderedQueue)

	require.NoError(t, ch.Send(dataMsg(0, "1")))
	require.NoError(t, ch.Send(dataMsg(0, "2")))
	assert.True(t, ch.IsFull())

	err := ch.Send(dataMsg(0, "3"))
	assert.ErrorIs(t, err, ipcerr.ErrCapacityExceeded)
	assert.True(t, ipcerr.IsRetryable(err))
	assert.Equal(t, 2, ch.Count())
	assert.Equal(t, uint64(1), ch.Stats().Errors)
}

func TestBatchLargerThanCapacity(t *testing.T) {
	ch := newChannel(TypePointToPoint, 5, message.TransportLockFreeQueue)

	msgs := make([]message.Message, 10)
	for i := range msgs {
		msgs[i] = dataMsg(0, "m")
	}

	sent, err := ch.SendBatch(msgs)
	assert.ErrorIs(t, err, ipcerr.ErrCapacityExceeded)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 0, ch.Count())
	assert.True(t, ch.IsEmpty())
}

func TestInlineRoundTripOnEveryTransport(t *testing.T) {
	implemented := []message.Transport{
		message.TransportOrderedQueue,
		message.TransportLockFreeQueue,
		message.TransportSharedMemory,
		message.TransportMemoryPool,
	}
	types := []Type{TypePointToPoint, TypeBroadcast, TypePubSub, TypeRequestReply, TypePipeline, TypeStream}

	for _, def := range implemented {
		for _, tr := range implemented {
			for _, typ := range types {
				t.Run(def.String()+"/"+tr.String()+"/"+typ.String(), func(t *testing.T) {
					ch := newChannel(typ, 4, def)
					payload := []byte("round trip " + tr.String())

					require.NoError(t, ch.Send(dataMsg(5, string(payload)).WithTransport(tr)))
					assert.Equal(t, 1, ch.Count())

					msg, err := ch.Receive(5)
					require.NoError(t, err)
					assert.Equal(t, payload, msg.Payload.Data())
					assert.Equal(t, 0, ch.Count())
				})
			}
		}
	}
}

func TestZeroCopyFallbackTerminates(t *testing.T) {
	// A shared-memory default with no reference must not loop
	ch := newChannel(TypePointToPoint, 4, message.TransportSharedMemory)

	require.NoError(t, ch.Send(dataMsg(0, "no region").WithTransport(message.TransportSharedMemory)))
	require.NoError(t, ch.Send(dataMsg(0, "no pool").WithTransport(message.TransportMemoryPool)))
	assert.Equal(t, 2, ch.Count())

	msgs := ch.ReceiveBatch(0, 10)
	assert.Len(t, msgs, 2)
}

func TestZeroCopyReferencesQueued(t *testing.T) {
	provider := memory.NewHeapProvider(0)
	region, err := memory.NewSharedMemoryRegion(provider, 11, 4096, memory.DefaultPermissions)
	require.NoError(t, err)

	ch := New(Config{ID: 1, Name: "shm", Type: TypeBroadcast, MaxMessages: 4, Region: region})

	msg := message.New(1, 2, message.KindData).WithSharedMemory(11, 0, 128)
	require.NoError(t, ch.Send(msg))

	got, err := ch.Receive(2)
	require.NoError(t, err)
	regionID, offset, length, ok := got.Payload.Region()
	require.True(t, ok)
	assert.Equal(t, uint64(11), regionID)
	assert.Equal(t, 0, offset)
	assert.Equal(t, 128, length)
	assert.Equal(t, uint64(message.HeaderSize), ch.Stats().BytesSent)
}

func TestCountMatchesQueuedUnderConcurrency(t *testing.T) {
	ch := newChannel(TypePointToPoint, 64, message.TransportLockFreeQueue)

	const producers = 8
	const perProducer = 500

	var sent, received sync.WaitGroup
	var mu sync.Mutex
	sentOK, recvOK := 0, 0

	sent.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer sent.Done()
			for i := 0; i < perProducer; i++ {
				tr := message.TransportLockFreeQueue
				if i%2 == 0 {
					tr = message.TransportOrderedQueue
				}
				if err := ch.Send(dataMsg(0, "c").WithTransport(tr)); err == nil {
					mu.Lock()
					sentOK++
					mu.Unlock()
				}
				assert.LessOrEqual(t, ch.Count(), 64)
			}
		}()
	}

	done := make(chan struct{})
	received.Add(1)
	go func() {
		defer received.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if _, ok := ch.TryReceive(0); ok {
				mu.Lock()
				recvOK++
				mu.Unlock()
			}
		}
	}()

	sent.Wait()
	close(done)
	received.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, sentOK-recvOK, ch.Count())
	assert.Equal(t, uint64(sentOK), ch.Stats().MessagesSent)
	assert.Equal(t, uint64(recvOK), ch.Stats().MessagesReceived)
}

func TestReceiveTimeoutExpires(t *testing.T) {
	ch := newChannel(TypePointToPoint, 4, message.TransportOrderedQueue)

	start := time.Now()
	_, err := ch.ReceiveTimeout(context.Background(), 1, 20*time.Millisecond)
	assert.ErrorIs(t, err, ipcerr.ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, uint64(1), ch.Stats().Timeouts)
}

func TestReceiveTimeoutWokenBySend(t *testing.T) {
	ch := newChannel(TypePointToPoint, 4, message.TransportLockFreeQueue)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = ch.Send(dataMsg(1, "late").WithTransport(message.TransportLockFreeQueue))
	}()

	msg, err := ch.ReceiveTimeout(context.Background(), 1, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "late", string(msg.Payload.Data()))
	assert.Equal(t, uint64(0), ch.Stats().Timeouts)
}

func TestReceiveTimeoutContextCancelled(t *testing.T) {
	ch := newChannel(TypePointToPoint, 4, message.TransportOrderedQueue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ch.ReceiveTimeout(ctx, 1, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendBatchSharesBatchID(t *testing.T) {
	tests := []struct {
		name      string
		transport message.Transport
		count     int
	}{
		{"small lock-free batch", message.TransportLockFreeQueue, 3},
		{"large lock-free batch", message.TransportLockFreeQueue, 8},
		{"ordered batch", message.TransportOrderedQueue, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := newChannel(TypePointToPoint, 16, tt.transport)

			msgs := make([]message.Message, tt.count)
			for i := range msgs {
				msgs[i] = dataMsg(0, "b").WithTransport(tt.transport)
			}

			sent, err := ch.SendBatch(msgs)
			require.NoError(t, err)
			assert.Equal(t, tt.count, sent)
			assert.Equal(t, tt.count, ch.Count())
			assert.Equal(t, uint64(tt.count), ch.Stats().MessagesSent)

			got := ch.ReceiveBatch(0, 100)
			require.Len(t, got, tt.count)
			batchID := got[0].BatchID
			assert.NotZero(t, batchID)
			for _, m := range got {
				assert.Equal(t, batchID, m.BatchID)
			}
		})
	}
}

func TestSendBatchEmpty(t *testing.T) {
	ch := newChannel(TypePointToPoint, 1, message.TransportLockFreeQueue)

	sent, err := ch.SendBatch(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestSendBatchSmartTransportSelection(t *testing.T) {
	provider := memory.NewHeapProvider(0)
	pool, err := memory.NewMemoryPool(provider, 256, 8)
	require.NoError(t, err)
	region, err := memory.NewSharedMemoryRegion(provider, 1, 1<<16, memory.DefaultPermissions)
	require.NoError(t, err)

	t.Run("no stores uses lock-free", func(t *testing.T) {
		ch := newChannel(TypePointToPoint, 16, message.TransportOrderedQueue)
		sent, err := ch.SendBatchSmart([]message.Message{dataMsg(0, "tiny"), dataMsg(0, "tiny")})
		require.NoError(t, err)
		assert.Equal(t, 2, sent)

		for _, m := range ch.ReceiveBatch(0, 10) {
			assert.Equal(t, message.TransportLockFreeQueue, m.Transport)
		}
	})

	t.Run("small payload with pool", func(t *testing.T) {
		ch := New(Config{ID: 2, Type: TypePointToPoint, MaxMessages: 16, DefaultTransport: message.TransportOrderedQueue, Pool: pool})
		pooled := message.New(1, 0, message.KindData).WithMemoryPool(0, 100)

		sent, err := ch.SendBatchSmart([]message.Message{pooled})
		require.NoError(t, err)
		assert.Equal(t, 1, sent)

		got, err := ch.Receive(0)
		require.NoError(t, err)
		assert.Equal(t, message.TransportMemoryPool, got.Transport)
	})

	t.Run("large payload with region", func(t *testing.T) {
		ch := New(Config{ID: 3, Type: TypePointToPoint, MaxMessages: 16, DefaultTransport: message.TransportOrderedQueue, Region: region})
		ref := message.New(1, 0, message.KindData).WithSharedMemory(1, 0, 8192)

		sent, err := ch.SendBatchSmart([]message.Message{ref, ref})
		require.NoError(t, err)
		assert.Equal(t, 2, sent)

		for _, m := range ch.ReceiveBatch(0, 10) {
			assert.Equal(t, message.TransportSharedMemory, m.Transport)
		}
	})
}

func TestReceiveBatchOptimizedParksOtherReceivers(t *testing.T) {
	ch := newChannel(TypePointToPoint, 16, message.TransportLockFreeQueue)

	require.NoError(t, ch.Send(dataMsg(2, "for-2").WithTransport(message.TransportLockFreeQueue)))
	require.NoError(t, ch.Send(dataMsg(1, "for-1").WithTransport(message.TransportLockFreeQueue)))
	require.NoError(t, ch.Send(dataMsg(0, "anyone").WithTransport(message.TransportLockFreeQueue)))
	require.NoError(t, ch.Send(dataMsg(1, "queued").WithTransport(message.TransportOrderedQueue)))

	got := ch.ReceiveBatchOptimized(1, 10)
	var payloads []string
	for _, m := range got {
		payloads = append(payloads, string(m.Payload.Data()))
	}
	assert.Equal(t, []string{"for-1", "anyone", "queued"}, payloads)
	assert.Equal(t, 1, ch.Count())
	assert.Equal(t, uint64(3), ch.Stats().MessagesReceived)

	parked, err := ch.Receive(2)
	require.NoError(t, err)
	assert.Equal(t, "for-2", string(parked.Payload.Data()))
	assert.True(t, ch.IsEmpty())
}

func TestReceiveBatchOptimizedLimit(t *testing.T) {
	ch := newChannel(TypePointToPoint, 16, message.TransportLockFreeQueue)
	for range 5 {
		require.NoError(t, ch.Send(dataMsg(0, "m").WithTransport(message.TransportLockFreeQueue)))
	}

	assert.Len(t, ch.ReceiveBatchOptimized(0, 3), 3)
	assert.Equal(t, 2, ch.Count())
	assert.Nil(t, ch.ReceiveBatchOptimized(0, 0))
}

func TestLockFreeMessagesReceivedFirst(t *testing.T) {
	for _, typ := range []Type{TypePointToPoint, TypeBroadcast, TypeStream} {
		t.Run(typ.String(), func(t *testing.T) {
			ch := newChannel(typ, 8, message.TransportOrderedQueue)

			require.NoError(t, ch.Send(dataMsg(0, "ordered").WithPriority(255)))
			require.NoError(t, ch.Send(dataMsg(0, "lock-free").WithTransport(message.TransportLockFreeQueue)))

			first, err := ch.Receive(0)
			require.NoError(t, err)
			assert.Equal(t, "lock-free", string(first.Payload.Data()))

			second, err := ch.Receive(0)
			require.NoError(t, err)
			assert.Equal(t, "ordered", string(second.Payload.Data()))
			assert.True(t, ch.IsEmpty())
		})
	}
}

func TestLockFreeMessagesLeadBatchReceive(t *testing.T) {
	for _, typ := range []Type{TypePointToPoint, TypeBroadcast, TypeStream} {
		t.Run(typ.String(), func(t *testing.T) {
			ch := newChannel(typ, 8, message.TransportOrderedQueue)

			require.NoError(t, ch.Send(dataMsg(0, "ordered").WithPriority(255)))
			require.NoError(t, ch.Send(dataMsg(0, "lock-free").WithTransport(message.TransportLockFreeQueue)))

			var payloads []string
			for range 2 {
				got := ch.ReceiveBatchOptimized(0, 1)
				require.Len(t, got, 1)
				payloads = append(payloads, string(got[0].Payload.Data()))
			}
			assert.Equal(t, []string{"lock-free", "ordered"}, payloads)
		})
	}

	ch := newChannel(TypePointToPoint, 8, message.TransportOrderedQueue)
	require.NoError(t, ch.Send(dataMsg(0, "ordered").WithPriority(255)))
	require.NoError(t, ch.Send(dataMsg(0, "lock-free").WithTransport(message.TransportLockFreeQueue)))

	got := ch.ReceiveBatch(0, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "lock-free", string(got[0].Payload.Data()))
	assert.Equal(t, "ordered", string(got[1].Payload.Data()))
}

func TestSendHelpers(t *testing.T) {
	ch := newChannel(TypePointToPoint, 4, message.TransportLockFreeQueue)

	require.NoError(t, ch.SendOptimized(1, 2, []byte("fast")))
	require.NoError(t, ch.SendZeroCopy(1, 2, 0xbeef, 64))

	first, err := ch.Receive(2)
	require.NoError(t, err)
	assert.Equal(t, message.TransportLockFreeQueue, first.Transport)
	assert.Equal(t, "fast", string(first.Payload.Data()))

	second, err := ch.Receive(2)
	require.NoError(t, err)
	assert.True(t, second.IsZeroCopy())
	assert.Equal(t, message.ModeZeroCopy, second.Mode)
}

func TestCloseDropsQueued(t *testing.T) {
	ch := newChannel(TypeBroadcast, 8, message.TransportOrderedQueue)
	require.NoError(t, ch.Send(dataMsg(0, "a")))
	require.NoError(t, ch.Send(dataMsg(0, "b").WithTransport(message.TransportLockFreeQueue)))

	assert.Equal(t, 2, ch.Close())
	assert.Equal(t, 0, ch.Count())
	assert.True(t, ch.IsClosed())
	assert.Equal(t, 0, ch.Close())

	err := ch.Send(dataMsg(0, "c"))
	assert.ErrorIs(t, err, ipcerr.ErrNotFound)

	_, err = ch.Receive(0)
	assert.ErrorIs(t, err, ipcerr.ErrNotFound)
}

func TestSendRacingCloseLeavesNothingQueued(t *testing.T) {
	for round := range 50 {
		ch := newChannel(TypePointToPoint, 1024, message.TransportOrderedQueue)

		var wg sync.WaitGroup
		var mu sync.Mutex
		accepted := 0

		start := make(chan struct{})
		for p := range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := range 50 {
					n := 1
					var err error
					if (p+i)%3 == 0 {
						n, err = ch.SendBatch([]message.Message{
							dataMsg(0, "b").WithTransport(message.TransportLockFreeQueue),
							dataMsg(0, "b"),
						})
					} else {
						err = ch.Send(dataMsg(0, "s").WithTransport(message.TransportLockFreeQueue))
					}
					if err != nil {
						assert.ErrorIs(t, err, ipcerr.ErrNotFound)
						n = 0
					}
					mu.Lock()
					accepted += n
					mu.Unlock()
				}
			}()
		}

		close(start)
		dropped := ch.Close()
		wg.Wait()

		mu.Lock()
		assert.Equal(t, accepted, dropped, "round %d", round)
		mu.Unlock()
		assert.Zero(t, ch.Count(), "round %d", round)
		_, ok := ch.TryReceive(0)
		assert.False(t, ok, "round %d", round)
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range []Type{TypePointToPoint, TypeBroadcast, TypePubSub, TypeRequestReply, TypePipeline, TypeStream} {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseType("mesh")
	assert.Error(t, err)
}
