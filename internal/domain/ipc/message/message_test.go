package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/shared/clock"
)

func TestNewDefaults(t *testing.T) {
	msg := New(1, 2, KindRequest)

	assert.NotZero(t, msg.ID)
	assert.Equal(t, uint64(1), msg.SenderID)
	assert.Equal(t, uint64(2), msg.ReceiverID)
	assert.Equal(t, KindRequest, msg.Kind)
	assert.Equal(t, uint8(0), msg.Priority)
	assert.Equal(t, TransportOrderedQueue, msg.Transport)
	assert.Equal(t, ModeSynchronous, msg.Mode)
	assert.Equal(t, PayloadNone, msg.Payload.Kind())
	assert.NotZero(t, msg.Timestamp)
	assert.False(t, msg.HasBatch())
	assert.Equal(t, HeaderSize, msg.Size())
}

func TestNewIDsIncrease(t *testing.T) {
	a := New(1, 2, KindData)
	b := New(1, 2, KindData)
	assert.Greater(t, b.ID, a.ID)
	assert.GreaterOrEqual(t, b.Timestamp, a.Timestamp)
}

func TestNewAtUsesGivenClock(t *testing.T) {
	c := clock.NewManual(42)
	msg := NewAt(c, 1, 2, KindEvent)
	assert.Equal(t, uint64(42), msg.Timestamp)
	assert.Equal(t, KindEvent, msg.Kind)

	c.Advance(8)
	assert.Equal(t, uint64(50), NewAt(c, 1, 2, KindEvent).Timestamp)
}

func TestBuildersReturnCopies(t *testing.T) {
	base := New(1, 2, KindData)
	high := base.WithPriority(9)

	assert.Equal(t, uint8(0), base.Priority)
	assert.Equal(t, uint8(9), high.Priority)
	assert.Equal(t, base.ID, high.ID)
}

func TestPayloadVariantsAreExclusive(t *testing.T) {
	msg := New(1, 2, KindData).
		WithData([]byte("hello")).
		WithMemoryPool(3, 128)

	assert.Equal(t, PayloadPool, msg.Payload.Kind())
	assert.Nil(t, msg.Payload.Data())

	_, _, _, ok := msg.Payload.Region()
	assert.False(t, ok)

	index, length, ok := msg.Payload.Pool()
	require.True(t, ok)
	assert.Equal(t, 3, index)
	assert.Equal(t, 128, length)
	assert.Equal(t, TransportMemoryPool, msg.Transport)
}

func TestSizeAndClassification(t *testing.T) {
	tests := []struct {
		name       string
		msg        Message
		size       int
		zeroCopy   bool
		managed    bool
		highPerf   bool
		payloadLen int
	}{
		{
			name: "inline",
			msg:  New(1, 2, KindData).WithData(make([]byte, 100)),
			size: HeaderSize + 100, payloadLen: 100,
		},
		{
			name: "pointer",
			msg:  New(1, 2, KindData).WithZeroCopyData(0xdead, 40),
			size: HeaderSize + 40, zeroCopy: true, payloadLen: 40,
		},
		{
			name: "region",
			msg:  New(1, 2, KindData).WithSharedMemory(7, 16, 8192),
			size: HeaderSize, zeroCopy: true, managed: true, highPerf: true, payloadLen: 8192,
		},
		{
			name: "pool",
			msg:  New(1, 2, KindData).WithMemoryPool(0, 200),
			size: HeaderSize, zeroCopy: true, managed: true, highPerf: true, payloadLen: 200,
		},
		{
			name: "lock free inline",
			msg:  New(1, 2, KindData).WithTransport(TransportLockFreeQueue).WithData([]byte("x")),
			size: HeaderSize + 1, highPerf: true, payloadLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.size, tt.msg.Size())
			assert.Equal(t, tt.zeroCopy, tt.msg.IsZeroCopy())
			assert.Equal(t, tt.managed, tt.msg.RequiresMemoryManagement())
			assert.Equal(t, tt.highPerf, tt.msg.IsHighPerformance())
			assert.Equal(t, tt.payloadLen, tt.msg.Payload.Len())
		})
	}
}

func TestZeroCopyDataSetsMode(t *testing.T) {
	msg := New(1, 2, KindData).WithZeroCopyData(0x1000, 64)

	addr, length, ok := msg.Payload.Pointer()
	require.True(t, ok)
	assert.Equal(t, uintptr(0x1000), addr)
	assert.Equal(t, 64, length)
	assert.Equal(t, ModeZeroCopy, msg.Mode)
}

func TestSharedMemoryReference(t *testing.T) {
	msg := New(1, 2, KindData).WithSharedMemory(42, 8, 100)

	regionID, offset, length, ok := msg.Payload.Region()
	require.True(t, ok)
	assert.Equal(t, uint64(42), regionID)
	assert.Equal(t, 8, offset)
	assert.Equal(t, 100, length)
	assert.Equal(t, TransportSharedMemory, msg.Transport)
}

func TestOwnershipOnlyOnReferences(t *testing.T) {
	inline := New(1, 2, KindData).WithData([]byte("a")).WithOwnership(5)
	assert.Zero(t, inline.Payload.Token())

	pooled := New(1, 2, KindData).WithMemoryPool(1, 10).WithOwnership(5)
	assert.Equal(t, uint64(5), pooled.Payload.Token())
}

func TestBatchTimeoutAndFlags(t *testing.T) {
	msg := New(1, 2, KindData).WithBatchID(11).WithTimeout(1000).WithFlags(0x3)

	assert.True(t, msg.HasBatch())
	assert.Equal(t, uint64(11), msg.BatchID)
	assert.Equal(t, ModeBatch, msg.Mode)
	assert.Equal(t, uint64(1000), msg.Timeout)
	assert.Equal(t, uint32(0x3), msg.Flags)
}

func TestParseTransport(t *testing.T) {
	for _, tr := range Transports {
		got, err := ParseTransport(tr.String())
		require.NoError(t, err, tr.String())
		assert.Equal(t, tr, got)
	}

	got, err := ParseTransport(" SHM ")
	require.NoError(t, err)
	assert.Equal(t, TransportSharedMemory, got)

	_, err = ParseTransport("carrier_pigeon")
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	for k := KindData; k <= KindBatch; k++ {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	got, err := ParseKind("Request")
	require.NoError(t, err)
	assert.Equal(t, KindRequest, got)

	_, err = ParseKind("unknown")
	assert.Error(t, err)
}

func TestTransportImplemented(t *testing.T) {
	implemented := map[Transport]bool{
		TransportOrderedQueue:  true,
		TransportLockFreeQueue: true,
		TransportSharedMemory:  true,
		TransportMemoryPool:    true,
	}
	for _, tr := range Transports {
		assert.Equal(t, implemented[tr], tr.Implemented(), tr.String())
	}
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "event", KindEvent.String())
	assert.Equal(t, "zero_copy", ModeZeroCopy.String())
	assert.Equal(t, "region", PayloadRegion.String())
	assert.Equal(t, "unknown", Transport(200).String())
}
