// Package id provides centralized ID generation for the IPC engine.
//
// Two families of identifiers are used:
//   - Sequences: lock-free monotonically increasing uint64 counters for
//     messages, channels, shared-memory regions and batches. Zero is never
//     issued and means "none" wherever an id is optional.
//   - ULIDs: lexicographically sortable, prefixed strings naming a service
//     instance or a trace, so logs and metrics from separate instances never
//     collide.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Sequences
// ============================================================================

// Sequence issues strictly increasing ids starting at 1
type Sequence struct {
	next atomic.Uint64
}

// NewSequence creates a sequence whose first id is 1
func NewSequence() *Sequence {
	return NewSequenceFrom(1)
}

// NewSequenceFrom creates a sequence whose first id is start
func NewSequenceFrom(start uint64) *Sequence {
	s := &Sequence{}
	if start == 0 {
		start = 1
	}
	s.next.Store(start)
	return s
}

// Next returns the next id
func (s *Sequence) Next() uint64 {
	return s.next.Add(1) - 1
}

// Peek returns the id the next call to Next will return
func (s *Sequence) Peek() uint64 {
	return s.next.Load()
}

// Process-wide sequences for ids that must be unique across every channel
var (
	messageSeq = NewSequence()
	batchSeq   = NewSequence()
)

// NextMessageID returns a globally unique, monotonically increasing message id
func NextMessageID() uint64 {
	return messageSeq.Next()
}

// NextBatchID returns a globally unique batch id
func NextBatchID() uint64 {
	return batchSeq.Next()
}

// ============================================================================
// ULID Generator
// ============================================================================

// ServiceID identifies an IPC service instance
type ServiceID string

// Prefixes for generated ULID strings
const (
	ServicePrefix = "svc"
	TracePrefix   = "trc"
	SpanPrefix    = "spn"
)

// String returns the string form of the id
func (id ServiceID) String() string { return string(id) }

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewServiceID generates a new service instance ID
func NewServiceID() ServiceID {
	return ServiceID(Default().GenerateWithPrefix(ServicePrefix))
}

// NewTraceID generates a trace identifier for request tracing
func NewTraceID() string {
	return Default().GenerateWithPrefix(TracePrefix)
}

// NewSpanID generates a span identifier for request tracing
func NewSpanID() string {
	return Default().GenerateWithPrefix(SpanPrefix)
}

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Timestamp extracts the creation time from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
