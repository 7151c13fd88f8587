package channel

import (
	"fmt"
	"strings"
)

// Type is the delivery pattern of a channel
type Type uint8

const (
	TypePointToPoint Type = iota
	TypeBroadcast
	TypePubSub
	TypeRequestReply
	TypePipeline
	TypeStream
)

// String returns the string representation of the channel type
func (t Type) String() string {
	switch t {
	case TypePointToPoint:
		return "point_to_point"
	case TypeBroadcast:
		return "broadcast"
	case TypePubSub:
		return "pub_sub"
	case TypeRequestReply:
		return "request_reply"
	case TypePipeline:
		return "pipeline"
	case TypeStream:
		return "stream"
	default:
		return "unknown"
	}
}

// ParseType converts a channel type name to a Type
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "point_to_point", "p2p":
		return TypePointToPoint, nil
	case "broadcast":
		return TypeBroadcast, nil
	case "pub_sub", "pubsub", "publish_subscribe":
		return TypePubSub, nil
	case "request_reply":
		return TypeRequestReply, nil
	case "pipeline":
		return TypePipeline, nil
	case "stream":
		return TypeStream, nil
	default:
		return 0, fmt.Errorf("unknown channel type: %q", s)
	}
}

// fanOut reports whether the type delivers from the plain queue
func (t Type) fanOut() bool {
	return t == TypeBroadcast || t == TypePubSub
}
