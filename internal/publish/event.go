package publish

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

// Event is one immutable payload snapshot, serialized once for every sink.
type Event struct {
	Seq      uint64
	At       time.Time
	Payload  types.PosturePayload
	JSON     []byte // Payload as JSON
	Protobuf []byte // Payload in protobuf wire format
}

// NewEvent serializes p in both formats.
func NewEvent(seq uint64, at time.Time, p types.PosturePayload) (*Event, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Event{
		Seq:      seq,
		At:       at,
		Payload:  p,
		JSON:     data,
		Protobuf: MarshalPayload(p),
	}, nil
}

// ProtobufBase64 returns the protobuf encoding as base64 for text transports such as SSE.
func (e *Event) ProtobufBase64() []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(e.Protobuf)))
	base64.StdEncoding.Encode(out, e.Protobuf)
	return out
}
