package prober

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec lets browser_prober.go invoke the browser-rendering
// service without protoc-generated stubs: the wire messages are plain
// Go structs marshaled as JSON over the gRPC framing, registered under
// content-subtype "json" (google.golang.org/grpc/encoding.Codec).
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
