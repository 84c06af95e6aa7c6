package garnetv1

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CodecName is the content subtype: application/cbor for Connect,
// application/grpc+cbor for gRPC.
const CodecName = "cbor"

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("garnetv1: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Codec encodes messages as canonical CBOR. It satisfies both
// connect.Codec and grpc's encoding.Codec.
type Codec struct{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("garnetv1: unmarshal %T: %w", v, err)
	}
	return nil
}
