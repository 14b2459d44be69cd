package shelf

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackHandler returns a MessagePack handler. It is not registered by
// default; pass it to Register to enable ".msgpack" collections.
func MsgpackHandler() FileHandler { return msgpackHandler{} }

// msgpackHandler stores one record per file as MessagePack. The format
// is binary and not hand-editable; it suits machine-written collections
// where compactness matters more than inspectability.
type msgpackHandler struct{}

func (msgpackHandler) Name() string { return "msgpack" }

func (msgpackHandler) Extensions() []string { return []string{".msgpack"} }

func (msgpackHandler) Decode(data []byte, v any, _ HandlerOptions) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal msgpack: %w", err)
	}
	return nil
}

func (msgpackHandler) Encode(v any, _ HandlerOptions) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal msgpack: %w", err)
	}
	return data, nil
}
