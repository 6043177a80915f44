package types

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// jsonHandle produces deterministic output: map keys are sorted and struct
// fields are written in declaration order. Sign bytes and stored values both
// go through it.
var jsonHandle = &codec.JsonHandle{}

func init() {
	jsonHandle.Canonical = true
}

func cdcEncode(v interface{}) ([]byte, error) {
	var b bytes.Buffer
	enc := codec.NewEncoder(&b, jsonHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func cdcDecode(data []byte, v interface{}) error {
	dec := codec.NewDecoder(bytes.NewReader(data), jsonHandle)
	return dec.Decode(v)
}
