package adt

import (
	"fmt"
	"io"

	runtime "github.com/gton-network/staking-actors/actors/runtime"
)

// EmptyValue is the params/return type for methods that take or return
// nothing.
type EmptyValue struct{}

var _ runtime.CBORMarshaler = (*EmptyValue)(nil)
var _ runtime.CBORUnmarshaler = (*EmptyValue)(nil)

// Empty is a convenient instance to pass where a *EmptyValue is expected.
var Empty = &EmptyValue{}

// 0x80 is an empty list (major type 4 with zero length).
// This is the encoding since we use tuple-encoding for everything.
const emptyListEncoded = 0x80

func (EmptyValue) MarshalCBOR(w io.Writer) error {
	_, err := w.Write([]byte{emptyListEncoded})
	return err
}

func (EmptyValue) UnmarshalCBOR(r io.Reader) error {
	buf := make([]byte, 1)
	_, err := r.Read(buf)
	if err != nil {
		return err
	}
	if buf[0] != emptyListEncoded {
		return fmt.Errorf("invalid empty value %x", buf[0])
	}
	return nil
}
