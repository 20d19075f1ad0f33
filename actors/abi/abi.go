package abi

import (
	"strconv"

	"github.com/filecoin-project/go-state-types/big"
)

// The abi package contains definitions of the primitive types that cross the
// boundary between the host environment and actor code.

// Timestamp is a unix time in seconds, as reported by the environment.
// It acts as the proxy for time within the actors.
type Timestamp int64

func (t Timestamp) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// MethodNum identifies a particular method in an actor's function table.
// Method numbers are stable interface: once assigned, a number is never
// reused for a different method.
type MethodNum uint64

func (e MethodNum) String() string {
	return strconv.FormatUint(uint64(e), 10)
}

// TokenAmount is an amount of the base asset, in its smallest unit.
//
// It is an alias rather than a new type because a new type introduces
// incredible amounts of noise converting to and from types in order to
// manipulate values. We give up some type safety for ergonomics.
type TokenAmount = big.Int

func NewTokenAmount(t int64) TokenAmount {
	return big.NewInt(t)
}

// Invokee is the method dispatch interface all actors satisfy.
type Invokee interface {
	Exports() []interface{}
}
