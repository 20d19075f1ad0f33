package adt

import (
	"context"

	addr "github.com/filecoin-project/go-address"
	cid "github.com/ipfs/go-cid"
	cbornode "github.com/ipfs/go-ipld-cbor"

	vmr "github.com/gton-network/staking-actors/actors/runtime"
)

// Store defines an interface required to back the ADTs in this package.
type Store interface {
	Context() context.Context
	cbornode.IpldStore
}

// Keyer defines an interface required to put values in a mapping.
type Keyer interface {
	Key() string
}

// AsStore allows Runtime to satisfy the adt.Store interface.
func AsStore(rt vmr.Runtime) Store {
	return rtStore{rt}
}

var _ Store = &rtStore{}

type rtStore struct {
	vmr.Runtime
}

func (r rtStore) Context() context.Context {
	return r.Runtime.Context()
}

func (r rtStore) Get(_ context.Context, c cid.Cid, out interface{}) error {
	if !r.Runtime.Store().Get(c, out.(vmr.CBORUnmarshaler)) {
		return ErrObjectNotFound{c}
	}
	return nil
}

func (r rtStore) Put(_ context.Context, v interface{}) (cid.Cid, error) {
	return r.Runtime.Store().Put(v.(vmr.CBORMarshaler)), nil
}

// AddrKey adapts an address as a mapping key.
type AddrKey addr.Address

func (k AddrKey) Key() string {
	return string(addr.Address(k).Bytes())
}

// AddrPairKey adapts an ordered pair of addresses as a mapping key.
// Used for two-dimensional tables such as per-spender allowances.
type AddrPairKey struct {
	First  addr.Address
	Second addr.Address
}

func (k AddrPairKey) Key() string {
	return string(k.First.Bytes()) + string(k.Second.Bytes())
}

// ErrObjectNotFound signals a dangling reference in the store.
type ErrObjectNotFound struct {
	Cid cid.Cid
}

func (e ErrObjectNotFound) Error() string {
	return "object not found: " + e.Cid.String()
}
