package token

import (
	addr "github.com/filecoin-project/go-address"

	abi "github.com/gton-network/staking-actors/actors/abi"
)

// The base-asset (GTON) ledger is an external actor. This package carries
// the wire interface the staking pool uses to reach it: parameter types for
// the methods the pool invokes. Method numbers live in the builtin method
// table.
//
// The ledger's own implementation is out of scope; it custodies deposits and
// pays out rewards on the pool's behalf.

type TransferParams struct {
	To     addr.Address
	Amount abi.TokenAmount
}

type TransferFromParams struct {
	From   addr.Address
	To     addr.Address
	Amount abi.TokenAmount
}

type BalanceOfParams struct {
	Holder addr.Address
}
