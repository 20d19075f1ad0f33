package main

import (
	gen "github.com/whyrusleeping/cbor-gen"

	staking "github.com/gton-network/staking-actors/actors/builtin/staking"
	token "github.com/gton-network/staking-actors/actors/builtin/token"
)

func main() {
	if err := gen.WriteTupleEncodersToFile("./actors/builtin/staking/cbor_gen.go", "staking",
		// actor state
		staking.State{},
		staking.UserInfo{},
		// method params
		staking.ConstructorParams{},
		staking.MintParams{},
		staking.BurnParams{},
		staking.HarvestParams{},
		staking.TransferParams{},
		staking.TransferFromParams{},
		staking.ApproveParams{},
		staking.AllowanceParams{},
		staking.BalanceOfParams{},
		staking.SetAprParams{},
		staking.SetHarvestIntervalParams{},
		staking.TransferOwnershipParams{},
		staking.WithdrawTokenParams{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/token/cbor_gen.go", "token",
		token.TransferParams{},
		token.TransferFromParams{},
		token.BalanceOfParams{},
	); err != nil {
		panic(err)
	}
}
