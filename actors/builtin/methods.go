package builtin

import (
	abi "github.com/gton-network/staking-actors/actors/abi"
)

const (
	MethodSend        = abi.MethodNum(0)
	MethodConstructor = abi.MethodNum(1)
)

type stakingMethods struct {
	Constructor        abi.MethodNum
	Mint               abi.MethodNum
	Burn               abi.MethodNum
	Harvest            abi.MethodNum
	Transfer           abi.MethodNum
	Approve            abi.MethodNum
	TransferFrom       abi.MethodNum
	Allowance          abi.MethodNum
	BalanceOf          abi.MethodNum
	TotalSupply        abi.MethodNum
	Decimals           abi.MethodNum
	UpdateRewardPool   abi.MethodNum
	SetApr             abi.MethodNum
	SetHarvestInterval abi.MethodNum
	TogglePause        abi.MethodNum
	TransferOwnership  abi.MethodNum
	WithdrawToken      abi.MethodNum
}

var MethodsStaking = stakingMethods{
	MethodConstructor, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17,
}

type tokenMethods struct {
	Constructor  abi.MethodNum
	Transfer     abi.MethodNum
	TransferFrom abi.MethodNum
	Approve      abi.MethodNum
	Allowance    abi.MethodNum
	BalanceOf    abi.MethodNum
	Decimals     abi.MethodNum
}

var MethodsToken = tokenMethods{
	MethodConstructor, 2, 3, 4, 5, 6, 7,
}
