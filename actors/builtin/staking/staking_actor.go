package staking

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cbg "github.com/whyrusleeping/cbor-gen"

	abi "github.com/gton-network/staking-actors/actors/abi"
	builtin "github.com/gton-network/staking-actors/actors/builtin"
	token "github.com/gton-network/staking-actors/actors/builtin/token"
	vmr "github.com/gton-network/staking-actors/actors/runtime"
	adt "github.com/gton-network/staking-actors/actors/util/adt"
)

// The staking pool actor. Holders deposit the base asset, accrue yield at a
// configurable annual rate, and redeem principal and yield. The pool
// doubles as a share token whose balance is principal plus pending reward.
type Actor struct{}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
		2:                         a.Mint,
		3:                         a.Burn,
		4:                         a.Harvest,
		5:                         a.Transfer,
		6:                         a.Approve,
		7:                         a.TransferFrom,
		8:                         a.Allowance,
		9:                         a.BalanceOf,
		10:                        a.TotalSupply,
		11:                        a.Decimals,
		12:                        a.UpdateRewardPool,
		13:                        a.SetApr,
		14:                        a.SetHarvestInterval,
		15:                        a.TogglePause,
		16:                        a.TransferOwnership,
		17:                        a.WithdrawToken,
	}
}

var _ abi.Invokee = Actor{}

type ConstructorParams struct {
	BaseAsset addr.Address
	Owner     addr.Address
}

func (a Actor) Constructor(rt vmr.Runtime, params *ConstructorParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerType(builtin.CallerTypesSignable...)

	// The share token mirrors the base asset's decimals forever after.
	ret, code := rt.Send(params.BaseAsset, builtin.MethodsToken.Decimals, nil, big.Zero())
	builtin.RequireSuccess(rt, code, "failed to query decimals of base asset %v", params.BaseAsset)
	var decimals cbg.CborInt
	err := ret.Into(&decimals)
	builtin.RequireNoErr(rt, err, exitcode.ErrSerialization, "failed to decode base asset decimals")

	st, err := ConstructState(adt.AsStore(rt), params.Owner, params.BaseAsset, uint64(decimals), rt.CurrTime())
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to construct state")
	rt.State().Create(st)
	return &adt.EmptyValue{}
}

///// Stake lifecycle /////

type MintParams struct {
	Amount abi.TokenAmount
	To     addr.Address
}

// Mint pulls a deposit from the caller into the pool and stakes it for the
// beneficiary.
func (a Actor) Mint(rt vmr.Runtime, params *MintParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	caller := rt.Message().Caller()

	var st State
	rt.State().Readonly(&st)
	requireNotPaused(rt, &st)
	if params.Amount.Sign() <= 0 {
		rt.Abortf(exitcode.ErrIllegalArgument, "Staking: Nothing to deposit")
	}

	// Custody moves before holder records; an allowance or balance failure
	// on the ledger surfaces unchanged.
	_, code := rt.Send(st.BaseAsset, builtin.MethodsToken.TransferFrom, &token.TransferFromParams{
		From:   caller,
		To:     rt.Message().Receiver(),
		Amount: params.Amount,
	}, big.Zero())
	builtin.RequireSuccess(rt, code, "failed to pull deposit of %v from %v", params.Amount, caller)

	rt.State().Transaction(&st, func() interface{} {
		st.UpdatePool(rt.CurrTime())

		store := adt.AsStore(rt)
		u, err := st.GetUserInfo(store, params.To)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load holder %v", params.To)

		u.credit(st.AccRewardPerShare)
		u.Amount = big.Add(u.Amount, params.Amount)
		u.reindex(st.AccRewardPerShare)

		err = st.putUserInfo(store, params.To, u)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to store holder %v", params.To)
		st.TotalAmount = big.Add(st.TotalAmount, params.Amount)
		return nil
	})

	rt.Log(rtt.INFO, "transfer %v -> %v %v", addr.Undef, params.To, params.Amount)
	return &adt.EmptyValue{}
}

type BurnParams struct {
	To     addr.Address
	Amount abi.TokenAmount
}

// Burn unstakes principal and releases it to the recipient.
func (a Actor) Burn(rt vmr.Runtime, params *BurnParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	caller := rt.Message().Caller()

	var st State
	rt.State().Transaction(&st, func() interface{} {
		requireNotPaused(rt, &st)
		if params.Amount.Sign() <= 0 {
			rt.Abortf(exitcode.ErrIllegalArgument, "Staking: Nothing to burn")
		}
		st.UpdatePool(rt.CurrTime())

		store := adt.AsStore(rt)
		u, err := st.GetUserInfo(store, caller)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load holder %v", caller)
		if params.Amount.GreaterThan(u.Amount) {
			rt.Abortf(exitcode.ErrInsufficientFunds, "Staking: Insufficient share")
		}

		u.credit(st.AccRewardPerShare)
		u.Amount = big.Sub(u.Amount, params.Amount)
		u.reindex(st.AccRewardPerShare)

		err = st.putUserInfo(store, caller, u)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to store holder %v", caller)
		st.TotalAmount = big.Sub(st.TotalAmount, params.Amount)
		return nil
	})

	// Custody moves only after all state mutations are committed.
	_, code := rt.Send(st.BaseAsset, builtin.MethodsToken.Transfer, &token.TransferParams{
		To:     params.To,
		Amount: params.Amount,
	}, big.Zero())
	builtin.RequireSuccess(rt, code, "failed to release %v to %v", params.Amount, params.To)

	rt.Log(rtt.INFO, "transfer %v -> %v %v", caller, addr.Undef, params.Amount)
	return &adt.EmptyValue{}
}

type HarvestParams struct {
	Amount abi.TokenAmount
}

// Harvest pays out part of the caller's pending reward, subject to the
// per-holder cooldown. Principal is untouched.
func (a Actor) Harvest(rt vmr.Runtime, params *HarvestParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	caller := rt.Message().Caller()
	now := rt.CurrTime()

	var st State
	rt.State().Transaction(&st, func() interface{} {
		requireNotPaused(rt, &st)
		if params.Amount.Sign() <= 0 {
			rt.Abortf(exitcode.ErrIllegalArgument, "Staking: Nothing to harvest")
		}
		st.UpdatePool(now)

		store := adt.AsStore(rt)
		u, err := st.GetUserInfo(store, caller)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load holder %v", caller)

		pending := u.PendingReward(st.AccRewardPerShare)
		if params.Amount.GreaterThan(pending) {
			rt.Abortf(exitcode.ErrInsufficientFunds, "Staking: Insufficient to harvest")
		}
		// Cooldown is keyed on the harvester.
		if u.LastHarvestTimestamp != 0 && int64(now-u.LastHarvestTimestamp) < st.HarvestInterval {
			rt.Abortf(exitcode.ErrForbidden, "Staking: less than 24 hours since last harvest")
		}

		u.AccumulatedReward = big.Sub(pending, params.Amount)
		u.reindex(st.AccRewardPerShare)
		u.LastHarvestTimestamp = now

		err = st.putUserInfo(store, caller, u)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to store holder %v", caller)
		return nil
	})

	// Reward payouts draw from the pool's base-asset balance; a shortfall
	// surfaces as the ledger transfer's own failure.
	_, code := rt.Send(st.BaseAsset, builtin.MethodsToken.Transfer, &token.TransferParams{
		To:     caller,
		Amount: params.Amount,
	}, big.Zero())
	builtin.RequireSuccess(rt, code, "failed to pay out %v to %v", params.Amount, caller)
	return &adt.EmptyValue{}
}

///// Share-token facade /////

type TransferParams struct {
	To     addr.Address
	Amount abi.TokenAmount
}

// Transfer moves principal only; each party's pending reward is credited to
// them before the move.
func (a Actor) Transfer(rt vmr.Runtime, params *TransferParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	caller := rt.Message().Caller()

	var st State
	rt.State().Transaction(&st, func() interface{} {
		requireNotPaused(rt, &st)
		st.UpdatePool(rt.CurrTime())
		movePrincipal(rt, &st, caller, params.To, params.Amount)
		return nil
	})

	rt.Log(rtt.INFO, "transfer %v -> %v %v", caller, params.To, params.Amount)
	return &adt.EmptyValue{}
}

type TransferFromParams struct {
	From   addr.Address
	To     addr.Address
	Amount abi.TokenAmount
}

// TransferFrom spends the caller's allowance to move principal between
// third parties.
func (a Actor) TransferFrom(rt vmr.Runtime, params *TransferFromParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	caller := rt.Message().Caller()

	var st State
	rt.State().Transaction(&st, func() interface{} {
		requireNotPaused(rt, &st)
		st.UpdatePool(rt.CurrTime())

		store := adt.AsStore(rt)
		movePrincipal(rt, &st, params.From, params.To, params.Amount)

		allowance, err := st.Allowance(store, params.From, caller)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load allowance %v/%v", params.From, caller)
		if params.Amount.GreaterThan(allowance) {
			rt.Abortf(exitcode.ErrInsufficientFunds, "ERC20: transfer amount exceeds allowance")
		}
		err = st.spendAllowance(store, params.From, caller, params.Amount)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to spend allowance %v/%v", params.From, caller)
		return nil
	})

	rt.Log(rtt.INFO, "transfer %v -> %v %v", params.From, params.To, params.Amount)
	return &adt.EmptyValue{}
}

type ApproveParams struct {
	Spender addr.Address
	Amount  abi.TokenAmount
}

// Approve overwrites the caller's approval for spender.
func (a Actor) Approve(rt vmr.Runtime, params *ApproveParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	caller := rt.Message().Caller()

	var st State
	rt.State().Transaction(&st, func() interface{} {
		requireNotPaused(rt, &st)
		err := st.setAllowance(adt.AsStore(rt), caller, params.Spender, params.Amount)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to set allowance %v/%v", caller, params.Spender)
		return nil
	})
	return &adt.EmptyValue{}
}

type AllowanceParams struct {
	Owner   addr.Address
	Spender addr.Address
}

func (a Actor) Allowance(rt vmr.Runtime, params *AllowanceParams) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Readonly(&st)
	allowance, err := st.Allowance(adt.AsStore(rt), params.Owner, params.Spender)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load allowance %v/%v", params.Owner, params.Spender)
	return &allowance
}

type BalanceOfParams struct {
	Holder addr.Address
}

// BalanceOf reports principal plus live pending reward, without committing
// accrual.
func (a Actor) BalanceOf(rt vmr.Runtime, params *BalanceOfParams) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Readonly(&st)
	balance, err := st.BalanceOf(adt.AsStore(rt), params.Holder, rt.CurrTime())
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to compute balance of %v", params.Holder)
	return &balance
}

func (a Actor) TotalSupply(rt vmr.Runtime, _ *adt.EmptyValue) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Readonly(&st)
	supply, err := st.TotalSupply(adt.AsStore(rt), rt.CurrTime())
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to compute total supply")
	return &supply
}

func (a Actor) Decimals(rt vmr.Runtime, _ *adt.EmptyValue) *cbg.CborInt {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Readonly(&st)
	decimals := cbg.CborInt(st.Decimals)
	return &decimals
}

// UpdateRewardPool commits accrual up to now. Any caller may poke it.
func (a Actor) UpdateRewardPool(rt vmr.Runtime, _ *adt.EmptyValue) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Transaction(&st, func() interface{} {
		requireNotPaused(rt, &st)
		st.UpdatePool(rt.CurrTime())
		return nil
	})
	return &adt.EmptyValue{}
}

///// Administration /////

type SetAprParams struct {
	AprBasisPoints int64
}

// SetApr changes the annual rate. Accrual is deliberately not committed
// first: time elapsed since the last update is credited at the new rate.
func (a Actor) SetApr(rt vmr.Runtime, params *SetAprParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	builtin.RequireParam(rt, params.AprBasisPoints >= 0, "negative apr %d", params.AprBasisPoints)

	var st State
	rt.State().Transaction(&st, func() interface{} {
		requireOwner(rt, &st)
		st.AprBasisPoints = params.AprBasisPoints
		return nil
	})
	return &adt.EmptyValue{}
}

type SetHarvestIntervalParams struct {
	HarvestInterval int64
}

func (a Actor) SetHarvestInterval(rt vmr.Runtime, params *SetHarvestIntervalParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	builtin.RequireParam(rt, params.HarvestInterval >= 0, "negative harvest interval %d", params.HarvestInterval)

	var st State
	rt.State().Transaction(&st, func() interface{} {
		requireOwner(rt, &st)
		st.HarvestInterval = params.HarvestInterval
		return nil
	})
	return &adt.EmptyValue{}
}

func (a Actor) TogglePause(rt vmr.Runtime, _ *adt.EmptyValue) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Transaction(&st, func() interface{} {
		requireOwner(rt, &st)
		st.Paused = !st.Paused
		return nil
	})
	return &adt.EmptyValue{}
}

type TransferOwnershipParams struct {
	Owner addr.Address
}

func (a Actor) TransferOwnership(rt vmr.Runtime, params *TransferOwnershipParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Transaction(&st, func() interface{} {
		requireOwner(rt, &st)
		st.Owner = params.Owner
		return nil
	})
	return &adt.EmptyValue{}
}

type WithdrawTokenParams struct {
	Token  addr.Address
	To     addr.Address
	Amount abi.TokenAmount
}

// WithdrawToken rescues rewards or stray tokens held by the pool. Not gated
// by pause; an insufficient balance surfaces as the ledger's own failure.
func (a Actor) WithdrawToken(rt vmr.Runtime, params *WithdrawTokenParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Readonly(&st)
	if rt.Message().Caller() != st.Owner {
		rt.Abortf(exitcode.ErrForbidden, "Staking: permitted to owner only")
	}

	_, code := rt.Send(params.Token, builtin.MethodsToken.Transfer, &token.TransferParams{
		To:     params.To,
		Amount: params.Amount,
	}, big.Zero())
	builtin.RequireSuccess(rt, code, "failed to withdraw %v of %v", params.Amount, params.Token)
	return &adt.EmptyValue{}
}

///// Guards and shared steps /////

func requireNotPaused(rt vmr.Runtime, st *State) {
	if st.Paused {
		rt.Abortf(exitcode.ErrForbidden, "Staking: contract paused.")
	}
}

func requireOwner(rt vmr.Runtime, st *State) {
	if rt.Message().Caller() != st.Owner {
		rt.Abortf(exitcode.ErrForbidden, "Staking: permitted to owner only.")
	}
}

// movePrincipal credits both parties' pending reward at the committed
// per-share index, then moves principal. The sufficiency check compares
// against principal, not the full share balance: pending reward cannot be
// transferred, only harvested.
func movePrincipal(rt vmr.Runtime, st *State, from addr.Address, to addr.Address, amount abi.TokenAmount) {
	store := adt.AsStore(rt)

	sender, err := st.GetUserInfo(store, from)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load holder %v", from)

	if from == to {
		sender.credit(st.AccRewardPerShare)
		if amount.GreaterThan(sender.Amount) {
			rt.Abortf(exitcode.ErrInsufficientFunds, "ERC20: transfer amount exceeds balance")
		}
		sender.reindex(st.AccRewardPerShare)
		err = st.putUserInfo(store, from, sender)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to store holder %v", from)
		return
	}

	receiver, err := st.GetUserInfo(store, to)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load holder %v", to)

	sender.credit(st.AccRewardPerShare)
	receiver.credit(st.AccRewardPerShare)

	if amount.GreaterThan(sender.Amount) {
		rt.Abortf(exitcode.ErrInsufficientFunds, "ERC20: transfer amount exceeds balance")
	}
	sender.Amount = big.Sub(sender.Amount, amount)
	receiver.Amount = big.Add(receiver.Amount, amount)

	sender.reindex(st.AccRewardPerShare)
	receiver.reindex(st.AccRewardPerShare)

	err = st.putUserInfo(store, from, sender)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to store holder %v", from)
	err = st.putUserInfo(store, to, receiver)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to store holder %v", to)
}
