package staking_test

import (
	"context"
	"strings"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cbg "github.com/whyrusleeping/cbor-gen"

	abi "github.com/gton-network/staking-actors/actors/abi"
	"github.com/gton-network/staking-actors/actors/builtin"
	"github.com/gton-network/staking-actors/actors/builtin/staking"
	"github.com/gton-network/staking-actors/actors/builtin/token"
	adt "github.com/gton-network/staking-actors/actors/util/adt"
	"github.com/gton-network/staking-actors/support/mock"
	tutil "github.com/gton-network/staking-actors/support/testing"
)

const month = abi.Timestamp(2_592_000)

func TestExports(t *testing.T) {
	mock.CheckActorExports(t, staking.Actor{})
	assert.Len(t, staking.Actor{}.Exports(), int(builtin.MethodsStaking.WithdrawToken)+1)
}

type actorHarness struct {
	staking.Actor
	t testing.TB

	pool      addr.Address
	owner     addr.Address
	baseAsset addr.Address
}

func newHarness(t testing.TB) *actorHarness {
	return &actorHarness{
		Actor:     staking.Actor{},
		t:         t,
		pool:      tutil.NewIDAddr(t, 100),
		owner:     tutil.NewIDAddr(t, 101),
		baseAsset: tutil.NewIDAddr(t, 102),
	}
}

func (h *actorHarness) builder() *mock.RuntimeBuilder {
	return mock.NewBuilder(context.Background(), h.pool).
		WithCaller(h.owner, builtin.AccountActorCodeID).
		WithTime(constructionTime)
}

func (h *actorHarness) constructAndVerify(rt *mock.Runtime) {
	rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
	decimals := cbg.CborInt(18)
	rt.ExpectSend(h.baseAsset, builtin.MethodsToken.Decimals, nil, big.Zero(), &decimals, exitcode.Ok)
	ret := rt.Call(h.Constructor, &staking.ConstructorParams{BaseAsset: h.baseAsset, Owner: h.owner})
	assert.Equal(h.t, &adt.EmptyValue{}, ret)
	rt.Verify()
}

func (h *actorHarness) mint(rt *mock.Runtime, caller addr.Address, to addr.Address, amount abi.TokenAmount) {
	rt.SetCaller(caller, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAny()
	rt.ExpectSend(h.baseAsset, builtin.MethodsToken.TransferFrom, &token.TransferFromParams{
		From:   caller,
		To:     h.pool,
		Amount: amount,
	}, big.Zero(), nil, exitcode.Ok)
	rt.Call(h.Mint, &staking.MintParams{Amount: amount, To: to})
	rt.Verify()
}

func (h *actorHarness) burn(rt *mock.Runtime, caller addr.Address, to addr.Address, amount abi.TokenAmount) {
	rt.SetCaller(caller, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAny()
	rt.ExpectSend(h.baseAsset, builtin.MethodsToken.Transfer, &token.TransferParams{
		To:     to,
		Amount: amount,
	}, big.Zero(), nil, exitcode.Ok)
	rt.Call(h.Burn, &staking.BurnParams{To: to, Amount: amount})
	rt.Verify()
}

func (h *actorHarness) harvest(rt *mock.Runtime, caller addr.Address, amount abi.TokenAmount) {
	rt.SetCaller(caller, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAny()
	rt.ExpectSend(h.baseAsset, builtin.MethodsToken.Transfer, &token.TransferParams{
		To:     caller,
		Amount: amount,
	}, big.Zero(), nil, exitcode.Ok)
	rt.Call(h.Harvest, &staking.HarvestParams{Amount: amount})
	rt.Verify()
}

func (h *actorHarness) transfer(rt *mock.Runtime, caller addr.Address, to addr.Address, amount abi.TokenAmount) {
	rt.SetCaller(caller, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAny()
	rt.Call(h.Transfer, &staking.TransferParams{To: to, Amount: amount})
	rt.Verify()
}

func (h *actorHarness) approve(rt *mock.Runtime, caller addr.Address, spender addr.Address, amount abi.TokenAmount) {
	rt.SetCaller(caller, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAny()
	rt.Call(h.Approve, &staking.ApproveParams{Spender: spender, Amount: amount})
	rt.Verify()
}

func (h *actorHarness) togglePause(rt *mock.Runtime) {
	rt.SetCaller(h.owner, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAny()
	rt.Call(h.TogglePause, nil)
	rt.Verify()
}

func (h *actorHarness) balanceOf(rt *mock.Runtime, holder addr.Address) abi.TokenAmount {
	rt.SetCaller(holder, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.BalanceOf, &staking.BalanceOfParams{Holder: holder}).(*abi.TokenAmount)
	rt.Verify()
	return *ret
}

func (h *actorHarness) allowance(rt *mock.Runtime, owner addr.Address, spender addr.Address) abi.TokenAmount {
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.Allowance, &staking.AllowanceParams{Owner: owner, Spender: spender}).(*abi.TokenAmount)
	rt.Verify()
	return *ret
}

func getState(rt *mock.Runtime) *staking.State {
	var st staking.State
	rt.GetState(&st)
	return &st
}

func getUserInfo(t testing.TB, rt *mock.Runtime, holder addr.Address) *staking.UserInfo {
	st := getState(rt)
	u, err := st.GetUserInfo(rt.AdtStore(), holder)
	require.NoError(t, err)
	return u
}

func checkState(t testing.TB, rt *mock.Runtime) {
	st := getState(rt)
	_, acc := staking.CheckStateInvariants(st, rt.AdtStore(), rt.Time())
	assert.True(t, acc.IsEmpty(), strings.Join(acc.Messages(), "\n"))
}

func TestConstruction(t *testing.T) {
	h := newHarness(t)

	t.Run("initializes pool defaults", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		st := getState(rt)
		assert.Equal(t, h.owner, st.Owner)
		assert.Equal(t, h.baseAsset, st.BaseAsset)
		assert.Equal(t, uint64(18), st.Decimals)
		assert.Equal(t, big.Zero(), st.TotalAmount)
		assert.Equal(t, int64(2500), st.AprBasisPoints)
		assert.Equal(t, int64(86_400), st.HarvestInterval)
		assert.Equal(t, big.Zero(), st.AccRewardPerShare)
		assert.Equal(t, constructionTime, st.LastRewardTimestamp)
		assert.False(t, st.Paused)
		checkState(t, rt)
	})

	t.Run("fails when base asset decimals query fails", func(t *testing.T) {
		rt := h.builder().Build(t)
		rt.ExpectValidateCallerType(builtin.CallerTypesSignable...)
		rt.ExpectSend(h.baseAsset, builtin.MethodsToken.Decimals, nil, big.Zero(), nil, exitcode.ErrNotFound)
		rt.ExpectAbort(exitcode.ErrNotFound, func() {
			rt.Call(h.Constructor, &staking.ConstructorParams{BaseAsset: h.baseAsset, Owner: h.owner})
		})
	})
}

func TestMint(t *testing.T) {
	h := newHarness(t)
	staker := tutil.NewIDAddr(t, 103)

	t.Run("first deposit materializes the holder", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		amount := big.NewInt(974_426_000_000)
		h.mint(rt, staker, staker, amount)

		st := getState(rt)
		assert.Equal(t, amount, st.TotalAmount)

		u := getUserInfo(t, rt, staker)
		assert.Equal(t, amount, u.Amount)
		assert.Equal(t, big.Zero(), u.RewardDebt)
		assert.Equal(t, big.Zero(), u.AccumulatedReward)
		checkState(t, rt)
	})

	t.Run("repeat deposit credits accrued reward first", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		amount := big.NewInt(974_426_000_000)
		h.mint(rt, staker, staker, amount)

		rt.SetTime(constructionTime + 86_400)
		h.mint(rt, staker, staker, big.NewInt(1_000_000))

		st := getState(rt)
		assert.Equal(t, big.NewInt(684_462_696), st.AccRewardPerShare)

		u := getUserInfo(t, rt, staker)
		// amount * 684_462_696 / 1e12 with zero prior debt.
		assert.Equal(t, big.NewInt(666_958_247), u.AccumulatedReward)
		assert.Equal(t, big.NewInt(974_427_000_000), u.Amount)
		// Debt is re-based against the new amount.
		assert.Equal(t, big.Div(big.Mul(u.Amount, st.AccRewardPerShare), staking.CalcDecimals), u.RewardDebt)
		checkState(t, rt)
	})

	t.Run("deposit for a different beneficiary", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		beneficiary := tutil.NewSECP256K1Addr(t, "beneficiary")
		h.mint(rt, staker, beneficiary, big.NewInt(5000))

		assert.Equal(t, big.NewInt(5000), getUserInfo(t, rt, beneficiary).Amount)
		assert.Equal(t, big.Zero(), getUserInfo(t, rt, staker).Amount)
		checkState(t, rt)
	})

	t.Run("zero deposit is rejected", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		rt.SetCaller(staker, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbortContainingMessage(exitcode.ErrIllegalArgument, "Staking: Nothing to deposit", func() {
			rt.Call(h.Mint, &staking.MintParams{Amount: big.Zero(), To: staker})
		})
	})

	t.Run("ledger failure propagates and leaves state untouched", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		amount := big.NewInt(1000)
		rt.SetCaller(staker, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectSend(h.baseAsset, builtin.MethodsToken.TransferFrom, &token.TransferFromParams{
			From:   staker,
			To:     h.pool,
			Amount: amount,
		}, big.Zero(), nil, exitcode.ErrInsufficientFunds)
		rt.ExpectAbort(exitcode.ErrInsufficientFunds, func() {
			rt.Call(h.Mint, &staking.MintParams{Amount: amount, To: staker})
		})

		assert.Equal(t, big.Zero(), getState(rt).TotalAmount)
		checkState(t, rt)
	})
}

func TestBurn(t *testing.T) {
	h := newHarness(t)
	staker := tutil.NewIDAddr(t, 103)
	recipient := tutil.NewIDAddr(t, 104)

	t.Run("burn releases principal to the recipient", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, staker, staker, big.NewInt(10_000))

		rt.SetTime(constructionTime + 86_400)
		h.burn(rt, staker, recipient, big.NewInt(4000))

		st := getState(rt)
		assert.Equal(t, big.NewInt(6000), st.TotalAmount)

		u := getUserInfo(t, rt, staker)
		assert.Equal(t, big.NewInt(6000), u.Amount)
		// Pending reward was credited before the principal change.
		assert.Equal(t, big.Div(big.Mul(big.NewInt(10_000), st.AccRewardPerShare), staking.CalcDecimals), u.AccumulatedReward)
		assert.Equal(t, big.Div(big.Mul(u.Amount, st.AccRewardPerShare), staking.CalcDecimals), u.RewardDebt)
		checkState(t, rt)
	})

	t.Run("burning the full stake preserves accumulated reward", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, staker, staker, big.NewInt(10_000))

		rt.SetTime(constructionTime + month)
		h.burn(rt, staker, staker, big.NewInt(10_000))

		u := getUserInfo(t, rt, staker)
		assert.Equal(t, big.Zero(), u.Amount)
		assert.Equal(t, big.Zero(), u.RewardDebt)
		assert.Equal(t, big.Div(big.Mul(big.NewInt(10_000), big.NewInt(20_533_880_903)), staking.CalcDecimals), u.AccumulatedReward)
		checkState(t, rt)
	})

	t.Run("zero burn is rejected", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, staker, staker, big.NewInt(10_000))

		rt.SetCaller(staker, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbortContainingMessage(exitcode.ErrIllegalArgument, "Staking: Nothing to burn", func() {
			rt.Call(h.Burn, &staking.BurnParams{To: recipient, Amount: big.Zero()})
		})
	})

	t.Run("burn above principal is rejected", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, staker, staker, big.NewInt(10_000))

		rt.SetCaller(staker, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbortContainingMessage(exitcode.ErrInsufficientFunds, "Staking: Insufficient share", func() {
			rt.Call(h.Burn, &staking.BurnParams{To: recipient, Amount: big.NewInt(10_001)})
		})
		checkState(t, rt)
	})
}

func TestHarvest(t *testing.T) {
	h := newHarness(t)
	staker := tutil.NewIDAddr(t, 103)
	stake := big.NewInt(1e18)
	// 1e18 * 20_533_880_903 / 1e12 after one month at the default rate.
	monthReward := big.NewInt(20_533_880_903_000_000)

	t.Run("harvest pays out and re-bases the remainder", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, staker, staker, stake)

		rt.SetTime(constructionTime + month)
		h.harvest(rt, staker, big.NewInt(1))

		u := getUserInfo(t, rt, staker)
		assert.Equal(t, big.Sub(monthReward, big.NewInt(1)), u.AccumulatedReward)
		assert.Equal(t, stake, u.Amount)
		assert.Equal(t, constructionTime+month, u.LastHarvestTimestamp)
		checkState(t, rt)
	})

	t.Run("a second harvest within the interval is rejected", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, staker, staker, stake)

		rt.SetTime(constructionTime + month)
		h.harvest(rt, staker, big.NewInt(1))

		rt.ExpectValidateCallerAny()
		rt.ExpectAbortContainingMessage(exitcode.ErrForbidden, "Staking: less than 24 hours since last harvest", func() {
			rt.Call(h.Harvest, &staking.HarvestParams{Amount: big.NewInt(1)})
		})

		// After the cooldown the remainder is harvestable.
		rt.SetTime(constructionTime + month + 86_400)
		h.harvest(rt, staker, big.NewInt(1))
		checkState(t, rt)
	})

	t.Run("zero harvest is rejected", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, staker, staker, stake)

		rt.SetCaller(staker, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbortContainingMessage(exitcode.ErrIllegalArgument, "Staking: Nothing to harvest", func() {
			rt.Call(h.Harvest, &staking.HarvestParams{Amount: big.Zero()})
		})
	})

	t.Run("harvest above pending is rejected", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, staker, staker, stake)

		rt.SetTime(constructionTime + month)
		rt.SetCaller(staker, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbortContainingMessage(exitcode.ErrInsufficientFunds, "Staking: Insufficient to harvest", func() {
			rt.Call(h.Harvest, &staking.HarvestParams{Amount: big.Add(monthReward, big.NewInt(1))})
		})
		checkState(t, rt)
	})

	t.Run("harvesting everything leaves a zero remainder", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, staker, staker, stake)

		rt.SetTime(constructionTime + month)
		h.harvest(rt, staker, monthReward)

		u := getUserInfo(t, rt, staker)
		assert.Equal(t, big.Zero(), u.AccumulatedReward)
		assert.Equal(t, big.Div(big.Mul(stake, big.NewInt(20_533_880_903)), staking.CalcDecimals), u.RewardDebt)
		checkState(t, rt)
	})
}

func TestTransfer(t *testing.T) {
	h := newHarness(t)
	alice := tutil.NewIDAddr(t, 103)
	bob := tutil.NewIDAddr(t, 104)
	stake := big.Mul(big.NewInt(279), big.NewInt(1e18))

	t.Run("transfer moves principal and splits pending", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, alice, alice, stake)

		rt.SetTime(constructionTime + 130)
		moved := big.Sub(stake, big.NewInt(65))
		h.transfer(rt, alice, bob, moved)

		st := getState(rt)
		assert.Equal(t, stake, st.TotalAmount)

		ua := getUserInfo(t, rt, alice)
		ub := getUserInfo(t, rt, bob)
		assert.Equal(t, big.NewInt(65), ua.Amount)
		assert.Equal(t, moved, ub.Amount)
		// Alice's pre-transfer pending was absorbed; Bob had none.
		assert.Equal(t, big.NewInt(287_331_498_000_000), ua.AccumulatedReward)
		assert.Equal(t, big.Zero(), ub.AccumulatedReward)
		assert.Equal(t, big.Div(big.Mul(ua.Amount, st.AccRewardPerShare), staking.CalcDecimals), ua.RewardDebt)
		assert.Equal(t, big.Div(big.Mul(ub.Amount, st.AccRewardPerShare), staking.CalcDecimals), ub.RewardDebt)
		checkState(t, rt)
	})

	t.Run("transfer above principal is rejected even when pending covers it", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, alice, alice, stake)

		// A year of accrual makes the share balance strictly larger than
		// the principal, but principal is all that can move.
		rt.SetTime(constructionTime + staking.SecondsPerYear)
		balance := h.balanceOf(rt, alice)
		assert.True(t, balance.GreaterThan(stake))

		rt.ExpectValidateCallerAny()
		rt.ExpectAbortContainingMessage(exitcode.ErrInsufficientFunds, "ERC20: transfer amount exceeds balance", func() {
			rt.Call(h.Transfer, &staking.TransferParams{To: bob, Amount: big.Add(stake, big.NewInt(1))})
		})
		checkState(t, rt)
	})

	t.Run("self transfer leaves the stake unchanged", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, alice, alice, stake)

		rt.SetTime(constructionTime + 130)
		h.transfer(rt, alice, alice, stake)

		ua := getUserInfo(t, rt, alice)
		assert.Equal(t, stake, ua.Amount)
		assert.Equal(t, big.NewInt(287_331_498_000_000), ua.AccumulatedReward)
		checkState(t, rt)
	})
}

func TestApproveAndTransferFrom(t *testing.T) {
	h := newHarness(t)
	alice := tutil.NewIDAddr(t, 103)
	bob := tutil.NewIDAddr(t, 104)
	spender := tutil.NewIDAddr(t, 105)

	t.Run("transferFrom spends the allowance", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, alice, alice, big.NewInt(10_000))
		h.approve(rt, alice, spender, big.NewInt(100))

		assert.Equal(t, big.NewInt(100), h.allowance(rt, alice, spender))

		rt.SetCaller(spender, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.Call(h.TransferFrom, &staking.TransferFromParams{From: alice, To: bob, Amount: big.NewInt(60)})
		rt.Verify()

		assert.Equal(t, big.NewInt(40), h.allowance(rt, alice, spender))
		assert.Equal(t, big.NewInt(9940), getUserInfo(t, rt, alice).Amount)
		assert.Equal(t, big.NewInt(60), getUserInfo(t, rt, bob).Amount)
		checkState(t, rt)
	})

	t.Run("transferFrom above the allowance is rejected", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, alice, alice, big.NewInt(10_000))
		h.approve(rt, alice, spender, big.NewInt(100))

		rt.SetCaller(spender, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbortContainingMessage(exitcode.ErrInsufficientFunds, "ERC20: transfer amount exceeds allowance", func() {
			rt.Call(h.TransferFrom, &staking.TransferFromParams{From: alice, To: bob, Amount: big.NewInt(101)})
		})
		checkState(t, rt)
	})

	t.Run("approve overwrites a prior approval", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		h.approve(rt, alice, spender, big.NewInt(100))
		h.approve(rt, alice, spender, big.NewInt(7))
		assert.Equal(t, big.NewInt(7), h.allowance(rt, alice, spender))
		checkState(t, rt)
	})
}

func TestPause(t *testing.T) {
	h := newHarness(t)
	staker := tutil.NewIDAddr(t, 103)

	t.Run("pause rejects every user-facing mutator", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, staker, staker, big.NewInt(10_000))
		h.togglePause(rt)

		rt.SetCaller(staker, builtin.AccountActorCodeID)
		paused := func(f func()) {
			rt.ExpectValidateCallerAny()
			rt.ExpectAbortContainingMessage(exitcode.ErrForbidden, "Staking: contract paused.", f)
		}
		paused(func() { rt.Call(h.Mint, &staking.MintParams{Amount: big.NewInt(1), To: staker}) })
		paused(func() { rt.Call(h.Burn, &staking.BurnParams{To: staker, Amount: big.NewInt(1)}) })
		paused(func() { rt.Call(h.Harvest, &staking.HarvestParams{Amount: big.NewInt(1)}) })
		paused(func() { rt.Call(h.Transfer, &staking.TransferParams{To: staker, Amount: big.NewInt(1)}) })
		paused(func() { rt.Call(h.Approve, &staking.ApproveParams{Spender: staker, Amount: big.NewInt(1)}) })
		paused(func() { rt.Call(h.TransferFrom, &staking.TransferFromParams{From: staker, To: staker, Amount: big.NewInt(1)}) })
		paused(func() { rt.Call(h.UpdateRewardPool, nil) })
		checkState(t, rt)
	})

	t.Run("unpausing restores function", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.togglePause(rt)
		h.togglePause(rt)
		assert.False(t, getState(rt).Paused)

		h.mint(rt, staker, staker, big.NewInt(10_000))
		checkState(t, rt)
	})

	t.Run("admin and rescue stay available while paused", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.togglePause(rt)

		rt.SetCaller(h.owner, builtin.AccountActorCodeID)

		rt.ExpectValidateCallerAny()
		rt.Call(h.SetApr, &staking.SetAprParams{AprBasisPoints: 1200})
		rt.Verify()

		rt.ExpectValidateCallerAny()
		rt.Call(h.SetHarvestInterval, &staking.SetHarvestIntervalParams{HarvestInterval: 3600})
		rt.Verify()

		rt.ExpectValidateCallerAny()
		rt.ExpectSend(h.baseAsset, builtin.MethodsToken.Transfer, &token.TransferParams{
			To:     h.owner,
			Amount: big.NewInt(123),
		}, big.Zero(), nil, exitcode.Ok)
		rt.Call(h.WithdrawToken, &staking.WithdrawTokenParams{Token: h.baseAsset, To: h.owner, Amount: big.NewInt(123)})
		rt.Verify()

		rt.ExpectValidateCallerAny()
		rt.Call(h.TransferOwnership, &staking.TransferOwnershipParams{Owner: h.owner})
		rt.Verify()

		st := getState(rt)
		assert.True(t, st.Paused)
		assert.Equal(t, int64(1200), st.AprBasisPoints)
		assert.Equal(t, int64(3600), st.HarvestInterval)
		checkState(t, rt)
	})
}

func TestAdminGuards(t *testing.T) {
	h := newHarness(t)
	stranger := tutil.NewIDAddr(t, 106)

	cases := []struct {
		name string
		call func(rt *mock.Runtime)
	}{
		{"setApr", func(rt *mock.Runtime) { rt.Call(h.SetApr, &staking.SetAprParams{AprBasisPoints: 1}) }},
		{"setHarvestInterval", func(rt *mock.Runtime) {
			rt.Call(h.SetHarvestInterval, &staking.SetHarvestIntervalParams{HarvestInterval: 1})
		}},
		{"togglePause", func(rt *mock.Runtime) { rt.Call(h.TogglePause, nil) }},
		{"transferOwnership", func(rt *mock.Runtime) {
			rt.Call(h.TransferOwnership, &staking.TransferOwnershipParams{Owner: stranger})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name+" rejects non-owner", func(t *testing.T) {
			rt := h.builder().Build(t)
			h.constructAndVerify(rt)

			rt.SetCaller(stranger, builtin.AccountActorCodeID)
			rt.ExpectValidateCallerAny()
			rt.ExpectAbortContainingMessage(exitcode.ErrForbidden, "Staking: permitted to owner only.", func() {
				tc.call(rt)
			})
		})
	}

	t.Run("withdrawToken rejects non-owner", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		rt.SetCaller(stranger, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbortContainingMessage(exitcode.ErrForbidden, "Staking: permitted to owner only", func() {
			rt.Call(h.WithdrawToken, &staking.WithdrawTokenParams{Token: h.baseAsset, To: stranger, Amount: big.NewInt(1)})
		})
	})

	t.Run("ownership transfer hands over control", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		newOwner := tutil.NewIDAddr(t, 107)
		rt.SetCaller(h.owner, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.Call(h.TransferOwnership, &staking.TransferOwnershipParams{Owner: newOwner})
		rt.Verify()

		// The old owner is now a stranger.
		rt.ExpectValidateCallerAny()
		rt.ExpectAbortContainingMessage(exitcode.ErrForbidden, "Staking: permitted to owner only.", func() {
			rt.Call(h.SetApr, &staking.SetAprParams{AprBasisPoints: 1})
		})

		rt.SetCaller(newOwner, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.Call(h.SetApr, &staking.SetAprParams{AprBasisPoints: 1})
		rt.Verify()
		checkState(t, rt)
	})
}

func TestSetAprIsRetroactiveUntilNextUpdate(t *testing.T) {
	h := newHarness(t)
	staker := tutil.NewIDAddr(t, 103)

	rt := h.builder().Build(t)
	h.constructAndVerify(rt)
	h.mint(rt, staker, staker, big.NewInt(1e18))

	// Rate changes mid-period without committing accrual, so the whole
	// elapsed window is credited at the new rate on the next update.
	rt.SetTime(constructionTime + 100)
	rt.SetCaller(h.owner, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAny()
	rt.Call(h.SetApr, &staking.SetAprParams{AprBasisPoints: 1200})
	rt.Verify()

	assert.Equal(t, constructionTime, getState(rt).LastRewardTimestamp)

	rt.SetTime(constructionTime + 200)
	rt.SetCaller(staker, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAny()
	rt.Call(h.UpdateRewardPool, nil)
	rt.Verify()

	st := getState(rt)
	// 200 seconds at 1200 bp, none at the old 2500 bp.
	assert.Equal(t, big.NewInt(760_514), st.AccRewardPerShare)
	assert.Equal(t, constructionTime+200, st.LastRewardTimestamp)
	checkState(t, rt)
}

func TestBalanceReads(t *testing.T) {
	h := newHarness(t)
	staker := tutil.NewIDAddr(t, 103)
	stake := big.NewInt(1e18)

	t.Run("balanceOf observes live accrual without committing", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, staker, staker, stake)

		rt.SetTime(constructionTime + month)
		balance := h.balanceOf(rt, staker)
		assert.Equal(t, big.Add(stake, big.NewInt(20_533_880_903_000_000)), balance)

		// The read did not advance the committed accumulator.
		st := getState(rt)
		assert.Equal(t, big.Zero(), st.AccRewardPerShare)
		assert.Equal(t, constructionTime, st.LastRewardTimestamp)
	})

	t.Run("totalSupply covers all holders' pending", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.mint(rt, staker, staker, stake)
		other := tutil.NewIDAddr(t, 104)
		h.mint(rt, other, other, stake)

		rt.SetTime(constructionTime + month)
		rt.ExpectValidateCallerAny()
		supply := rt.Call(h.TotalSupply, nil).(*abi.TokenAmount)
		rt.Verify()

		expected := big.Add(big.Mul(big.NewInt(2), stake), big.Mul(big.NewInt(2), big.NewInt(20_533_880_903_000_000)))
		assert.Equal(t, expected, *supply)
	})

	t.Run("decimals mirror the base asset", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		rt.ExpectValidateCallerAny()
		decimals := rt.Call(h.Decimals, nil).(*cbg.CborInt)
		rt.Verify()
		assert.Equal(t, cbg.CborInt(18), *decimals)
	})
}

func TestAnnualYieldIsExact(t *testing.T) {
	h := newHarness(t)
	staker := tutil.NewIDAddr(t, 103)

	for _, apr := range []int64{900, 1200, 2500, 7500} {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		rt.SetCaller(h.owner, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.Call(h.SetApr, &staking.SetAprParams{AprBasisPoints: apr})
		rt.Verify()

		stake := big.Mul(big.NewInt(4), big.NewInt(1e18))
		h.mint(rt, staker, staker, stake)

		rt.SetTime(constructionTime + staking.SecondsPerYear)
		balance := h.balanceOf(rt, staker)

		yield := big.Div(big.Mul(stake, big.NewInt(apr)), big.NewInt(staking.BasisPointsDivisor))
		assert.Equal(t, big.Add(stake, yield), balance, "apr %d", apr)
	}
}

func TestUpdateRewardPoolMethod(t *testing.T) {
	h := newHarness(t)
	staker := tutil.NewIDAddr(t, 103)

	rt := h.builder().Build(t)
	h.constructAndVerify(rt)
	h.mint(rt, staker, staker, big.NewInt(974_426_000_000))

	rt.SetTime(constructionTime + 86_400)
	rt.ExpectValidateCallerAny()
	rt.Call(h.UpdateRewardPool, nil)
	rt.Verify()

	st := getState(rt)
	assert.Equal(t, big.NewInt(684_462_696), st.AccRewardPerShare)
	assert.Equal(t, constructionTime+86_400, st.LastRewardTimestamp)

	// A second poke at the same timestamp changes nothing.
	rt.ExpectValidateCallerAny()
	rt.Call(h.UpdateRewardPool, nil)
	rt.Verify()
	assert.Equal(t, big.NewInt(684_462_696), getState(rt).AccRewardPerShare)
	checkState(t, rt)
}

func TestWithdrawToken(t *testing.T) {
	h := newHarness(t)

	t.Run("owner rescues a stray token", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		stray := tutil.NewActorAddr(t, "stray token")
		rt.SetCaller(h.owner, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectSend(stray, builtin.MethodsToken.Transfer, &token.TransferParams{
			To:     h.owner,
			Amount: big.NewInt(555),
		}, big.Zero(), nil, exitcode.Ok)
		rt.Call(h.WithdrawToken, &staking.WithdrawTokenParams{Token: stray, To: h.owner, Amount: big.NewInt(555)})
		rt.Verify()
	})

	t.Run("ledger shortfall propagates", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		rt.SetCaller(h.owner, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectSend(h.baseAsset, builtin.MethodsToken.Transfer, &token.TransferParams{
			To:     h.owner,
			Amount: big.NewInt(555),
		}, big.Zero(), nil, exitcode.ErrInsufficientFunds)
		rt.ExpectAbort(exitcode.ErrInsufficientFunds, func() {
			rt.Call(h.WithdrawToken, &staking.WithdrawTokenParams{Token: h.baseAsset, To: h.owner, Amount: big.NewInt(555)})
		})
	})
}
