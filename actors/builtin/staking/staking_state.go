package staking

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
	cid "github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	abi "github.com/gton-network/staking-actors/actors/abi"
	adt "github.com/gton-network/staking-actors/actors/util/adt"
)

// The pool folds time and rate into a single monotone scalar,
// AccRewardPerShare, instead of touching every holder when time advances.
// A holder's uncredited reward is amount * AccRewardPerShare / CalcDecimals
// minus RewardDebt, where RewardDebt is that same product taken when the
// holder's record was last settled (a principal change or a harvest).
// Reconciliation happens lazily, whenever a holder's principal is touched or
// they harvest.

// CalcDecimals is the fixed-point scale of AccRewardPerShare.
var CalcDecimals = big.NewInt(1_000_000_000_000)

const (
	// BasisPointsDivisor converts basis points to a fraction.
	BasisPointsDivisor = 10_000

	// SecondsPerYear is a Julian year, 365.25 days.
	SecondsPerYear = 31_557_600

	DefaultAprBasisPoints  = 2500
	DefaultHarvestInterval = 86_400 // seconds
)

type State struct {
	// Owner may mutate pool configuration.
	Owner addr.Address
	// BaseAsset is the external ledger deposits and rewards settle on.
	BaseAsset addr.Address
	// Decimals mirrors the base asset's decimals, fixed at construction.
	Decimals uint64

	// TotalAmount is the sum of principal across all holders.
	TotalAmount abi.TokenAmount
	// AprBasisPoints is the annual rate in hundredths of a percent.
	AprBasisPoints int64
	// HarvestInterval is the per-holder cooldown between harvests, seconds.
	HarvestInterval int64

	// AccRewardPerShare is reward per principal unit, scaled by CalcDecimals.
	// Nondecreasing.
	AccRewardPerShare big.Int
	// LastRewardTimestamp is when AccRewardPerShare was last advanced.
	// Nondecreasing.
	LastRewardTimestamp abi.Timestamp

	Paused bool

	// Holders is a HAMT of address -> UserInfo.
	Holders cid.Cid
	// Allowances is a HAMT of owner|spender -> TokenAmount.
	Allowances cid.Cid
}

type UserInfo struct {
	// Amount is the holder's staked principal.
	Amount abi.TokenAmount
	// RewardDebt is Amount * AccRewardPerShare / CalcDecimals at the
	// holder's last principal change or harvest.
	RewardDebt big.Int
	// AccumulatedReward is reward credited but not yet harvested.
	AccumulatedReward abi.TokenAmount
	// LastHarvestTimestamp is zero until the holder's first harvest.
	LastHarvestTimestamp abi.Timestamp
}

func ConstructState(store adt.Store, owner addr.Address, baseAsset addr.Address, decimals uint64, now abi.Timestamp) (*State, error) {
	emptyHolders, err := adt.MakeEmptyMap(store)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty holders map: %w", err)
	}
	emptyAllowances, err := adt.MakeEmptyMap(store)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty allowances map: %w", err)
	}

	return &State{
		Owner:               owner,
		BaseAsset:           baseAsset,
		Decimals:            decimals,
		TotalAmount:         big.Zero(),
		AprBasisPoints:      DefaultAprBasisPoints,
		HarvestInterval:     DefaultHarvestInterval,
		AccRewardPerShare:   big.Zero(),
		LastRewardTimestamp: now,
		Paused:              false,
		Holders:             emptyHolders.Root(),
		Allowances:          emptyAllowances.Root(),
	}, nil
}

// perShareDelta is the AccRewardPerShare increment accrued over dt seconds
// at the given rate. Multiplications precede divisions so integer
// truncation happens once, at the end.
func perShareDelta(dt int64, aprBasisPoints int64) big.Int {
	minted := big.Mul(CalcDecimals, big.NewInt(dt))
	minted = big.Mul(minted, big.NewInt(aprBasisPoints))
	minted = big.Div(minted, big.NewInt(BasisPointsDivisor))
	return big.Div(minted, big.NewInt(SecondsPerYear))
}

// UpdatePool advances AccRewardPerShare to now and stamps
// LastRewardTimestamp. The only writer of either field outside the
// constructor. Idempotent within a single timestamp.
func (st *State) UpdatePool(now abi.Timestamp) {
	if now <= st.LastRewardTimestamp {
		return
	}
	if st.TotalAmount.GreaterThan(big.Zero()) {
		dt := int64(now - st.LastRewardTimestamp)
		st.AccRewardPerShare = big.Add(st.AccRewardPerShare, perShareDelta(dt, st.AprBasisPoints))
	}
	st.LastRewardTimestamp = now
}

// LivePerShare is AccRewardPerShare advanced to now without committing, for
// read paths that must observe continuous accrual.
func (st *State) LivePerShare(now abi.Timestamp) big.Int {
	if now <= st.LastRewardTimestamp || st.TotalAmount.Sign() == 0 {
		return st.AccRewardPerShare
	}
	return big.Add(st.AccRewardPerShare, perShareDelta(int64(now-st.LastRewardTimestamp), st.AprBasisPoints))
}

// rewardFor is amount * perShare / CalcDecimals, floor division.
func rewardFor(amount abi.TokenAmount, perShare big.Int) big.Int {
	return big.Div(big.Mul(amount, perShare), CalcDecimals)
}

// PendingReward is the holder's total unharvested reward at the given per-share
// index: the uncredited portion since RewardDebt was last re-based plus the
// already-credited remainder.
func (u *UserInfo) PendingReward(perShare big.Int) abi.TokenAmount {
	return big.Add(big.Sub(rewardFor(u.Amount, perShare), u.RewardDebt), u.AccumulatedReward)
}

// credit folds the reward accrued since RewardDebt was last re-based into
// AccumulatedReward. Callers must reindex once the principal settles.
func (u *UserInfo) credit(perShare big.Int) {
	if u.Amount.GreaterThan(big.Zero()) {
		u.AccumulatedReward = big.Add(u.AccumulatedReward, big.Sub(rewardFor(u.Amount, perShare), u.RewardDebt))
	}
}

// reindex re-bases RewardDebt against the holder's current principal.
func (u *UserInfo) reindex(perShare big.Int) {
	u.RewardDebt = rewardFor(u.Amount, perShare)
}

// GetUserInfo returns the holder's record, or a fresh zero record when the
// holder has never been materialized.
func (st *State) GetUserInfo(store adt.Store, holder addr.Address) (*UserInfo, error) {
	holders := adt.AsMap(store, st.Holders)
	var u UserInfo
	found, err := holders.Get(adt.AddrKey(holder), &u)
	if err != nil {
		return nil, xerrors.Errorf("failed to load holder %v: %w", holder, err)
	}
	if !found {
		return &UserInfo{
			Amount:            big.Zero(),
			RewardDebt:        big.Zero(),
			AccumulatedReward: big.Zero(),
		}, nil
	}
	return &u, nil
}

func (st *State) putUserInfo(store adt.Store, holder addr.Address, u *UserInfo) error {
	holders := adt.AsMap(store, st.Holders)
	if err := holders.Put(adt.AddrKey(holder), u); err != nil {
		return xerrors.Errorf("failed to store holder %v: %w", holder, err)
	}
	st.Holders = holders.Root()
	return nil
}

// BalanceOf reports the holder's share-token balance: principal plus
// pending reward at the live per-share index. A pure read.
func (st *State) BalanceOf(store adt.Store, holder addr.Address, now abi.Timestamp) (abi.TokenAmount, error) {
	u, err := st.GetUserInfo(store, holder)
	if err != nil {
		return big.Zero(), err
	}
	return big.Add(u.Amount, u.PendingReward(st.LivePerShare(now))), nil
}

// TotalSupply is total principal plus every holder's pending reward at the
// live per-share index.
func (st *State) TotalSupply(store adt.Store, now abi.Timestamp) (abi.TokenAmount, error) {
	perShare := st.LivePerShare(now)
	total := st.TotalAmount

	var u UserInfo
	holders := adt.AsMap(store, st.Holders)
	err := holders.ForEach(&u, func(key string) error {
		total = big.Add(total, u.PendingReward(perShare))
		return nil
	})
	if err != nil {
		return big.Zero(), xerrors.Errorf("failed to total holders: %w", err)
	}
	return total, nil
}

// Allowance is the amount spender may move out of owner's principal.
func (st *State) Allowance(store adt.Store, owner addr.Address, spender addr.Address) (abi.TokenAmount, error) {
	allowances := adt.AsBalanceTable(store, st.Allowances)
	return allowances.Get(adt.AddrPairKey{First: owner, Second: spender})
}

// setAllowance overwrites owner's approval for spender.
func (st *State) setAllowance(store adt.Store, owner addr.Address, spender addr.Address, amount abi.TokenAmount) error {
	allowances := adt.AsBalanceTable(store, st.Allowances)
	if err := allowances.Set(adt.AddrPairKey{First: owner, Second: spender}, amount); err != nil {
		return xerrors.Errorf("failed to set allowance %v/%v: %w", owner, spender, err)
	}
	st.Allowances = allowances.Root()
	return nil
}

// spendAllowance burns part of owner's approval for spender. The caller has
// already established the approval is sufficient.
func (st *State) spendAllowance(store adt.Store, owner addr.Address, spender addr.Address, amount abi.TokenAmount) error {
	allowances := adt.AsBalanceTable(store, st.Allowances)
	if err := allowances.MustSubtract(adt.AddrPairKey{First: owner, Second: spender}, amount); err != nil {
		return xerrors.Errorf("failed to spend allowance %v/%v: %w", owner, spender, err)
	}
	st.Allowances = allowances.Root()
	return nil
}
