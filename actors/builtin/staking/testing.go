package staking

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"

	abi "github.com/gton-network/staking-actors/actors/abi"
	builtin "github.com/gton-network/staking-actors/actors/builtin"
	adt "github.com/gton-network/staking-actors/actors/util/adt"
)

type StateSummary struct {
	HolderCount    int
	TotalAmount    abi.TokenAmount
	PendingRewards abi.TokenAmount
}

// CheckStateInvariants audits the pool state at the given observation time.
// Checks the holder sum against TotalAmount, per-holder reward algebra, and
// allowance well-formedness.
func CheckStateInvariants(st *State, store adt.Store, now abi.Timestamp) (*StateSummary, *builtin.MessageAccumulator) {
	acc := &builtin.MessageAccumulator{}
	summary := &StateSummary{
		TotalAmount:    st.TotalAmount,
		PendingRewards: big.Zero(),
	}

	acc.Require(st.AccRewardPerShare.GreaterThanEqual(big.Zero()), "accumulated reward per share %v is negative", st.AccRewardPerShare)
	acc.Require(st.LastRewardTimestamp <= now, "last reward timestamp %v is in the future (now %v)", st.LastRewardTimestamp, now)
	acc.Require(st.AprBasisPoints >= 0, "apr %d is negative", st.AprBasisPoints)
	acc.Require(st.HarvestInterval >= 0, "harvest interval %d is negative", st.HarvestInterval)

	perShare := st.LivePerShare(now)

	holderSum := big.Zero()
	var u UserInfo
	holders := adt.AsMap(store, st.Holders)
	err := holders.ForEach(&u, func(key string) error {
		holder, err := addr.NewFromBytes([]byte(key))
		acc.RequireNoError(err, "malformed holder key %x", key)
		if err != nil {
			return nil
		}

		acc.Require(u.Amount.GreaterThanEqual(big.Zero()), "holder %v has negative principal %v", holder, u.Amount)
		acc.Require(u.AccumulatedReward.GreaterThanEqual(big.Zero()), "holder %v has negative accumulated reward %v", holder, u.AccumulatedReward)
		acc.Require(u.LastHarvestTimestamp <= now, "holder %v last harvest %v is in the future (now %v)", holder, u.LastHarvestTimestamp, now)

		// RewardDebt was taken at some past per-share index, so it can never
		// exceed the same product at the current index.
		acc.Require(u.RewardDebt.LessThanEqual(rewardFor(u.Amount, perShare)),
			"holder %v reward debt %v exceeds %v * %v / %v", holder, u.RewardDebt, u.Amount, perShare, CalcDecimals)

		pending := u.PendingReward(perShare)
		acc.Require(pending.GreaterThanEqual(big.Zero()), "holder %v has negative pending reward %v", holder, pending)

		holderSum = big.Add(holderSum, u.Amount)
		summary.PendingRewards = big.Add(summary.PendingRewards, pending)
		summary.HolderCount++
		return nil
	})
	acc.RequireNoError(err, "error iterating holders")

	acc.Require(holderSum.Equals(st.TotalAmount), "sum of holder principal %v does not match total %v", holderSum, st.TotalAmount)

	var allowance abi.TokenAmount
	allowances := adt.AsMap(store, st.Allowances)
	err = allowances.ForEach(&allowance, func(key string) error {
		acc.Require(allowance.GreaterThan(big.Zero()), "allowance entry %x holds non-positive amount %v", key, allowance)
		return nil
	})
	acc.RequireNoError(err, "error iterating allowances")

	return summary, acc
}
