package adt

import (
	"github.com/filecoin-project/go-state-types/big"
	cid "github.com/ipfs/go-cid"

	abi "github.com/gton-network/staking-actors/actors/abi"
)

// BalanceTable is a specialization of a map of keys to token amounts.
// Absent keys are interpreted as a zero balance.
type BalanceTable Map

// AsBalanceTable interprets a store as a balance table with root `r`.
func AsBalanceTable(s Store, r cid.Cid) *BalanceTable {
	return &BalanceTable{
		root:  r,
		store: s,
	}
}

// Root returns the root cid of the underlying HAMT.
func (t *BalanceTable) Root() cid.Cid {
	return t.root
}

// Get returns the balance at a key, zero when the key is absent.
func (t *BalanceTable) Get(key Keyer) (abi.TokenAmount, error) {
	var value abi.TokenAmount
	found, err := (*Map)(t).Get(key, &value)
	if err != nil {
		return big.Zero(), err // The errors from Map carry good information, no need to wrap here.
	}
	if !found {
		return big.Zero(), nil
	}
	return value, nil
}

// Set sets the balance at a key, overwriting any previous balance.
// A zero balance removes the entry from the table.
func (t *BalanceTable) Set(key Keyer, value abi.TokenAmount) error {
	if value.Sign() == 0 {
		var prior abi.TokenAmount
		found, err := (*Map)(t).Get(key, &prior)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		return (*Map)(t).Delete(key)
	}
	return (*Map)(t).Put(key, &value)
}

// Add adds an amount to the balance at a key.
func (t *BalanceTable) Add(key Keyer, value abi.TokenAmount) error {
	prev, err := t.Get(key)
	if err != nil {
		return err
	}
	return t.Set(key, big.Add(prev, value))
}

// MustSubtract subtracts an amount from the balance at a key, failing when
// the balance would go negative.
func (t *BalanceTable) MustSubtract(key Keyer, req abi.TokenAmount) error {
	prev, err := t.Get(key)
	if err != nil {
		return err
	}
	if req.GreaterThan(prev) {
		return ErrBalanceUnderflow{}
	}
	return t.Set(key, big.Sub(prev, req))
}

// Total returns the sum of all balances in the table.
func (t *BalanceTable) Total() (abi.TokenAmount, error) {
	total := big.Zero()
	var value abi.TokenAmount
	err := (*Map)(t).ForEach(&value, func(key string) error {
		total = big.Add(total, value)
		return nil
	})
	return total, err
}

// ErrBalanceUnderflow is returned when a subtraction would drive a balance
// negative.
type ErrBalanceUnderflow struct{}

func (e ErrBalanceUnderflow) Error() string {
	return "balance underflow"
}
