package builtin

import (
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// The built-in actor code IDs
var SystemActorCodeID cid.Cid
var AccountActorCodeID cid.Cid
var MultisigActorCodeID cid.Cid
var StakingActorCodeID cid.Cid
var TokenActorCodeID cid.Cid
var CallerTypesSignable []cid.Cid

func init() {
	builder := cid.V1Builder{Codec: cid.Raw, MhType: mh.IDENTITY}
	makeBuiltin := func(s string) cid.Cid {
		c, err := builder.Sum([]byte(s))
		if err != nil {
			panic(err)
		}
		return c
	}

	SystemActorCodeID = makeBuiltin("gton/1/system")
	AccountActorCodeID = makeBuiltin("gton/1/account")
	MultisigActorCodeID = makeBuiltin("gton/1/multisig")
	StakingActorCodeID = makeBuiltin("gton/1/staking")
	TokenActorCodeID = makeBuiltin("gton/1/token")

	// Set of actor code types that can represent external signing parties.
	CallerTypesSignable = []cid.Cid{AccountActorCodeID, MultisigActorCodeID}
}

// IsPrincipal returns whether the code belongs to a type that can represent
// an external signing party.
func IsPrincipal(code cid.Cid) bool {
	for _, c := range CallerTypesSignable {
		if c.Equals(code) {
			return true
		}
	}
	return false
}
