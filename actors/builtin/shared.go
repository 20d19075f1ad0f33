package builtin

import (
	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/gton-network/staking-actors/actors/runtime"
)

///// Code shared by multiple built-in actors. /////

// RequireSuccess propagates a failed send by aborting the current method
// with the same exit code.
func RequireSuccess(rt runtime.Runtime, e exitcode.ExitCode, msg string, args ...interface{}) {
	if !e.IsSuccess() {
		rt.Abortf(e, msg, args...)
	}
}

// RequireParam aborts with ErrIllegalArgument when the predicate is false.
func RequireParam(rt runtime.Runtime, predicate bool, msg string, args ...interface{}) {
	if !predicate {
		rt.Abortf(exitcode.ErrIllegalArgument, msg, args...)
	}
}

// RequireNoErr aborts with the given code when err is non-nil, annotating it
// with the supplied message.
func RequireNoErr(rt runtime.Runtime, err error, code exitcode.ExitCode, msg string, args ...interface{}) {
	if err != nil {
		rt.Abortf(code, msg+": %v", append(args, err)...)
	}
}
