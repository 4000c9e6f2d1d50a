package types

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error codespace shared by every harness component.
const Codespace = "ics20harness"

var (
	// ErrInvalidArgument is returned for malformed input, e.g. a hop with an empty port or channel id.
	ErrInvalidArgument = errorsmod.Register(Codespace, 2, "invalid argument")
	// ErrTimeout is returned when a bounded wait (liveness, handshake, convergence) exceeds its deadline.
	ErrTimeout = errorsmod.Register(Codespace, 3, "timed out")
	// ErrRejectedTransaction is returned when a transaction was executed with a non-success result code.
	ErrRejectedTransaction = errorsmod.Register(Codespace, 4, "transaction rejected")
	// ErrExternalTool is returned when the relayer process could not be invoked or exited abnormally during setup.
	ErrExternalTool = errorsmod.Register(Codespace, 5, "external tool failed")
	// ErrProtocolParse is returned when relayer output does not contain the expected identifiers.
	ErrProtocolParse = errorsmod.Register(Codespace, 6, "unexpected relayer output")
)
