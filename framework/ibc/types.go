package ibc

import "strings"

// State is the handshake state of a connection or channel end as reported by a chain.
type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateInit          State = "INIT"
	StateTryOpen       State = "TRYOPEN"
	StateOpen          State = "OPEN"
	StateClosed        State = "CLOSED"
	// StateNotFound is reported when the chain has no record of the object yet.
	StateNotFound State = "NOT_FOUND"
)

// ParseState normalises the state names used by ibc-go ("STATE_OPEN") and by Hermes ("Open").
func ParseState(s string) State {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "STATE_")
	switch State(s) {
	case StateUninitialized, StateInit, StateTryOpen, StateOpen, StateClosed, StateNotFound:
		return State(s)
	case "UNINITIALIZED_UNSPECIFIED":
		return StateUninitialized
	}
	return State(s)
}

// IsOpen reports whether the handshake has completed.
func (s State) IsOpen() bool {
	return s == StateOpen
}

// Channel represents an IBC channel between two chains.
type Channel struct {
	ChannelID        string
	CounterpartyID   string
	PortID           string
	CounterpartyPort string
	State            State
	Order            ChannelOrder
	Version          string
}

// Connection represents an IBC connection between two chains.
type Connection struct {
	ConnectionID         string
	CounterpartyID       string
	ClientID             string
	CounterpartyClientID string
	State                State
}

// CreateChannelOptions defines options for creating an IBC channel.
type CreateChannelOptions struct {
	SourcePortName string
	DestPortName   string
	Order          ChannelOrder
	Version        string
}

// ChannelOrder represents the ordering of an IBC channel.
type ChannelOrder string

const (
	OrderOrdered   ChannelOrder = "ordered"
	OrderUnordered ChannelOrder = "unordered"
)

const (
	// TransferPort is the port bound by the native ICS20 transfer module.
	TransferPort = "transfer"
	// ICS20Version is the channel version negotiated by ICS20 applications.
	ICS20Version = "ics20-1"
)

// DefaultTransferChannelOptions returns unordered ics20-1 options between the given ports.
func DefaultTransferChannelOptions(sourcePort, destPort string) CreateChannelOptions {
	return CreateChannelOptions{
		SourcePortName: sourcePort,
		DestPortName:   destPort,
		Order:          OrderUnordered,
		Version:        ICS20Version,
	}
}

// ContractPortID returns the IBC port bound by a wasm contract, "wasm.<address>".
func ContractPortID(contractAddress string) string {
	return "wasm." + contractAddress
}
