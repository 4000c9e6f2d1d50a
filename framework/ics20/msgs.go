// Package ics20 builds the execute and query messages used to move SNIP20 tokens through
// an ICS20 contract, and the native MsgTransfer used for the return leg.
package ics20

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/celestiaorg/ics20-harness/framework/types"
)

// TransferMsg is the payload the ICS20 contract expects inside a SNIP20 send.
type TransferMsg struct {
	// Channel is the contract's local channel.
	Channel       string `json:"channel"`
	RemoteAddress string `json:"remote_address"`
	// Timeout is the packet lifetime in seconds, relative to the sending block.
	Timeout uint64 `json:"timeout"`
	Memo    string `json:"memo,omitempty"`
}

// Validate checks the fields the contract cannot default.
func (m TransferMsg) Validate() error {
	switch {
	case m.Channel == "":
		return errorsmod.Wrap(types.ErrInvalidArgument, "transfer msg has no channel")
	case m.RemoteAddress == "":
		return errorsmod.Wrap(types.ErrInvalidArgument, "transfer msg has no remote address")
	case m.Timeout == 0:
		return errorsmod.Wrap(types.ErrInvalidArgument, "transfer msg needs a non-zero timeout")
	}
	return nil
}

// Snip20Token identifies a SNIP20 contract.
type Snip20Token struct {
	Address  string `json:"address"`
	CodeHash string `json:"code_hash"`
}

type sendMsg struct {
	Send sendBody `json:"send"`
}

type sendBody struct {
	Recipient         string `json:"recipient"`
	RecipientCodeHash string `json:"recipient_code_hash,omitempty"`
	Amount            string `json:"amount"`
	Msg               string `json:"msg,omitempty"`
	Memo              string `json:"memo,omitempty"`
}

// SendMsg builds the SNIP20 send that hands amount to the ICS20 contract, with transfer
// base64 encoded as the hook message.
func SendMsg(ics20 Snip20Token, amount sdkmath.Int, transfer TransferMsg) ([]byte, error) {
	if err := transfer.Validate(); err != nil {
		return nil, err
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}

	hook, err := json.Marshal(transfer)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transfer msg: %w", err)
	}

	return json.Marshal(sendMsg{Send: sendBody{
		Recipient:         ics20.Address,
		RecipientCodeHash: ics20.CodeHash,
		Amount:            amount.String(),
		Msg:               base64.StdEncoding.EncodeToString(hook),
	}})
}

// DecodeSendHook extracts the TransferMsg from a send message built by SendMsg.
func DecodeSendHook(msg []byte) (TransferMsg, error) {
	var send sendMsg
	if err := json.Unmarshal(msg, &send); err != nil {
		return TransferMsg{}, errorsmod.Wrapf(types.ErrInvalidArgument, "not a send msg: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(send.Send.Msg)
	if err != nil {
		return TransferMsg{}, errorsmod.Wrapf(types.ErrInvalidArgument, "send hook is not base64: %v", err)
	}
	var transfer TransferMsg
	if err := json.Unmarshal(raw, &transfer); err != nil {
		return TransferMsg{}, errorsmod.Wrapf(types.ErrInvalidArgument, "send hook is not a transfer msg: %v", err)
	}
	return transfer, nil
}

// RegisterTokensMsg builds the ICS20 contract message that allows the given SNIP20 tokens.
func RegisterTokensMsg(tokens ...Snip20Token) ([]byte, error) {
	if len(tokens) == 0 {
		return nil, errorsmod.Wrap(types.ErrInvalidArgument, "no tokens to register")
	}
	for _, t := range tokens {
		if t.Address == "" || t.CodeHash == "" {
			return nil, errorsmod.Wrapf(types.ErrInvalidArgument, "token %q needs an address and a code hash", t.Address)
		}
	}

	type registerTokens struct {
		Tokens []Snip20Token `json:"tokens"`
	}
	return json.Marshal(map[string]registerTokens{"register_tokens": {Tokens: tokens}})
}

// TransferToMsg builds a plain SNIP20 transfer.
func TransferToMsg(recipient string, amount sdkmath.Int) ([]byte, error) {
	if recipient == "" {
		return nil, errorsmod.Wrap(types.ErrInvalidArgument, "transfer needs a recipient")
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}

	type transfer struct {
		Recipient string `json:"recipient"`
		Amount    string `json:"amount"`
	}
	return json.Marshal(map[string]transfer{"transfer": {Recipient: recipient, Amount: amount.String()}})
}

// SetViewingKeyMsg builds the SNIP20 message that sets the caller's viewing key.
func SetViewingKeyMsg(key string) ([]byte, error) {
	if key == "" {
		return nil, errorsmod.Wrap(types.ErrInvalidArgument, "empty viewing key")
	}

	type setViewingKey struct {
		Key string `json:"key"`
	}
	return json.Marshal(map[string]setViewingKey{"set_viewing_key": {Key: key}})
}

func validAmount(amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrapf(types.ErrInvalidArgument, "amount must be positive, got %s", amount)
	}
	return nil
}
