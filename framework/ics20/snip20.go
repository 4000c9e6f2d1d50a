package ics20

import (
	"context"
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/tidwall/gjson"

	"github.com/celestiaorg/ics20-harness/framework/ibc/denom"
	"github.com/celestiaorg/ics20-harness/framework/types"
)

// ContractQuerier runs a smart query against a contract and returns the raw JSON answer.
// Chains with encrypted contract state decrypt the answer before returning it.
type ContractQuerier interface {
	QueryContract(ctx context.Context, contract, codeHash string, query []byte) ([]byte, error)
}

// BalanceQuery builds the SNIP20 viewing-key balance query.
func BalanceQuery(address, viewingKey string) ([]byte, error) {
	type balance struct {
		Address string `json:"address"`
		Key     string `json:"key"`
	}
	return json.Marshal(map[string]balance{"balance": {Address: address, Key: viewingKey}})
}

// ParseBalanceResponse reads the amount from {"balance":{"amount":"999"}}. Query errors
// reported by the contract, e.g. a wrong viewing key, are returned as errors.
func ParseBalanceResponse(res []byte) (sdkmath.Int, error) {
	if !gjson.ValidBytes(res) {
		return sdkmath.Int{}, fmt.Errorf("invalid balance response: %s", res)
	}
	if viewingKeyErr := gjson.GetBytes(res, "viewing_key_error.msg"); viewingKeyErr.Exists() {
		return sdkmath.Int{}, fmt.Errorf("balance query rejected: %s", viewingKeyErr.String())
	}

	amount := gjson.GetBytes(res, "balance.amount")
	if !amount.Exists() {
		return sdkmath.Int{}, fmt.Errorf("balance response has no amount: %s", res)
	}
	v, ok := sdkmath.NewIntFromString(amount.String())
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid balance amount %q", amount.String())
	}
	return v, nil
}

// Snip20BalanceQuerier reports a SNIP20 balance through the viewing key set for the owner.
// The returned coins use the cw20:<contract> denom the ICS20 contract sends under, and a
// zero balance is reported as absent like a bank balance.
func Snip20BalanceQuerier(q ContractQuerier, token Snip20Token, viewingKey string) types.BalanceQuerier {
	tokenDenom := denom.CW20Denom(token.Address)

	return types.BalanceQuerierFunc(func(ctx context.Context, address, requested string) (sdk.Coin, bool, error) {
		if addr, err := denom.ParseCW20Denom(requested); err != nil || addr != token.Address {
			return sdk.Coin{}, false, errorsmod.Wrapf(types.ErrInvalidArgument, "querier serves %s, not %s", tokenDenom, requested)
		}

		query, err := BalanceQuery(address, viewingKey)
		if err != nil {
			return sdk.Coin{}, false, err
		}
		res, err := q.QueryContract(ctx, token.Address, token.CodeHash, query)
		if err != nil {
			return sdk.Coin{}, false, fmt.Errorf("failed to query %s balance of %s: %w", token.Address, address, err)
		}

		amount, err := ParseBalanceResponse(res)
		if err != nil {
			return sdk.Coin{}, false, err
		}
		if amount.IsZero() {
			return sdk.Coin{}, false, nil
		}
		return sdk.Coin{Denom: tokenDenom, Amount: amount}, true, nil
	})
}
