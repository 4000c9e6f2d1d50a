// Package denom derives the denominations ICS20 assigns to tokens received over IBC.
//
// A token that crossed one or more channels is known on the receiving chain as
//
//	ibc/HEX_UPPER(sha256("port/channel/.../baseDenom"))
//
// where the hops are listed from the one nearest the receiving chain to the one
// nearest the origin. A token with no hops keeps its base denomination.
package denom

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	errorsmod "cosmossdk.io/errors"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"

	"github.com/celestiaorg/ics20-harness/framework/types"
)

const (
	// IBCPrefix prefixes every hashed ICS20 denomination.
	IBCPrefix = "ibc"
	// CW20Prefix prefixes base denominations of contract-issued tokens sent through the ICS20 contract.
	CW20Prefix = "cw20:"
)

// Trace is the path a token took, most recent hop first, and its denomination on the origin chain.
type Trace struct {
	Hops      []ChannelHop
	BaseDenom string
}

// NewTrace returns a Trace for baseDenom received over the given hops.
func NewTrace(baseDenom string, hops ...ChannelHop) Trace {
	return Trace{Hops: hops, BaseDenom: baseDenom}
}

// Validate checks the base denomination and every hop.
func (t Trace) Validate() error {
	if strings.TrimSpace(t.BaseDenom) == "" {
		return errorsmod.Wrap(types.ErrInvalidArgument, "base denomination cannot be blank")
	}
	for i, hop := range t.Hops {
		if err := hop.Validate(); err != nil {
			return errorsmod.Wrapf(err, "hop %d", i)
		}
	}
	return nil
}

// IsNative reports whether the token never crossed a channel.
func (t Trace) IsNative() bool {
	return len(t.Hops) == 0
}

// Path returns "port/channel/.../baseDenom", or the base denomination for native tokens.
func (t Trace) Path() string {
	if t.IsNative() {
		return t.BaseDenom
	}

	var sb strings.Builder
	for _, h := range t.Hops {
		sb.WriteString(h.String())
		sb.WriteByte('/')
	}
	sb.WriteString(t.BaseDenom)
	return sb.String()
}

// Hash returns the SHA256 digest of the full path. It renders as uppercase hex.
func (t Trace) Hash() cmtbytes.HexBytes {
	hash := sha256.Sum256([]byte(t.Path()))
	return hash[:]
}

// IBCDenom returns "ibc/<HASH>" for traced tokens and the base denomination for native ones.
func (t Trace) IBCDenom() string {
	if t.IsNative() {
		return t.BaseDenom
	}
	return fmt.Sprintf("%s/%s", IBCPrefix, t.Hash())
}

// ReceivedOver returns the trace of this token after it crossed one more channel. The
// receiver is not modified.
func (t Trace) ReceivedOver(hop ChannelHop) Trace {
	hops := make([]ChannelHop, 0, len(t.Hops)+1)
	hops = append(hops, hop)
	hops = append(hops, t.Hops...)
	return Trace{Hops: hops, BaseDenom: t.BaseDenom}
}

// DeriveIBCDenom returns the denomination a chain assigns to baseDenom received over hops,
// ordered from the hop nearest the receiving chain to the hop nearest the origin chain.
func DeriveIBCDenom(hops []ChannelHop, baseDenom string) (string, error) {
	t := NewTrace(baseDenom, hops...)
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t.IBCDenom(), nil
}

// ParseTrace parses a full denomination path such as "transfer/channel-1/transfer/channel-0/uatom".
// Leading "port/channel-N" pairs become hops; the remainder, which may itself contain '/'
// or ':', is the base denomination.
func ParseTrace(fullPath string) (Trace, error) {
	if strings.TrimSpace(fullPath) == "" {
		return Trace{}, errorsmod.Wrap(types.ErrInvalidArgument, "denomination path cannot be blank")
	}

	segments := strings.Split(fullPath, "/")
	var hops []ChannelHop
	i := 0
	for ; i+2 < len(segments); i += 2 {
		if segments[i] == "" || !channelIDRE.MatchString(segments[i+1]) {
			break
		}
		hops = append(hops, NewHop(segments[i], segments[i+1]))
	}

	base := strings.Join(segments[i:], "/")
	t := NewTrace(base, hops...)
	if err := t.Validate(); err != nil {
		return Trace{}, err
	}
	return t, nil
}

// IsIBCDenom reports whether denom has the form "ibc/<64 uppercase hex characters>".
func IsIBCDenom(denom string) bool {
	hash, ok := strings.CutPrefix(denom, IBCPrefix+"/")
	if !ok || len(hash) != sha256.Size*2 || strings.ToUpper(hash) != hash {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

// CW20Denom returns the base denomination the ICS20 contract uses for a contract-issued token.
func CW20Denom(contractAddress string) string {
	return CW20Prefix + contractAddress
}

// ParseCW20Denom extracts the contract address from a "cw20:<address>" denomination.
func ParseCW20Denom(denom string) (string, error) {
	addr, ok := strings.CutPrefix(denom, CW20Prefix)
	if !ok || addr == "" {
		return "", errorsmod.Wrapf(types.ErrInvalidArgument, "%q is not a cw20 denomination", denom)
	}
	return addr, nil
}
