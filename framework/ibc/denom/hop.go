package denom

import (
	"fmt"
	"regexp"
	"strings"

	errorsmod "cosmossdk.io/errors"

	"github.com/celestiaorg/ics20-harness/framework/types"
)

var channelIDRE = regexp.MustCompile(`^channel-\d+$`)

// ChannelHop is one channel a token crossed, identified by the port and channel on the
// receiving side of that hop.
type ChannelHop struct {
	IncomingChannelID string
	IncomingPortID    string
}

// NewHop returns a hop received on the given port and channel.
func NewHop(portID, channelID string) ChannelHop {
	return ChannelHop{IncomingPortID: portID, IncomingChannelID: channelID}
}

// Validate checks that both identifiers are set and contain no path separator.
func (h ChannelHop) Validate() error {
	if strings.TrimSpace(h.IncomingPortID) == "" {
		return errorsmod.Wrap(types.ErrInvalidArgument, "hop port id cannot be blank")
	}
	if strings.TrimSpace(h.IncomingChannelID) == "" {
		return errorsmod.Wrap(types.ErrInvalidArgument, "hop channel id cannot be blank")
	}
	if strings.Contains(h.IncomingPortID, "/") || strings.Contains(h.IncomingChannelID, "/") {
		return errorsmod.Wrapf(types.ErrInvalidArgument, "hop %q contains a path separator", h.String())
	}
	return nil
}

// String returns the "port/channel" path segment of the hop.
func (h ChannelHop) String() string {
	return fmt.Sprintf("%s/%s", h.IncomingPortID, h.IncomingChannelID)
}
