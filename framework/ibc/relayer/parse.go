// Package relayer drives the Hermes relayer CLI and extracts identifiers from its output.
//
// Hermes has no stable machine interface for the identifiers it creates, so ParseChannelPair
// and ParseConnectionPair accept three output shapes, tried in order:
//
//  1. --json result lines: {"result":{"a_side":{"channel_id":"channel-0"},"b_side":{...}},"status":"success"}
//  2. the Rust debug rendering printed without --json, compared with all whitespace removed:
//     a_side: ChannelSide { ..., channel_id: Some(ChannelId("channel-0")), ... }, b_side: ...
//  3. the first two identifiers of the right kind anywhere in the output, local side first.
//     Both may be equal, as on two fresh chains that each open channel-0.
//
// The third form is a last resort and can be fooled by log lines that mention other
// channels. Any Hermes upgrade must be checked against the fixtures in parse_test.go.
package relayer

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	errorsmod "cosmossdk.io/errors"
	"github.com/tidwall/gjson"

	"github.com/celestiaorg/ics20-harness/framework/types"
)

// identifierGrammar describes how one kind of identifier appears in Hermes output.
type identifierGrammar struct {
	kind      string
	jsonField string
	sides     [2]*regexp.Regexp
	anywhere  *regexp.Regexp
}

var (
	channelGrammar = identifierGrammar{
		kind:      "channel",
		jsonField: "channel_id",
		sides: [2]*regexp.Regexp{
			regexp.MustCompile(`a_side.+?,channel_id:Some\(ChannelId\("(channel-\d+)"`),
			regexp.MustCompile(`b_side.+?,channel_id:Some\(ChannelId\("(channel-\d+)"`),
		},
		anywhere: regexp.MustCompile(`channel-\d+`),
	}

	connectionGrammar = identifierGrammar{
		kind:      "connection",
		jsonField: "connection_id",
		sides: [2]*regexp.Regexp{
			regexp.MustCompile(`a_side.+?,connection_id:Some\(ConnectionId\("(connection-\d+)"`),
			regexp.MustCompile(`b_side.+?,connection_id:Some\(ConnectionId\("(connection-\d+)"`),
		},
		anywhere: regexp.MustCompile(`connection-\d+`),
	}
)

// ParseChannelPair returns the channel ids created on the a side and the b side.
func ParseChannelPair(output []byte) (string, string, error) {
	return channelGrammar.parse(output)
}

// ParseConnectionPair returns the connection ids created on the a side and the b side.
func ParseConnectionPair(output []byte) (string, string, error) {
	return connectionGrammar.parse(output)
}

func (g identifierGrammar) parse(output []byte) (string, string, error) {
	if a, b, ok := g.fromJSON(output); ok {
		return a, b, nil
	}
	if a, b, ok := g.fromDebug(output); ok {
		return a, b, nil
	}
	if a, b, ok := g.fromAnywhere(output); ok {
		return a, b, nil
	}
	return "", "", errorsmod.Wrapf(types.ErrProtocolParse, "no %s id pair in output: %s", g.kind, truncate(output, 512))
}

// fromJSON scans --json output line by line for a result carrying both sides.
func (g identifierGrammar) fromJSON(output []byte) (string, string, bool) {
	sc := bufio.NewScanner(bytes.NewReader(output))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] != '{' || !gjson.ValidBytes(line) {
			continue
		}
		res := gjson.GetBytes(line, "result")
		a := res.Get("a_side." + g.jsonField).String()
		b := res.Get("b_side." + g.jsonField).String()
		if g.isID(a) && g.isID(b) {
			return a, b, true
		}
	}
	return "", "", false
}

func (g identifierGrammar) isID(s string) bool {
	return s != "" && g.anywhere.FindString(s) == s
}

// fromDebug matches the a side first and looks for the b side only after it, so a log line
// that mentions b_side ahead of the result block cannot shadow it.
func (g identifierGrammar) fromDebug(output []byte) (string, string, bool) {
	compact := stripSpace(output)
	var ids [2]string
	for i, re := range g.sides {
		loc := re.FindStringSubmatchIndex(compact)
		if loc == nil {
			return "", "", false
		}
		ids[i] = compact[loc[2]:loc[3]]
		compact = compact[loc[1]:]
	}
	return ids[0], ids[1], true
}

func (g identifierGrammar) fromAnywhere(output []byte) (string, string, bool) {
	found := g.anywhere.FindAllString(string(output), 2)
	if len(found) < 2 {
		return "", "", false
	}
	return found[0], found[1], true
}

func stripSpace(b []byte) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, string(b))
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:n], len(s))
}
