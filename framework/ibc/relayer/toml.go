package relayer

import (
	"bytes"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"github.com/BurntSushi/toml"

	"github.com/celestiaorg/ics20-harness/framework/types"
)

// Toml is a decoded TOML table.
type Toml = map[string]any

// ModifyTOML decodes document, merges modifications into it and encodes the result.
func ModifyTOML(document []byte, modifications Toml) ([]byte, error) {
	var doc Toml
	if _, err := toml.Decode(string(document), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode toml: %w", err)
	}

	if err := RecursiveModify(doc, modifications); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode toml: %w", err)
	}
	return buf.Bytes(), nil
}

// RecursiveModify merges modifications into base. Tables are merged key by key; any other
// value, arrays of tables included, replaces the existing one.
func RecursiveModify(base, modifications Toml) error {
	for key, value := range modifications {
		table, isTable := value.(Toml)
		if !isTable {
			base[key] = value
			continue
		}

		existing, ok := base[key]
		if !ok {
			base[key] = table
			continue
		}
		existingTable, ok := existing.(Toml)
		if !ok {
			return errorsmod.Wrapf(types.ErrInvalidArgument, "cannot merge table into %q, it holds %T", key, existing)
		}
		if err := RecursiveModify(existingTable, table); err != nil {
			return errorsmod.Wrapf(err, "%s", key)
		}
	}
	return nil
}
