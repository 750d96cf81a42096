package events

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const npubPrefix = "npub"

// EncodeNpub renders a 32-byte hex pubkey in its bech32 display form.
func EncodeNpub(hexPubkey string) (string, error) {
	raw, err := hex.DecodeString(hexPubkey)
	if err != nil {
		return "", err
	}
	if len(raw) != 32 {
		return "", errors.New("pubkey must be 32 bytes")
	}
	converted, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(npubPrefix, converted)
}

// DecodeNpub accepts either an npub string or raw hex and returns lowercase
// hex, the internal representation everywhere in this module.
func DecodeNpub(s string) (string, error) {
	if !strings.HasPrefix(s, npubPrefix+"1") {
		raw, err := hex.DecodeString(s)
		if err != nil || len(raw) != 32 {
			return "", errors.New("not an npub or 32-byte hex pubkey")
		}
		return strings.ToLower(s), nil
	}
	prefix, data, err := bech32.Decode(s)
	if err != nil {
		return "", err
	}
	if prefix != npubPrefix {
		return "", errors.New("unexpected bech32 prefix " + prefix)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", err
	}
	if len(raw) != 32 {
		return "", errors.New("npub payload must be 32 bytes")
	}
	return hex.EncodeToString(raw), nil
}
