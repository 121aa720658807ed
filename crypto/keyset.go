package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const maxOrder = 64

// PublicKeyset holds a mint keyset's public keys by amount.
type PublicKeyset struct {
	Id      string
	MintURL string
	Unit    string
	Keys    map[uint64]*secp256k1.PublicKey
}

// ParsePublicKeyset parses the hex encoded keys of a keyset as returned
// by a mint on the /v1/keys endpoint.
func ParsePublicKeyset(mintURL, id, unit string, keys map[uint64]string) (*PublicKeyset, error) {
	parsedKeys := make(map[uint64]*secp256k1.PublicKey, len(keys))
	for amount, key := range keys {
		pkbytes, err := hex.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("invalid public key in keyset: %v", err)
		}
		pubkey, err := secp256k1.ParsePubKey(pkbytes)
		if err != nil {
			return nil, fmt.Errorf("invalid public key in keyset: %v", err)
		}
		parsedKeys[amount] = pubkey
	}

	return &PublicKeyset{Id: id, MintURL: mintURL, Unit: unit, Keys: parsedKeys}, nil
}

// Keyset with private keys. Used by the fake mint in tests to sign
// blinded messages.
type Keyset struct {
	Id       string
	Unit     string
	Active   bool
	KeyPairs []KeyPair
}

type KeyPair struct {
	Amount     uint64
	PrivateKey *secp256k1.PrivateKey
	PublicKey  *secp256k1.PublicKey
}

func GenerateKeyset(seed, derivationPath string) *Keyset {
	keyPairs := make([]KeyPair, maxOrder)

	for i := 0; i < maxOrder; i++ {
		amount := uint64(1) << i
		hash := sha256.Sum256([]byte(seed + derivationPath + strconv.FormatUint(amount, 10)))
		privKey, pubKey := btcec.PrivKeyFromBytes(hash[:])
		keyPairs[i] = KeyPair{Amount: amount, PrivateKey: privKey, PublicKey: pubKey}
	}
	keysetId := DeriveKeysetId(keyPairs)
	return &Keyset{Id: keysetId, Unit: "sat", Active: true, KeyPairs: keyPairs}
}

func DeriveKeysetId(keys []KeyPair) string {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Amount < keys[j].Amount
	})

	pubkeys := make([]byte, 0)
	for _, key := range keys {
		pubkeys = append(pubkeys, key.PublicKey.SerializeCompressed()...)
	}
	hash := sha256.New()
	hash.Write(pubkeys)

	return "00" + hex.EncodeToString(hash.Sum(nil))[:14]
}

func (ks *Keyset) DerivePublic() map[uint64]string {
	pubKeys := make(map[uint64]string)
	for _, key := range ks.KeyPairs {
		pubKeys[key.Amount] = hex.EncodeToString(key.PublicKey.SerializeCompressed())
	}

	return pubKeys
}

// PrivateKey returns the private key for the given amount, if any.
func (ks *Keyset) PrivateKey(amount uint64) (*secp256k1.PrivateKey, bool) {
	for _, key := range ks.KeyPairs {
		if key.Amount == amount {
			return key.PrivateKey, true
		}
	}
	return nil, false
}
