package gateway

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/elnosh/nutgate/cashu"
	"github.com/elnosh/nutgate/crypto"
)

// createBlindedMessages splits amount into powers of 2 and creates a
// blinded message for each part.
func createBlindedMessages(amount uint64, keysetId string) (cashu.BlindedMessages, []string, []*secp256k1.PrivateKey, error) {
	splitAmounts := cashu.AmountSplit(amount)
	splitLen := len(splitAmounts)

	blindedMessages := make(cashu.BlindedMessages, splitLen)
	secrets := make([]string, splitLen)
	rs := make([]*secp256k1.PrivateKey, splitLen)

	for i, amt := range splitAmounts {
		secret, err := cashu.GenerateRandomSecret()
		if err != nil {
			return nil, nil, nil, err
		}

		r, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, nil, nil, err
		}

		B_, r := crypto.BlindMessage(secret, r)

		blindedMessages[i] = cashu.NewBlindedMessage(keysetId, amt, B_)
		secrets[i] = secret
		rs[i] = r
	}

	cashu.SortBlindedMessages(blindedMessages, secrets, rs)

	return blindedMessages, secrets, rs, nil
}

// constructProofs unblinds the signatures and builds the proofs.
func constructProofs(
	blindedSignatures cashu.BlindedSignatures,
	secrets []string,
	rs []*secp256k1.PrivateKey,
	keyset *crypto.PublicKeyset,
) (cashu.Proofs, error) {
	sigsLen := len(blindedSignatures)
	if sigsLen != len(secrets) || sigsLen != len(rs) {
		return nil, errors.New("unexpected number of signatures")
	}

	proofs := make(cashu.Proofs, sigsLen)
	for i, blindedSignature := range blindedSignatures {
		C_bytes, err := hex.DecodeString(blindedSignature.C_)
		if err != nil {
			return nil, fmt.Errorf("invalid blinded signature: %v", err)
		}
		C_, err := secp256k1.ParsePubKey(C_bytes)
		if err != nil {
			return nil, fmt.Errorf("invalid blinded signature: %v", err)
		}

		K, ok := keyset.Keys[blindedSignature.Amount]
		if !ok {
			return nil, errors.New("mint signed for amount not in keyset")
		}

		C := crypto.UnblindSignature(C_, rs[i], K)

		proofs[i] = cashu.Proof{
			Amount: blindedSignature.Amount,
			Secret: secrets[i],
			C:      hex.EncodeToString(C.SerializeCompressed()),
			Id:     blindedSignature.Id,
		}
	}

	return proofs, nil
}
