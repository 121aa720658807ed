package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/elnosh/nutgate/cashu"
)

// tokenGroup holds all the proofs presented for a single mint.
type tokenGroup struct {
	mint   string
	proofs cashu.Proofs
}

func (tg *tokenGroup) amount() uint64 {
	return tg.proofs.Amount()
}

// groupTokens decodes the serialized tokens and groups their proofs by
// mint. Groups preserve the order in which each mint first appears in
// the token list. Invalid tokens and tokens from mints the gateway is
// not configured for are excluded without aborting the rest, but a
// duplicate proof across tokens rejects the whole request. An error is
// returned only when no usable group remains.
func groupTokens(tokens []string, registry *Registry) ([]tokenGroup, *Error) {
	if len(tokens) == 0 {
		return nil, NoTokensProvidedErr
	}

	var rejection *Error
	reject := func(err *Error) {
		if rejection == nil {
			rejection = err
		}
	}

	groups := make([]tokenGroup, 0, len(tokens))
	groupIdx := make(map[string]int)
	allProofs := make(cashu.Proofs, 0)

	for i, tokenStr := range tokens {
		token, err := cashu.DecodeToken(tokenStr)
		if err != nil {
			reject(buildError(InvalidTokenErrCode, "invalid token",
				fmt.Sprintf("token at index %d could not be decoded: %v", i, err)))
			continue
		}

		mint := token.Mint()
		if len(mint) == 0 {
			reject(buildError(InvalidTokenErrCode, "invalid token",
				fmt.Sprintf("token at index %d does not specify a mint", i)))
			continue
		}
		if !registry.Contains(mint) {
			reject(buildError(UnknownMintErrCode, "unknown mint",
				fmt.Sprintf("mint '%v' is not supported by this gateway", mint)))
			continue
		}

		proofs := token.Proofs()
		if proofs.Amount() == 0 {
			// nothing to redeem from this token
			continue
		}
		allProofs = append(allProofs, proofs...)

		idx, ok := groupIdx[mint]
		if !ok {
			groups = append(groups, tokenGroup{mint: mint})
			idx = len(groups) - 1
			groupIdx[mint] = idx
		}
		groups[idx].proofs = append(groups[idx].proofs, proofs...)
	}

	if cashu.CheckDuplicateProofs(allProofs) {
		return nil, buildError(InvalidTokenErrCode, "invalid token", "duplicate proofs in token list")
	}

	if len(groups) == 0 {
		if rejection != nil {
			return nil, rejection
		}
		return nil, NoTokensProvidedErr
	}

	return groups, nil
}

// proofsFingerprint derives a stable identifier for a proof set from
// its secrets. The same proofs produce the same fingerprint regardless
// of order.
func proofsFingerprint(proofs cashu.Proofs) string {
	secrets := make([]string, len(proofs))
	for i, proof := range proofs {
		secrets[i] = proof.Secret
	}
	sort.Strings(secrets)

	hash := sha256.New()
	for _, secret := range secrets {
		hash.Write([]byte(secret))
	}
	return hex.EncodeToString(hash.Sum(nil))
}
