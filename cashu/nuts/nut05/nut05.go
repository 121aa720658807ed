// Package nut05 contains structs for the melt endpoints as defined in [NUT-05],
// extended with the gateway melt profile: proofs are redeemed against a quote
// and the payment itself is settled by the gateway, so redemption returns a
// receipt and change is issued in a separate call once the outcome is known.
//
// [NUT-05]: https://github.com/cashubtc/nuts/blob/main/05.md
package nut05

import "github.com/elnosh/nutgate/cashu"

const (
	Unpaid  = "UNPAID"
	Pending = "PENDING"
	Paid    = "PAID"
)

type PostMeltQuoteBolt11Request struct {
	Request string `json:"request"`
	Unit    string `json:"unit"`
}

type PostMeltQuoteBolt11Response struct {
	Quote      string `json:"quote"`
	Amount     uint64 `json:"amount"`
	FeeReserve uint64 `json:"fee_reserve"`
	State      string `json:"state"`
	Expiry     int64  `json:"expiry"`
}

type PostMeltBolt11Request struct {
	Quote  string       `json:"quote"`
	Inputs cashu.Proofs `json:"inputs"`
}

// PostMeltBolt11Response acknowledges that the inputs were consumed and
// their value reserved against the quote. Receipt authorizes settlement
// of the quoted payment.
type PostMeltBolt11Response struct {
	Quote   string `json:"quote"`
	State   string `json:"state"`
	Receipt string `json:"receipt"`
}

// PostMeltChangeRequest requests blind signatures on outputs for the
// credit remaining on a melt quote.
type PostMeltChangeRequest struct {
	Quote   string                `json:"quote"`
	Outputs cashu.BlindedMessages `json:"outputs"`
}

type PostMeltChangeResponse struct {
	Signatures cashu.BlindedSignatures `json:"signatures"`
}
