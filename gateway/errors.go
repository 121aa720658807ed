package gateway

import "net/http"

type ErrCode int

// Error codes returned by the gateway
const (
	InternalErrCode              ErrCode = 40000
	InvalidPaymentRequestErrCode ErrCode = 40001
	InvalidTokenErrCode          ErrCode = 40002
	UnknownMintErrCode           ErrCode = 40003
	InsufficientAmountErrCode    ErrCode = 40004
	QuoteUnavailableErrCode      ErrCode = 40005
	NoViableMintErrCode          ErrCode = 40006
	RedemptionRejectedErrCode    ErrCode = 40007
	SettlementFailedErrCode      ErrCode = 40008
	SettlementUnknownErrCode     ErrCode = 40009
)

// Error is returned on the payment endpoint when a request cannot be
// completed. Change carries refunded ecash when a settlement failed
// after proofs were already consumed.
type Error struct {
	Code    ErrCode  `json:"code"`
	Message string   `json:"message"`
	Details string   `json:"details,omitempty"`
	Change  []string `json:"change,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Details) > 0 {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// HTTPStatus maps the error to a response status code. Client side
// token and invoice problems map to 4xx, upstream mint and settlement
// failures to 502/504 and internal invariant violations to 500.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case InvalidPaymentRequestErrCode, InvalidTokenErrCode, UnknownMintErrCode, RedemptionRejectedErrCode:
		return http.StatusBadRequest
	case InsufficientAmountErrCode, NoViableMintErrCode:
		return http.StatusPaymentRequired
	case QuoteUnavailableErrCode, SettlementFailedErrCode:
		return http.StatusBadGateway
	case SettlementUnknownErrCode:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func buildError(code ErrCode, message, details string) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

var (
	InternalErr          = &Error{Code: InternalErrCode, Message: "unable to process payment request"}
	MissingAmountErr     = &Error{Code: InvalidPaymentRequestErrCode, Message: "missing amount", Details: "invoice has no amount. Please provide an amount in the request"}
	NoTokensProvidedErr  = &Error{Code: InvalidPaymentRequestErrCode, Message: "no tokens provided"}
	NoViableMintErr      = &Error{Code: NoViableMintErrCode, Message: "no viable mint", Details: "no single mint can cover the requested payment"}
	SettlementUnknownErr = &Error{Code: SettlementUnknownErrCode, Message: "settlement outcome unknown", Details: "the payment attempt did not confirm. The outcome will be resolved out of band; no refund was issued"}
	ProofsAlreadyUsedErr = &Error{Code: RedemptionRejectedErrCode, Message: "redemption rejected", Details: "proofs were already submitted in a previous attempt"}
)
