package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/elnosh/nutgate/cashu"
	"github.com/elnosh/nutgate/cashu/nuts/nut05"
	"github.com/elnosh/nutgate/gateway/storage"
	"github.com/elnosh/nutgate/lightning"
	decodepay "github.com/nbd-wtf/ln-decodepay"
)

type Gateway struct {
	registry *Registry
	client   MintClient
	node     lightning.Client
	db       *storage.BoltDB
	logger   *slog.Logger

	settleTimeout time.Duration
}

func Setup(config Config, node lightning.Client, logger *slog.Logger) (*Gateway, error) {
	client := NewMintClient()

	registry, err := NewRegistry(config.MintURLs, client)
	if err != nil {
		return nil, err
	}

	db, err := storage.InitBolt(config.DBPath)
	if err != nil {
		return nil, err
	}

	unresolved := db.GetAttemptsByState(storage.Unknown)
	unresolved = append(unresolved, db.GetAttemptsByState(storage.FailedUnrefunded)...)
	for _, attempt := range unresolved {
		logger.Warn("payment attempt needs out of band resolution",
			slog.String("quote", attempt.QuoteId), slog.String("mint", attempt.MintURL),
			slog.String("state", attempt.State))
	}

	return &Gateway{
		registry:      registry,
		client:        client,
		node:          node,
		db:            db,
		logger:        logger,
		settleTimeout: config.SettleTimeout,
	}, nil
}

func (g *Gateway) Shutdown() error {
	return g.db.Close()
}

// ListMints returns the mint urls this gateway accepts ecash from.
func (g *Gateway) ListMints() []string {
	return g.registry.ListMints()
}

type PaymentRequest struct {
	Method  string   `json:"method"`
	Request string   `json:"request"`
	Amount  *uint64  `json:"amount,omitempty"`
	Tokens  []string `json:"tokens"`
}

type PaymentResult struct {
	// payment preimage proving settlement
	PaymentProof string `json:"payment_proof"`
	// ecash for the value not consumed by the payment
	Change []string `json:"change"`
}

// Pay redeems the ecash in the request against one of the configured
// mints and settles the bolt11 payment request over Lightning. Tokens
// from a single mint have to cover the full payment, amounts are not
// combined across mints.
func (g *Gateway) Pay(ctx context.Context, req PaymentRequest) (*PaymentResult, *Error) {
	if req.Method != cashu.BOLT11_METHOD {
		return nil, buildError(InvalidPaymentRequestErrCode, "unsupported payment method",
			fmt.Sprintf("method '%v' is not supported", req.Method))
	}

	invoice, err := decodepay.Decodepay(req.Request)
	if err != nil {
		return nil, buildError(InvalidPaymentRequestErrCode, "invalid payment request",
			fmt.Sprintf("unable to decode invoice: %v", err))
	}
	if time.Now().Unix() > int64(invoice.CreatedAt)+int64(invoice.Expiry) {
		return nil, buildError(InvalidPaymentRequestErrCode, "invalid payment request", "invoice is expired")
	}

	amount := uint64(invoice.MSatoshi / 1000)
	if invoice.MSatoshi == 0 {
		if req.Amount == nil || *req.Amount == 0 {
			return nil, MissingAmountErr
		}
		amount = *req.Amount
	} else if req.Amount != nil && *req.Amount != amount {
		return nil, buildError(InvalidPaymentRequestErrCode, "invalid payment request",
			fmt.Sprintf("amount %v does not match invoice amount %v", *req.Amount, amount))
	}

	groups, gatewayErr := groupTokens(req.Tokens, g.registry)
	if gatewayErr != nil {
		return nil, gatewayErr
	}

	group, quote, gatewayErr := g.negotiate(ctx, groups, req.Request)
	if gatewayErr != nil {
		return nil, gatewayErr
	}

	fingerprint := proofsFingerprint(group.proofs)
	if previous := g.db.GetAttemptByFingerprint(fingerprint); previous != nil && previous.Consumed() {
		return nil, ProofsAlreadyUsedErr
	}

	attempt := storage.Attempt{
		QuoteId:      quote.Quote,
		MintURL:      group.mint,
		Fingerprint:  fingerprint,
		Amount:       quote.Amount,
		FeeReserve:   quote.FeeReserve,
		ProofsAmount: group.amount(),
		State:        storage.Redeeming,
		CreatedAt:    time.Now().Unix(),
	}
	if err := g.db.SaveAttempt(attempt); err != nil {
		return nil, InternalErr
	}

	meltResponse, err := g.client.Melt(ctx, group.mint, nut05.PostMeltBolt11Request{
		Quote:  quote.Quote,
		Inputs: group.proofs,
	})
	if err != nil {
		var cashuErr cashu.Error
		if errors.As(err, &cashuErr) {
			// mint rejected the proofs, nothing was consumed
			attempt.State = storage.Rejected
			if err := g.db.SaveAttempt(attempt); err != nil {
				g.logger.Error("could not persist attempt", slog.String("error", err.Error()))
			}
			return nil, buildError(RedemptionRejectedErrCode, "redemption rejected", cashuErr.Detail)
		}
		// outcome of the melt call is unconfirmed so the proofs
		// stay reserved and will not be resubmitted
		g.logger.Error("unconfirmed redemption", slog.String("quote", quote.Quote),
			slog.String("mint", group.mint), slog.String("error", err.Error()))
		return nil, buildError(InternalErrCode, "unable to process payment request",
			"redemption outcome could not be confirmed. Proofs will not be resubmitted")
	}

	attempt.State = storage.Settling
	attempt.Receipt = meltResponse.Receipt
	if err := g.db.SaveAttempt(attempt); err != nil {
		g.logger.Error("could not persist attempt", slog.String("error", err.Error()))
	}

	// the proofs are consumed at this point. The payment attempt and
	// reconciliation have to run to completion even if the caller goes
	// away, so detach from the request context.
	detachedCtx := context.WithoutCancel(ctx)

	preimage, outcome := g.settle(detachedCtx, req.Request, amount, invoice.PaymentHash, quote)
	return g.reconcile(detachedCtx, attempt, quote, preimage, outcome)
}

// negotiate finds the first token group whose mint can serve the
// payment and whose value covers the quoted amount plus fee reserve.
func (g *Gateway) negotiate(ctx context.Context, groups []tokenGroup, request string) (
	tokenGroup, *nut05.PostMeltQuoteBolt11Response, *Error) {

	insufficientDetail := ""

	for _, group := range groups {
		mintInfo, err := g.registry.Info(ctx, group.mint)
		if err != nil {
			g.logger.Warn("could not reach mint", slog.String("mint", group.mint),
				slog.String("error", err.Error()))
			continue
		}
		if !mintInfo.SupportsBolt11Melt(cashu.Sat.String()) {
			g.logger.Warn("mint does not support bolt11 melt", slog.String("mint", group.mint))
			continue
		}

		quote, err := g.client.GetMeltQuote(ctx, group.mint, nut05.PostMeltQuoteBolt11Request{
			Request: request,
			Unit:    cashu.Sat.String(),
		})
		if err != nil {
			g.logger.Warn("could not get melt quote", slog.String("mint", group.mint),
				slog.String("error", err.Error()))
			continue
		}
		if quote.Expiry > 0 && time.Now().Unix() >= quote.Expiry {
			g.logger.Warn("mint returned an already expired quote", slog.String("mint", group.mint))
			continue
		}

		required := quote.Amount + quote.FeeReserve
		if group.amount() < required {
			insufficientDetail = fmt.Sprintf(
				"mint '%v' requires %v sats (including fee reserve) but tokens only provide %v",
				group.mint, required, group.amount())
			continue
		}

		return group, quote, nil
	}

	if len(insufficientDetail) > 0 {
		return tokenGroup{}, nil, buildError(NoViableMintErrCode, "no viable mint", insufficientDetail)
	}
	return tokenGroup{}, nil, NoViableMintErr
}

// settle attempts the Lightning payment and resolves its outcome. It
// returns Pending when the outcome could not be confirmed either way.
func (g *Gateway) settle(ctx context.Context, request string, amount uint64, paymentHash string,
	quote *nut05.PostMeltQuoteBolt11Response) (string, lightning.State) {

	sends := 0
	for {
		sends++

		sendCtx, cancel := context.WithTimeout(ctx, g.settleTimeout)
		status, err := g.node.SendPayment(sendCtx, request, amount)
		cancel()

		if err == nil && status.PaymentStatus == lightning.Succeeded {
			return status.Preimage, lightning.Succeeded
		}
		if err == nil && status.PaymentStatus == lightning.Failed {
			// confirmed failure, refund
			return "", lightning.Failed
		}

		// send timed out or errored, ask the backend what happened to
		// the payment before doing anything else
		statusCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		status, err = g.node.OutgoingPaymentStatus(statusCtx, paymentHash)
		cancel()

		if err != nil || status.PaymentStatus == lightning.Pending {
			return "", lightning.Pending
		}
		if status.PaymentStatus == lightning.Succeeded {
			return status.Preimage, lightning.Succeeded
		}

		// the timed out attempt resolved as failed. Retry once with
		// the same quote as long as it has not expired.
		if sends >= 2 || (quote.Expiry > 0 && time.Now().Unix() >= quote.Expiry) {
			return "", lightning.Failed
		}
	}
}

// reconcile issues change according to the settlement outcome and puts
// the attempt in its terminal state.
func (g *Gateway) reconcile(ctx context.Context, attempt storage.Attempt,
	quote *nut05.PostMeltQuoteBolt11Response, preimage string, outcome lightning.State) (*PaymentResult, *Error) {

	switch outcome {
	case lightning.Succeeded:
		attempt.State = storage.Succeeded
		attempt.Preimage = preimage
		if err := g.db.SaveAttempt(attempt); err != nil {
			g.logger.Error("could not persist attempt", slog.String("error", err.Error()))
		}

		var change []string
		changeAmount := attempt.ProofsAmount - (quote.Amount + quote.FeeReserve)
		if changeAmount > 0 {
			var err error
			change, err = g.issueChange(ctx, attempt.MintURL, quote.Quote, changeAmount)
			if err != nil {
				// the payment settled so this is still a success. The
				// remaining credit stays on the quote for the operator
				// to resolve.
				g.logger.Error("payment settled but change could not be issued",
					slog.String("quote", quote.Quote), slog.String("mint", attempt.MintURL),
					slog.Uint64("amount", changeAmount), slog.String("error", err.Error()))
				change = nil
			}
		}
		return &PaymentResult{PaymentProof: preimage, Change: change}, nil

	case lightning.Failed:
		// refund the full consumed value as change
		refund, err := g.issueChange(ctx, attempt.MintURL, quote.Quote, attempt.ProofsAmount)
		if err != nil {
			attempt.State = storage.FailedUnrefunded
			if err := g.db.SaveAttempt(attempt); err != nil {
				g.logger.Error("could not persist attempt", slog.String("error", err.Error()))
			}
			g.logger.Error("payment failed and refund could not be issued, needs out of band resolution",
				slog.String("quote", quote.Quote), slog.String("mint", attempt.MintURL),
				slog.String("error", err.Error()))
			return nil, &Error{
				Code:    SettlementFailedErrCode,
				Message: "payment failed",
				Details: "the Lightning payment could not be completed and the refund could not be issued. The credit remains on the quote",
			}
		}

		attempt.State = storage.Failed
		if err := g.db.SaveAttempt(attempt); err != nil {
			g.logger.Error("could not persist attempt", slog.String("error", err.Error()))
		}
		return nil, &Error{
			Code:    SettlementFailedErrCode,
			Message: "payment failed",
			Details: "the Lightning payment could not be completed. The redeemed value is refunded as change",
			Change:  refund,
		}

	default:
		attempt.State = storage.Unknown
		if err := g.db.SaveAttempt(attempt); err != nil {
			g.logger.Error("could not persist attempt", slog.String("error", err.Error()))
		}
		g.logger.Error("settlement outcome unknown, needs out of band resolution",
			slog.String("quote", quote.Quote), slog.String("mint", attempt.MintURL))
		return nil, SettlementUnknownErr
	}
}

// issueChange gets blind signatures from the mint for the credit left
// on the quote and builds a token from the resulting proofs.
func (g *Gateway) issueChange(ctx context.Context, mintURL, quoteId string, amount uint64) ([]string, error) {
	keyset, err := g.registry.ActiveKeyset(ctx, mintURL)
	if err != nil {
		return nil, err
	}

	blindedMessages, secrets, rs, err := createBlindedMessages(amount, keyset.Id)
	if err != nil {
		return nil, fmt.Errorf("error creating blinded messages: %v", err)
	}

	changeResponse, err := g.client.MeltChange(ctx, mintURL, nut05.PostMeltChangeRequest{
		Quote:   quoteId,
		Outputs: blindedMessages,
	})
	if err != nil {
		return nil, err
	}

	proofs, err := constructProofs(changeResponse.Signatures, secrets, rs, keyset)
	if err != nil {
		return nil, fmt.Errorf("error constructing proofs: %v", err)
	}

	token, err := cashu.NewTokenV4(proofs, mintURL, cashu.Sat)
	if err != nil {
		return nil, fmt.Errorf("error creating change token: %v", err)
	}
	tokenStr, err := token.Serialize()
	if err != nil {
		return nil, fmt.Errorf("error serializing change token: %v", err)
	}

	return []string{tokenStr}, nil
}
