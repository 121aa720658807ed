package lightning

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
	decodepay "github.com/nbd-wtf/ln-decodepay"
)

const FakePreimage = "0000000000000000"

// FakeBackend is a Lightning client for tests. Payment outcomes can
// be scripted through FailPayments, StallPayments and StallFirst.
type FakeBackend struct {
	payments []fakePayment

	// fail every SendPayment with a confirmed failure
	FailPayments bool
	// block SendPayment until the context is done, leaving the
	// payment outcome unknown
	StallPayments bool
	// number of SendPayment calls to stall before succeeding
	StallFirst int
	// report stalled payments as settled on a later status check
	SettleStalled bool
	// report stalled payments as failed on a later status check
	FailStalled bool

	sendCount int
}

type fakePayment struct {
	hash     string
	preimage string
	state    State
}

func (fb *FakeBackend) ConnectionStatus() error { return nil }

func (fb *FakeBackend) SendPayment(ctx context.Context, request string, amount uint64) (PaymentStatus, error) {
	invoice, err := decodepay.Decodepay(request)
	if err != nil {
		return PaymentStatus{PaymentStatus: Failed}, fmt.Errorf("error decoding invoice: %v", err)
	}

	fb.sendCount++

	if fb.StallPayments || fb.sendCount <= fb.StallFirst {
		stalled := fakePayment{hash: invoice.PaymentHash, state: Pending}
		if fb.SettleStalled {
			stalled.state = Succeeded
			stalled.preimage = FakePreimage
		} else if fb.FailStalled {
			stalled.state = Failed
		}
		fb.payments = append(fb.payments, stalled)
		<-ctx.Done()
		return PaymentStatus{PaymentStatus: Pending}, ctx.Err()
	}

	if fb.FailPayments {
		fb.payments = append(fb.payments, fakePayment{hash: invoice.PaymentHash, state: Failed})
		return PaymentStatus{PaymentStatus: Failed, Reason: "no route"}, nil
	}

	fb.payments = append(fb.payments, fakePayment{
		hash:     invoice.PaymentHash,
		preimage: FakePreimage,
		state:    Succeeded,
	})
	return PaymentStatus{Preimage: FakePreimage, PaymentStatus: Succeeded}, nil
}

func (fb *FakeBackend) OutgoingPaymentStatus(ctx context.Context, hash string) (PaymentStatus, error) {
	idx := slices.IndexFunc(fb.payments, func(p fakePayment) bool {
		return p.hash == hash
	})
	if idx == -1 {
		return PaymentStatus{PaymentStatus: Pending}, errors.New("payment does not exist")
	}

	payment := fb.payments[idx]
	return PaymentStatus{Preimage: payment.preimage, PaymentStatus: payment.state}, nil
}

// SendCount returns the number of SendPayment calls made.
func (fb *FakeBackend) SendCount() int {
	return fb.sendCount
}

// CreateFakeInvoice returns an encoded bolt11 invoice for the amount
// along with its preimage and payment hash.
func CreateFakeInvoice(amount uint64) (string, string, string, error) {
	var random [32]byte
	_, err := rand.Read(random[:])
	if err != nil {
		return "", "", "", err
	}
	preimage := hex.EncodeToString(random[:])
	paymentHash := sha256.Sum256(random[:])
	hash := hex.EncodeToString(paymentHash[:])

	invoice, err := zpay32.NewInvoice(
		&chaincfg.SigNetParams,
		paymentHash,
		time.Now(),
		zpay32.Amount(lnwire.MilliSatoshi(amount*1000)),
		zpay32.Description("test"),
	)
	if err != nil {
		return "", "", "", err
	}

	invoiceStr, err := invoice.Encode(zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			key, err := secp256k1.GeneratePrivateKey()
			if err != nil {
				return []byte{}, err
			}
			return ecdsa.SignCompact(key, msg, true), nil
		},
	})
	if err != nil {
		return "", "", "", err
	}

	return invoiceStr, preimage, hash, nil
}
