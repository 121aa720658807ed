// Package lightning defines the boundary to the payment processing
// backend that executes Lightning payments for the gateway.
package lightning

import "context"

// Client interface to interact with a Lightning backend
type Client interface {
	ConnectionStatus() error
	// SendPayment attempts to pay the invoice. It must respect ctx
	// cancellation and deadlines. An error with a Pending status means
	// the outcome of the payment is unknown.
	SendPayment(ctx context.Context, request string, amount uint64) (PaymentStatus, error)
	// OutgoingPaymentStatus checks the status of a previously
	// attempted payment by its payment hash.
	OutgoingPaymentStatus(ctx context.Context, hash string) (PaymentStatus, error)
}

type State int

const (
	Succeeded State = iota
	Pending
	Failed
)

func (s State) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Pending:
		return "pending"
	case Failed:
		return "failed"
	}
	return "unknown"
}

type PaymentStatus struct {
	Preimage      string
	PaymentStatus State
	// failure reason reported by the backend, if any
	Reason string
}
