package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LocalGateway approves every charge. It backs development setups without a
// payment provider.
type LocalGateway struct{}

func NewLocalGateway() *LocalGateway {
	return &LocalGateway{}
}

func (g *LocalGateway) Name() string {
	return "local"
}

func (g *LocalGateway) ConfirmCharge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	if req == nil {
		return nil, fmt.Errorf("charge request is required")
	}
	if req.Amount.IsNegative() {
		return &ChargeResult{Status: ChargeFailed, FailureReason: "negative amount"}, nil
	}
	id := uuid.New().String()
	return &ChargeResult{
		PaymentID:     "local_pi_" + id,
		TransactionID: "local_txn_" + id,
		Status:        ChargeSucceeded,
	}, nil
}

func (g *LocalGateway) Refund(ctx context.Context, paymentID string, amount decimal.Decimal) error {
	if paymentID == "" {
		return fmt.Errorf("payment ID is required")
	}
	return nil
}
