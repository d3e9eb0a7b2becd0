package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/tidwall/gjson"

	"solflow/backend/internal/apperror"
	"solflow/backend/internal/logging"
	"solflow/backend/internal/repository"
	"solflow/backend/internal/solana"
	"solflow/backend/pkg/models"
)

// DefaultFeeBps is the fee charged when a quote does not name one.
const DefaultFeeBps = 100

// CreateIntentInput is the body of a payment intent request.
type CreateIntentInput struct {
	Recipient string  `json:"recipient" validate:"required"`
	Mint      string  `json:"mint" validate:"required"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Memo      string  `json:"memo"`
}

// VerifyInput names a transaction that should settle a payment intent.
type VerifyInput struct {
	Endpoint  string `json:"endpoint" validate:"required"`
	Signature string `json:"signature" validate:"required"`
	PaymentID string `json:"paymentId"`
}

// VerifyResult reports a settled payment.
type VerifyResult struct {
	Verified  bool   `json:"verified"`
	Signature string `json:"signature"`
	BlockTime *int64 `json:"blockTime"`
	Slot      uint64 `json:"slot"`
	Fee       uint64 `json:"fee"`
	PaymentID string `json:"paymentId,omitempty"`
	Status    string `json:"status"`
}

// PaymentService tracks payment intents and settles them against on-chain transactions.
type PaymentService struct {
	store    repository.PaymentStore
	dial     ChainDialer
	validate *validator.Validate
	logger   *logging.Logger
	now      func() time.Time
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(store repository.PaymentStore, dial ChainDialer, logger *logging.Logger) *PaymentService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PaymentService{
		store:    store,
		dial:     dial,
		validate: NewValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

// CreateIntent records a pending payment.
func (s *PaymentService) CreateIntent(ctx context.Context, input CreateIntentInput) (*models.Payment, error) {
	if err := checkStruct(s.validate, input, "Missing required fields"); err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:        "payment_" + ulid.Make().String(),
		Recipient: input.Recipient,
		Mint:      input.Mint,
		Amount:    input.Amount,
		Status:    models.PaymentStatusPending,
		Timestamp: s.now().UnixMilli(),
		Memo:      input.Memo,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return nil, apperror.Internal("Failed to create payment intent", err)
	}
	s.logger.Info("payment intent created", "id", payment.ID, "recipient", payment.Recipient)
	return payment, nil
}

// Verify checks that the transaction exists and succeeded, then marks the
// named intent as completed with the fee payer as payer.
func (s *PaymentService) Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	if err := checkStruct(s.validate, input, "Endpoint and signature are required"); err != nil {
		return nil, err
	}
	if !solana.IsSignature(input.Signature) {
		return nil, apperror.Validation("Invalid transaction signature")
	}

	client, err := s.dial(input.Endpoint)
	if err != nil {
		return nil, apperror.Validation("Invalid RPC endpoint", apperror.FieldError{Path: "endpoint", Message: err.Error()})
	}

	raw, err := client.GetTransaction(ctx, input.Signature)
	if errors.Is(err, solana.ErrNullResult) {
		return nil, apperror.NotFound("Transaction not found")
	}
	if err != nil {
		return nil, apperror.Remote(http.StatusInternalServerError, "Failed to verify payment", err)
	}

	tx := gjson.ParseBytes(raw)
	if txErr := tx.Get("meta.err"); txErr.Exists() && txErr.Type != gjson.Null {
		return nil, apperror.Validation("Transaction failed").WithDetails(json.RawMessage(txErr.Raw))
	}

	if input.PaymentID != "" {
		if err := s.settle(ctx, input.PaymentID, feePayer(tx)); err != nil {
			return nil, err
		}
	}

	result := &VerifyResult{
		Verified:  true,
		Signature: input.Signature,
		Slot:      tx.Get("slot").Uint(),
		Fee:       tx.Get("meta.fee").Uint(),
		PaymentID: input.PaymentID,
		Status:    string(models.PaymentStatusCompleted),
	}
	if bt := tx.Get("blockTime"); bt.Exists() && bt.Type != gjson.Null {
		v := bt.Int()
		result.BlockTime = &v
	}
	return result, nil
}

// settle completes a known intent; unknown ids are ignored.
func (s *PaymentService) settle(ctx context.Context, id, payer string) error {
	payment, err := s.store.GetPayment(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperror.Internal("Failed to load payment", err)
	}
	payment.Status = models.PaymentStatusCompleted
	payment.Payer = payer
	if err := s.store.UpdatePayment(ctx, payment); err != nil {
		return apperror.Internal("Failed to update payment", err)
	}
	s.logger.Info("payment settled", "id", id, "payer", payer)
	return nil
}

// feePayer returns the first account key, which signs and pays for the transaction.
func feePayer(tx gjson.Result) string {
	first := tx.Get("transaction.message.accountKeys.0")
	if first.IsObject() {
		return first.Get("pubkey").String()
	}
	return first.String()
}

// Get returns a payment by id.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.store.GetPayment(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("Payment not found")
	}
	if err != nil {
		return nil, apperror.Internal("Failed to get payment", err)
	}
	return payment, nil
}

// List returns payments matching filter in creation order.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]*models.Payment, error) {
	payments, err := s.store.ListPayments(ctx, filter)
	if err != nil {
		return nil, apperror.Internal("Failed to list payments", err)
	}
	return payments, nil
}

// Calculate quotes the fee for amount at feeBps basis points.
func Calculate(amount float64, feeBps *float64) (*models.PaymentQuote, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, apperror.Validation("Invalid amount")
	}
	bps := float64(DefaultFeeBps)
	if feeBps != nil {
		bps = *feeBps
	}
	if bps < 0 || bps > 10000 {
		return nil, apperror.Validation("Invalid fee", apperror.FieldError{Path: "feeBps", Message: "must be between 0 and 10000"})
	}

	fee := math.Floor(amount * bps / 10000)
	return &models.PaymentQuote{
		RequestedAmount:   amount,
		Fee:               fee,
		FeeBps:            bps,
		TotalToPay:        amount + fee,
		RecipientReceives: amount - fee,
	}, nil
}
