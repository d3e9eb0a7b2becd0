package repository

import (
	"context"
	"sync"

	"solflow/backend/pkg/models"
)

// MemoryPaymentStore keeps payment intents in process memory.
type MemoryPaymentStore struct {
	mu       sync.RWMutex
	payments map[string]models.Payment
	order    []string
}

// NewMemoryPaymentStore creates an empty MemoryPaymentStore.
func NewMemoryPaymentStore() *MemoryPaymentStore {
	return &MemoryPaymentStore{payments: make(map[string]models.Payment)}
}

func (s *MemoryPaymentStore) CreatePayment(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[payment.ID]; exists {
		return ErrDuplicateID
	}
	s.payments[payment.ID] = *payment
	s.order = append(s.order, payment.ID)
	return nil
}

func (s *MemoryPaymentStore) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payment, ok := s.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &payment, nil
}

func (s *MemoryPaymentStore) UpdatePayment(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[payment.ID]; !ok {
		return ErrNotFound
	}
	s.payments[payment.ID] = *payment
	return nil
}

func (s *MemoryPaymentStore) ListPayments(_ context.Context, filter models.PaymentFilter) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]*models.Payment, 0, len(s.order))
	for _, id := range s.order {
		payment := s.payments[id]
		if filter.Matches(&payment) {
			payments = append(payments, &payment)
		}
	}
	return payments, nil
}
