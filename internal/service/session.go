package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"dukaanpos/backend/internal/checkout"
	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/store"
)

// OpenCheckout starts (or restarts) the interactive edit session for a draft
// invoice and returns the derived state for the modal.
func (s *Service) OpenCheckout(ctx context.Context, invoiceID string) (domain.CheckoutState, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.CheckoutState{}, err
	}
	if !inv.Status.Editable() {
		return domain.CheckoutState{}, fmt.Errorf("%w: invoice %s is %s", store.ErrInvalidInvoice, inv.ID, inv.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := checkout.NewSession(invoiceID, inv.Items)
	s.sessions[invoiceID] = sess
	return buildState(sess), nil
}

// CheckoutSessionState returns the current state without mutating anything.
func (s *Service) CheckoutSessionState(ctx context.Context, invoiceID string) (domain.CheckoutState, error) {
	return s.withSession(invoiceID, nil)
}

func (s *Service) CloseCheckout(ctx context.Context, invoiceID string) {
	s.closeSession(invoiceID)
}

// SetGroupPrice edits a group's parent price and propagates it to attached
// members. A floor violation is reported in the returned state, not as an
// error: the cashier keeps typing and fixes it before submit.
func (s *Service) SetGroupPrice(ctx context.Context, invoiceID, productID string, price decimal.Decimal) (domain.CheckoutState, error) {
	return s.withSession(invoiceID, func(sess *checkout.Session) error {
		return sess.SetParentPrice(productID, price)
	})
}

func (s *Service) SetItemPrice(ctx context.Context, invoiceID, itemID string, price decimal.Decimal) (domain.CheckoutState, error) {
	return s.withSession(invoiceID, func(sess *checkout.Session) error {
		return sess.SetItemPrice(itemID, price)
	})
}

func (s *Service) ClearItemPrice(ctx context.Context, invoiceID, itemID string) (domain.CheckoutState, error) {
	return s.withSession(invoiceID, func(sess *checkout.Session) error {
		return sess.ClearItemPrice(itemID)
	})
}

func (s *Service) SetGroupQuantity(ctx context.Context, invoiceID, productID string, quantity int) (domain.CheckoutState, error) {
	return s.withSession(invoiceID, func(sess *checkout.Session) error {
		return sess.SetGroupQuantity(productID, quantity)
	})
}

func (s *Service) StepGroupQuantity(ctx context.Context, invoiceID, productID string, delta int) (domain.CheckoutState, error) {
	return s.withSession(invoiceID, func(sess *checkout.Session) error {
		return sess.StepGroupQuantity(productID, delta)
	})
}

// SplitCounterpart computes the auto-filled other half when the cashier
// edits one side of a mixed payment.
func (s *Service) SplitCounterpart(ctx context.Context, invoiceID string, edited decimal.Decimal) (decimal.Decimal, error) {
	state, err := s.withSession(invoiceID, nil)
	if err != nil {
		return decimal.Zero, err
	}
	return checkout.CounterpartAmount(state.Total, edited), nil
}

// withSession runs fn against the open session under the registry lock and
// returns the refreshed state. A nil fn just reads.
func (s *Service) withSession(invoiceID string, fn func(*checkout.Session) error) (domain.CheckoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[invoiceID]
	if !ok {
		return domain.CheckoutState{}, fmt.Errorf("%w: no open checkout session for invoice %s", store.ErrNotFound, invoiceID)
	}
	if fn != nil {
		if err := fn(sess); err != nil {
			return domain.CheckoutState{}, sessionErr(err)
		}
	}
	return buildState(sess), nil
}

// submitPlan is everything the submit paths need from the session, captured
// in one locked pass.
type submitPlan struct {
	active           []domain.CheckoutItem
	total            decimal.Decimal
	allPricesEntered bool
	firstError       string
}

// planSubmit folds the submitted item states into the invoice's session
// (creating one if the client never opened the modal) and snapshots the
// derived values used by the submit guards.
func (s *Service) planSubmit(invoiceID string, current []domain.LineItem, items []domain.CheckoutItem) (submitPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[invoiceID]
	if !ok {
		sess = checkout.NewSession(invoiceID, current)
		s.sessions[invoiceID] = sess
	}
	if err := applyCheckoutItems(sess, current, items); err != nil {
		return submitPlan{}, err
	}
	return submitPlan{
		active:           sess.ActiveItems(),
		total:            sess.ComputeTotal(),
		allPricesEntered: sess.AreAllPricesEntered(),
		firstError:       firstError(sess.PriceErrors()),
	}, nil
}

// reloadSession refreshes an open session after a persisted item mutation.
func (s *Service) reloadSession(invoiceID string, items []domain.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[invoiceID]; ok {
		sess.Reload(items)
	}
}

func (s *Service) closeSession(invoiceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, invoiceID)
}

func sessionErr(err error) error {
	switch {
	case errors.Is(err, checkout.ErrUnknownGroup), errors.Is(err, checkout.ErrUnknownItem):
		return fmt.Errorf("%w: %s", store.ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %s", store.ErrValidation, err)
	}
}

func buildState(sess *checkout.Session) domain.CheckoutState {
	groups := sess.Groups()
	views := make([]domain.GroupView, 0, len(groups))
	for _, group := range groups {
		view := domain.GroupView{
			ProductID:   group.ProductID,
			ProductName: group.ProductName,
			ParentPrice: sess.ParentPrice(group.ProductID),
			Tracked:     group.Tracked,
		}
		for _, item := range group.Items {
			qty := sess.EffectiveQuantity(item.ID)
			_, overridden := sess.ItemPrice(item.ID)
			view.Items = append(view.Items, domain.ItemView{
				ID:         item.ID,
				Quantity:   qty,
				UnitPrice:  sess.EffectiveUnitPrice(item),
				Overridden: overridden,
				Tracked:    item.TrackedUnit,
			})
			if qty > 0 {
				view.TotalQuantity += qty
			}
		}
		views = append(views, view)
	}
	return domain.CheckoutState{
		InvoiceID:        sess.InvoiceID(),
		Groups:           views,
		Total:            sess.ComputeTotal(),
		AllPricesEntered: sess.AreAllPricesEntered(),
		PriceErrors:      sess.PriceErrors(),
	}
}
