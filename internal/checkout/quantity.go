package checkout

// SetGroupQuantity distributes a new group total across the group's items
// proportionally to their current quantities, using integer floor division.
// The distributed sum may come in under the requested total; the remainder is
// intentionally dropped rather than assigned to an arbitrary item. Tracked
// groups carry serialized units and reject quantity edits outright.
func (s *Session) SetGroupQuantity(productID string, newTotal int) error {
	group := s.groupFor(productID)
	if group == nil {
		return ErrUnknownGroup
	}
	if group.Tracked {
		return ErrTrackedQuantity
	}
	if newTotal < 0 {
		newTotal = 0
	}

	currentTotal := 0
	for _, item := range group.Items {
		if qty := s.EffectiveQuantity(item.ID); qty > 0 {
			currentTotal += qty
		}
	}

	if currentTotal == 0 {
		// Nothing to take a ratio from: spread the total evenly, floor per item.
		share := newTotal / len(group.Items)
		for _, item := range group.Items {
			s.quantities[item.ID] = share
		}
		return nil
	}

	for _, item := range group.Items {
		qty := s.EffectiveQuantity(item.ID)
		if qty < 0 {
			qty = 0
		}
		s.quantities[item.ID] = newTotal * qty / currentTotal
	}
	return nil
}

// StepGroupQuantity applies the +/- stepper: the group total moves by delta,
// clamped at zero, and is redistributed like a direct edit.
func (s *Session) StepGroupQuantity(productID string, delta int) error {
	group := s.groupFor(productID)
	if group == nil {
		return ErrUnknownGroup
	}
	if group.Tracked {
		return ErrTrackedQuantity
	}

	total := 0
	for _, item := range group.Items {
		if qty := s.EffectiveQuantity(item.ID); qty > 0 {
			total += qty
		}
	}
	return s.SetGroupQuantity(productID, total+delta)
}

// SetItemQuantity overrides one line item's quantity directly, bypassing
// group redistribution. Tracked units stay fixed.
func (s *Session) SetItemQuantity(itemID string, qty int) error {
	item := s.itemByID(itemID)
	if item == nil {
		return ErrUnknownItem
	}
	if item.TrackedUnit {
		return ErrTrackedQuantity
	}
	if qty < 0 {
		qty = 0
	}
	s.quantities[itemID] = qty
	return nil
}
