package cart

import (
	"github.com/gofrs/uuid"
)

// MergePlan describes how source cart items fold into the target cart.
type MergePlan struct {
	TargetCartID uuid.UUID
	SourceCartID uuid.UUID
	AnonymousID  string
	// Quantities holds the new quantity of target items that absorb a source item.
	Quantities map[uuid.UUID]int
	// Moves lists source items re-parented to the target as-is.
	Moves []uuid.UUID
}

// PlanMerge unions source into target by variant, summing quantities when
// both carts hold the same variant.
func PlanMerge(target, source Cart, targetItems, sourceItems []Item, anonymousID string) MergePlan {
	plan := MergePlan{
		TargetCartID: target.ID,
		SourceCartID: source.ID,
		AnonymousID:  anonymousID,
		Quantities:   make(map[uuid.UUID]int),
		Moves:        make([]uuid.UUID, 0),
	}

	byVariant := make(map[uuid.UUID]uuid.UUID, len(targetItems))
	quantity := make(map[uuid.UUID]int, len(targetItems))
	for _, it := range targetItems {
		if _, ok := byVariant[it.VariantID]; ok {
			continue
		}
		byVariant[it.VariantID] = it.ID
		quantity[it.ID] = it.Quantity
	}

	for _, it := range sourceItems {
		targetItemID, ok := byVariant[it.VariantID]
		if !ok {
			plan.Moves = append(plan.Moves, it.ID)
			continue
		}
		quantity[targetItemID] += it.Quantity
		plan.Quantities[targetItemID] = quantity[targetItemID]
	}
	return plan
}
