package consolidation

import (
	"context"
	"fmt"
	"log/slog"
)

// CreateEntity validates the parent reference and registers a legal entity.
func (s *Service) CreateEntity(ctx context.Context, tenantID string, input CreateEntityInput) (LegalEntity, error) {
	if err := input.Validate(); err != nil {
		return LegalEntity{}, err
	}
	if input.ParentEntityID != "" {
		if _, err := s.stores.Entities.GetEntity(ctx, tenantID, input.ParentEntityID); err != nil {
			return LegalEntity{}, fmt.Errorf("%w: %s", ErrParentNotFound, input.ParentEntityID)
		}
	}
	now := s.now()
	entity := LegalEntity{
		ID:                  s.newID(),
		TenantID:            tenantID,
		Code:                input.Code,
		Name:                input.Name,
		Type:                input.Type,
		ParentEntityID:      input.ParentEntityID,
		OwnershipPercentage: input.OwnershipPercentage,
		ConsolidationMethod: input.ConsolidationMethod,
		FunctionalCurrency:  input.FunctionalCurrency,
		ReportingCurrency:   input.ReportingCurrency,
		TranslationMethod:   input.TranslationMethod,
		FiscalYearEnd:       input.FiscalYearEnd,
		Country:             input.Country,
		TaxID:               input.TaxID,
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.stores.Entities.InsertEntity(ctx, entity); err != nil {
		return LegalEntity{}, err
	}
	s.log().Info("created legal entity",
		slog.String("entity_id", entity.ID),
		slog.String("code", entity.Code),
		slog.String("tenant_id", tenantID))
	s.recordAudit(ctx, tenantID, "", "entity_created", "legal_entities", entity.ID, map[string]any{
		"code": entity.Code,
		"name": entity.Name,
	})
	return entity, nil
}

// GetEntity returns a tenant-scoped entity by id.
func (s *Service) GetEntity(ctx context.Context, tenantID, entityID string) (LegalEntity, error) {
	entity, err := s.stores.Entities.GetEntity(ctx, tenantID, entityID)
	if err != nil {
		return LegalEntity{}, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	return entity, nil
}

// GetEntities lists tenant entities matching the filter, sorted by name.
func (s *Service) GetEntities(ctx context.Context, tenantID string, filter EntityFilter) ([]LegalEntity, error) {
	return s.stores.Entities.ListEntities(ctx, tenantID, filter)
}

// UpdateEntity mutates entity fields. Re-parenting validates the new parent
// and rejects assignments that would create an ownership cycle.
func (s *Service) UpdateEntity(ctx context.Context, tenantID, entityID string, input UpdateEntityInput) (LegalEntity, error) {
	if err := input.Validate(); err != nil {
		return LegalEntity{}, err
	}
	entity, err := s.GetEntity(ctx, tenantID, entityID)
	if err != nil {
		return LegalEntity{}, err
	}
	if input.ParentEntityID != nil && *input.ParentEntityID != entity.ParentEntityID {
		newParent := *input.ParentEntityID
		if newParent != "" {
			if _, err := s.stores.Entities.GetEntity(ctx, tenantID, newParent); err != nil {
				return LegalEntity{}, fmt.Errorf("%w: %s", ErrParentNotFound, newParent)
			}
			all, err := s.stores.Entities.ListEntities(ctx, tenantID, EntityFilter{})
			if err != nil {
				return LegalEntity{}, err
			}
			byID := make(map[string]LegalEntity, len(all))
			for _, e := range all {
				byID[e.ID] = e
			}
			if wouldCycle(byID, entityID, newParent) {
				return LegalEntity{}, fmt.Errorf("%w: %s -> %s", ErrOwnershipCycle, entityID, newParent)
			}
		}
		entity.ParentEntityID = newParent
	}
	if input.Name != nil {
		entity.Name = *input.Name
	}
	if input.OwnershipPercentage != nil {
		entity.OwnershipPercentage = *input.OwnershipPercentage
	}
	if input.ConsolidationMethod != nil {
		entity.ConsolidationMethod = *input.ConsolidationMethod
	}
	if input.TranslationMethod != nil {
		entity.TranslationMethod = *input.TranslationMethod
	}
	if input.IsActive != nil {
		entity.IsActive = *input.IsActive
	}
	entity.UpdatedAt = s.now()
	if err := s.stores.Entities.UpdateEntity(ctx, entity); err != nil {
		return LegalEntity{}, err
	}
	return entity, nil
}

// DeleteEntity removes a childless entity. Entities referenced as a parent
// cannot be deleted.
func (s *Service) DeleteEntity(ctx context.Context, tenantID, entityID string) error {
	if _, err := s.GetEntity(ctx, tenantID, entityID); err != nil {
		return err
	}
	children, err := s.stores.Entities.CountChildren(ctx, tenantID, entityID)
	if err != nil {
		return err
	}
	if children > 0 {
		return fmt.Errorf("%w: entity %s has %d children", ErrHasChildren, entityID, children)
	}
	if err := s.stores.Entities.DeleteEntity(ctx, tenantID, entityID); err != nil {
		return err
	}
	s.recordAudit(ctx, tenantID, "", "entity_deleted", "legal_entities", entityID, nil)
	return nil
}

// GetEntityHierarchy builds the ownership tree. Effective ownership
// compounds down the chain: a child's share is the parent's effective share
// times the child's direct ownership. The root is 100%.
//
// When rootID is empty every parentless entity becomes a root. Traversal
// tracks visited ids so a corrupt parent chain cannot recurse forever.
func (s *Service) GetEntityHierarchy(ctx context.Context, tenantID, rootID string) ([]EntityNode, error) {
	active := true
	entities, err := s.stores.Entities.ListEntities(ctx, tenantID, EntityFilter{IsActive: &active})
	if err != nil {
		return nil, err
	}
	byParent := make(map[string][]LegalEntity)
	for _, e := range entities {
		byParent[e.ParentEntityID] = append(byParent[e.ParentEntityID], e)
	}
	visited := make(map[string]bool, len(entities))

	var build func(parentID string, level int, parentOwnership float64) []EntityNode
	build = func(parentID string, level int, parentOwnership float64) []EntityNode {
		children := byParent[parentID]
		nodes := make([]EntityNode, 0, len(children))
		for _, child := range children {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			effective := parentOwnership * child.OwnershipPercentage / 100
			nodes = append(nodes, EntityNode{
				Entity:             child,
				Level:              level,
				EffectiveOwnership: effective,
				Children:           build(child.ID, level+1, effective),
			})
		}
		return nodes
	}

	if rootID != "" {
		root, err := s.GetEntity(ctx, tenantID, rootID)
		if err != nil {
			return nil, err
		}
		visited[root.ID] = true
		return []EntityNode{{
			Entity:             root,
			Level:              0,
			EffectiveOwnership: 100,
			Children:           build(root.ID, 1, 100),
		}}, nil
	}
	return build("", 0, 100), nil
}

// wouldCycle walks the parent chain from candidate upward and reports
// whether entityID appears in it.
func wouldCycle(entities map[string]LegalEntity, entityID, candidateParent string) bool {
	seen := make(map[string]bool)
	for current := candidateParent; current != ""; {
		if current == entityID {
			return true
		}
		if seen[current] {
			return true
		}
		seen[current] = true
		parent, ok := entities[current]
		if !ok {
			return false
		}
		current = parent.ParentEntityID
	}
	return false
}
