package assignment

import (
	"context"
	"sort"
	"sync"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/lifecycle"
)

// MemoryClaimer keeps deliveries in a map behind a mutex. It satisfies Store
// for single-process use.
type MemoryClaimer struct {
	mu         sync.Mutex
	deliveries map[string]domain.Delivery
	partners   map[int64]domain.DeliveryPartner
}

func NewMemoryClaimer(deliveries ...domain.Delivery) *MemoryClaimer {
	m := &MemoryClaimer{
		deliveries: make(map[string]domain.Delivery, len(deliveries)),
		partners:   map[int64]domain.DeliveryPartner{},
	}
	for _, d := range deliveries {
		m.deliveries[d.ID] = d
	}
	return m
}

func (m *MemoryClaimer) Put(d domain.Delivery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[d.ID] = d
}

func (m *MemoryClaimer) PutPartner(p domain.DeliveryPartner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partners[p.UserID] = p
}

func (m *MemoryClaimer) GetDelivery(_ context.Context, id string) (*domain.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *MemoryClaimer) ClaimDelivery(_ context.Context, d *domain.Delivery) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.deliveries[d.ID]
	if !ok || cur.Claimed() || cur.Status != lifecycle.DeliveryPending {
		return false, nil
	}
	cur.DeliveryPartnerID = d.DeliveryPartnerID
	cur.State = d.State
	cur.AssignedAt = d.AssignedAt
	m.deliveries[d.ID] = cur
	return true, nil
}

func (m *MemoryClaimer) ListOpenDeliveries(_ context.Context, limit int) ([]domain.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var open []domain.Delivery
	for _, d := range m.deliveries {
		if !d.Claimed() && d.Status == lifecycle.DeliveryPending {
			open = append(open, d)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		if !open[i].CreatedAt.Equal(open[j].CreatedAt) {
			return open[i].CreatedAt.Before(open[j].CreatedAt)
		}
		return open[i].ID < open[j].ID
	})
	if limit > 0 && len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

func (m *MemoryClaimer) CountActiveDeliveries(_ context.Context, partnerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.deliveries {
		if d.DeliveryPartnerID == nil || *d.DeliveryPartnerID != partnerID {
			continue
		}
		switch d.Status {
		case lifecycle.DeliveryAssigned, lifecycle.DeliveryPickedUp,
			lifecycle.DeliveryInTransit, lifecycle.DeliveryIssueReported:
			n++
		}
	}
	return n, nil
}

func (m *MemoryClaimer) GetDeliveryPartner(_ context.Context, userID int64) (*domain.DeliveryPartner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partners[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryClaimer) SaveDeliveryPartner(_ context.Context, p *domain.DeliveryPartner) error {
	m.PutPartner(*p)
	return nil
}
