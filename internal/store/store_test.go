package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/commission"
	"medeasy/marketplace/internal/database"
	"medeasy/marketplace/internal/lifecycle"
	"medeasy/marketplace/internal/migrations"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Connect("file::memory:?_pragma=foreign_keys(1)&_time_format=sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))

	db.MustExec(`INSERT INTO pharmacies (id, name, address) VALUES (1, 'Green Cross', 'Road 5')`)
	db.MustExec(`INSERT INTO medicines (id, brand_id, brand_name, generic_name) VALUES (1, 100, 'Napa', 'Paracetamol')`)
	db.MustExec(`INSERT INTO inventory (id, pharmacy_id, medicine_id, quantity, sale_price) VALUES (1, 1, 1, 50, '2.50')`)
	return New(db)
}

func amounts(t *testing.T, gross string) domain.Amounts {
	t.Helper()
	split, err := commission.ComputeSplit(decimal.RequireFromString(gross), commission.DefaultRate)
	require.NoError(t, err)
	return domain.AmountsFrom(split)
}

func newOrder(t *testing.T, s *Store, id string) *domain.Order {
	t.Helper()
	o := &domain.Order{
		ID:              id,
		PatientID:       7,
		PharmacyID:      1,
		DeliveryAddress: "House 12",
		Amounts:         amounts(t, "25.00"),
		State:           lifecycle.State{Status: lifecycle.OrderPending, UpdatedAt: now},
		CreatedAt:       now,
		Items: []domain.OrderItem{{
			InventoryID:  1,
			MedicineName: "Napa",
			Quantity:     10,
			UnitPrice:    decimal.RequireFromString("2.50"),
			Subtotal:     decimal.RequireFromString("25.00"),
		}},
	}
	require.NoError(t, s.CreateOrder(context.Background(), o))
	return o
}

func newDelivery(t *testing.T, s *Store, id, orderID string) *domain.Delivery {
	t.Helper()
	d := &domain.Delivery{
		ID:             id,
		OrderID:        orderID,
		PickupAddress:  "Road 5",
		DropoffAddress: "House 12",
		Amounts:        amounts(t, "60"),
		State:          lifecycle.State{Status: lifecycle.DeliveryPending, UpdatedAt: now},
		CreatedAt:      now,
	}
	require.NoError(t, s.CreateDelivery(context.Background(), d))
	return d
}

func TestOrderRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	o := newOrder(t, s, "ord-1")

	got, err := s.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OrderPending, got.Status)
	assert.True(t, got.GrossAmount.Equal(decimal.RequireFromString("25")))
	assert.True(t, got.CommissionAmount.Equal(decimal.RequireFromString("1.25")))
	assert.True(t, got.NetAmount.Equal(decimal.RequireFromString("23.75")))
	assert.True(t, got.CreatedAt.Equal(now))
	require.Len(t, got.Items, 1)
	assert.Equal(t, o.Items[0].ID, got.Items[0].ID)
	assert.Equal(t, "Napa", got.Items[0].MedicineName)

	_, err = s.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateOrderStatusGuard(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	o := newOrder(t, s, "ord-1")

	at := now.Add(time.Minute)
	o.Status = lifecycle.OrderConfirmed
	o.UpdatedAt = at
	o.ConfirmedAt = &at
	require.NoError(t, s.UpdateOrderStatus(ctx, o, lifecycle.OrderPending))

	// A second writer that read PENDING loses.
	assert.ErrorIs(t, s.UpdateOrderStatus(ctx, o, lifecycle.OrderPending), ErrStaleStatus)

	missing := *o
	missing.ID = "nope"
	assert.ErrorIs(t, s.UpdateOrderStatus(ctx, &missing, lifecycle.OrderConfirmed), ErrNotFound)

	got, err := s.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OrderConfirmed, got.Status)
	require.NotNil(t, got.ConfirmedAt)
	assert.True(t, got.ConfirmedAt.Equal(at))
}

func TestMilestoneColumnsAreWriteOnce(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	o := newOrder(t, s, "ord-1")

	first := now.Add(time.Minute)
	o.Status, o.UpdatedAt, o.ConfirmedAt = lifecycle.OrderConfirmed, first, &first
	require.NoError(t, s.UpdateOrderStatus(ctx, o, lifecycle.OrderPending))

	later := now.Add(time.Hour)
	o.Status, o.UpdatedAt, o.ConfirmedAt = lifecycle.OrderProcessing, later, &later
	require.NoError(t, s.UpdateOrderStatus(ctx, o, lifecycle.OrderConfirmed))

	got, err := s.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.True(t, got.ConfirmedAt.Equal(first))
}

func TestAppointmentAndLabBooking(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a := &domain.Appointment{
		ID: "apt-1", PatientID: 7, DoctorID: 9, ScheduledAt: now.Add(24 * time.Hour), Mode: "video",
		Amounts:   amounts(t, "800"),
		State:     lifecycle.State{Status: lifecycle.AppointmentScheduled, UpdatedAt: now},
		CreatedAt: now,
	}
	require.NoError(t, s.CreateAppointment(ctx, a))
	a.Status = lifecycle.AppointmentConfirmed
	a.ConfirmedAt = &now
	require.NoError(t, s.UpdateAppointmentStatus(ctx, a, lifecycle.AppointmentScheduled))

	gotA, err := s.GetAppointment(ctx, "apt-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.AppointmentConfirmed, gotA.Status)
	assert.Equal(t, "video", gotA.Mode)
	assert.True(t, gotA.CommissionAmount.Equal(decimal.RequireFromString("40")))

	l := &domain.LabBooking{
		ID: "lab-1", PatientID: 7, LaboratoryID: 3, TestCode: "CBC", TestName: "Complete blood count",
		ScheduledAt: now.Add(48 * time.Hour),
		Amounts:     amounts(t, "450"),
		State:       lifecycle.State{Status: lifecycle.LabBooked, UpdatedAt: now},
		CreatedAt:   now,
	}
	require.NoError(t, s.CreateLabBooking(ctx, l))
	url := "https://reports.example/lab-1.pdf"
	l.Status, l.ReportURL = lifecycle.LabInProgress, &url
	assert.ErrorIs(t, s.UpdateLabBookingStatus(ctx, l, lifecycle.LabSampleCollected), ErrStaleStatus)
	require.NoError(t, s.UpdateLabBookingStatus(ctx, l, lifecycle.LabBooked))

	gotL, err := s.GetLabBooking(ctx, "lab-1")
	require.NoError(t, err)
	require.NotNil(t, gotL.ReportURL)
	assert.Equal(t, url, *gotL.ReportURL)

	_, err = s.GetAppointment(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetLabBooking(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func claim(d domain.Delivery, partner int64) *domain.Delivery {
	d.DeliveryPartnerID = &partner
	d.Status = lifecycle.DeliveryAssigned
	d.AssignedAt = &now
	return &d
}

func TestClaimDeliveryOnlyOnce(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	newOrder(t, s, "ord-1")
	d := newDelivery(t, s, "del-1", "ord-1")

	won, err := s.ClaimDelivery(ctx, claim(*d, 21))
	require.NoError(t, err)
	assert.True(t, won)

	won, err = s.ClaimDelivery(ctx, claim(*d, 22))
	require.NoError(t, err)
	assert.False(t, won)

	got, err := s.GetDelivery(ctx, "del-1")
	require.NoError(t, err)
	require.NotNil(t, got.DeliveryPartnerID)
	assert.Equal(t, int64(21), *got.DeliveryPartnerID)
	assert.Equal(t, lifecycle.DeliveryAssigned, got.Status)

	_, err = s.ClaimDelivery(ctx, d)
	assert.Error(t, err, "claim without a partner must be refused")
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	s := newStore(t)
	newOrder(t, s, "ord-1")
	d := newDelivery(t, s, "del-1", "ord-1")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(partner int64) {
			defer wg.Done()
			won, err := s.ClaimDelivery(context.Background(), claim(*d, partner))
			if assert.NoError(t, err) && won {
				wins.Add(1)
			}
		}(int64(100 + i))
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestUpdateDeliveryStatusKeepsPartner(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	newOrder(t, s, "ord-1")
	d := newDelivery(t, s, "del-1", "ord-1")
	claimed := claim(*d, 21)
	_, err := s.ClaimDelivery(ctx, claimed)
	require.NoError(t, err)

	other := int64(99)
	claimed.DeliveryPartnerID = &other
	claimed.Status = lifecycle.DeliveryIssueReported
	claimed.Held = lifecycle.DeliveryAssigned
	require.NoError(t, s.UpdateDeliveryStatus(ctx, claimed, lifecycle.DeliveryAssigned))

	got, err := s.GetDelivery(ctx, "del-1")
	require.NoError(t, err)
	assert.Equal(t, int64(21), *got.DeliveryPartnerID)
	assert.Equal(t, lifecycle.DeliveryIssueReported, got.Status)
	assert.Equal(t, lifecycle.DeliveryAssigned, got.Held)

	byOrder, err := s.GetDeliveryByOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "del-1", byOrder.ID)
}

func TestOpenDeliveriesAndActiveCount(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		newOrder(t, s, fmt.Sprintf("ord-%d", i))
		newDelivery(t, s, fmt.Sprintf("del-%d", i), fmt.Sprintf("ord-%d", i))
	}
	first, err := s.GetDelivery(ctx, "del-1")
	require.NoError(t, err)
	_, err = s.ClaimDelivery(ctx, claim(*first, 21))
	require.NoError(t, err)

	open, err := s.ListOpenDeliveries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "del-2", open[0].ID)
	assert.Equal(t, "del-3", open[1].ID)

	n, err := s.CountActiveDeliveries(ctx, 21)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.CountActiveDeliveries(ctx, 22)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeliveryPartnerProfile(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	s.DB.MustExec(`INSERT INTO users (id, username, email, password, role) VALUES (21, 'rider', 'r@x.io', 'h', 'delivery_partner')`)

	_, err := s.GetDeliveryPartner(ctx, 21)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveDeliveryPartner(ctx, &domain.DeliveryPartner{UserID: 21, MaxConcurrentDeliveries: 2, Available: true}))
	require.NoError(t, s.SaveDeliveryPartner(ctx, &domain.DeliveryPartner{UserID: 21, MaxConcurrentDeliveries: 4, Available: false}))

	p, err := s.GetDeliveryPartner(ctx, 21)
	require.NoError(t, err)
	assert.Equal(t, 4, p.MaxConcurrentDeliveries)
	assert.False(t, p.Available)
}

func TestPrescriptionRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	p := &domain.Prescription{
		ID: "rx-1", PatientID: 7, ImageName: "scan.jpg",
		State:     lifecycle.State{Status: lifecycle.PrescriptionUploaded, UpdatedAt: now},
		CreatedAt: now,
	}
	require.NoError(t, s.CreatePrescription(ctx, p))

	got, err := s.GetPrescription(ctx, "rx-1")
	require.NoError(t, err)
	assert.Empty(t, got.ExtractedMedicines)

	p.ExtractedMedicines = []domain.ExtractedMedicine{{Name: "Napa", Dosage: "500mg", Quantity: 10}}
	p.ExtractedText = "Napa 500mg"
	p.Status = lifecycle.PrescriptionProcessed
	p.ProcessedAt = &now
	require.NoError(t, s.UpdatePrescription(ctx, p, lifecycle.PrescriptionUploaded))
	assert.ErrorIs(t, s.UpdatePrescription(ctx, p, lifecycle.PrescriptionUploaded), ErrStaleStatus)

	got, err = s.GetPrescription(ctx, "rx-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.PrescriptionProcessed, got.Status)
	assert.Equal(t, p.ExtractedMedicines, got.ExtractedMedicines)
	assert.Equal(t, "Napa 500mg", got.ExtractedText)
}

func TestReadyOrderOpensDelivery(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	o := newOrder(t, s, "ord-1")
	o.Status = lifecycle.OrderReadyForDelivery

	d := &domain.Delivery{
		ID: "del-1", OrderID: "ord-1", Amounts: amounts(t, "50"),
		State:     lifecycle.State{Status: lifecycle.DeliveryPending, UpdatedAt: now},
		CreatedAt: now,
	}
	assert.ErrorIs(t, s.ReadyOrder(ctx, o, lifecycle.OrderProcessing, d), ErrStaleStatus)
	_, err := s.GetDeliveryByOrder(ctx, "ord-1")
	assert.ErrorIs(t, err, ErrNotFound, "a lost guard must not leave a delivery behind")

	require.NoError(t, s.ReadyOrder(ctx, o, lifecycle.OrderPending, d))
	got, err := s.GetDeliveryByOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "del-1", got.ID)
	assert.False(t, got.Claimed())

	stored, err := s.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OrderReadyForDelivery, stored.Status)
}

func cancelled(o domain.Order, d domain.Delivery) (*domain.Order, *domain.Delivery) {
	at := now.Add(time.Hour)
	o.Status, o.UpdatedAt, o.CancelledAt = lifecycle.OrderCancelled, at, &at
	d.Status, d.UpdatedAt, d.CancelledAt = lifecycle.DeliveryCancelled, at, &at
	return &o, &d
}

func TestCancelOrderCancelsDelivery(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	o := newOrder(t, s, "ord-1")
	o.Status = lifecycle.OrderReadyForDelivery
	require.NoError(t, s.UpdateOrderStatus(ctx, o, lifecycle.OrderPending))
	d := newDelivery(t, s, "del-1", "ord-1")

	co, cd := cancelled(*o, *d)
	require.NoError(t, s.CancelOrder(ctx, co, lifecycle.OrderReadyForDelivery, cd, lifecycle.DeliveryPending))

	gotOrder, err := s.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OrderCancelled, gotOrder.Status)
	gotDelivery, err := s.GetDelivery(ctx, "del-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.DeliveryCancelled, gotDelivery.Status)
	assert.NotNil(t, gotDelivery.CancelledAt)

	open, err := s.ListOpenDeliveries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestCancelOrderRollsBackWhenDeliveryWasClaimed(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	o := newOrder(t, s, "ord-1")
	o.Status = lifecycle.OrderReadyForDelivery
	require.NoError(t, s.UpdateOrderStatus(ctx, o, lifecycle.OrderPending))
	d := newDelivery(t, s, "del-1", "ord-1")

	won, err := s.ClaimDelivery(ctx, claim(*d, 21))
	require.NoError(t, err)
	require.True(t, won)

	co, cd := cancelled(*o, *d)
	assert.ErrorIs(t, s.CancelOrder(ctx, co, lifecycle.OrderReadyForDelivery, cd, lifecycle.DeliveryPending), ErrStaleStatus)

	gotOrder, err := s.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OrderReadyForDelivery, gotOrder.Status, "order write is rolled back")
	assert.Nil(t, gotOrder.CancelledAt)

	_, other := cancelled(*o, domain.Delivery{ID: "del-9", OrderID: "ord-9"})
	assert.Error(t, s.CancelOrder(ctx, co, lifecycle.OrderReadyForDelivery, other, lifecycle.DeliveryPending))
}

func TestGetPharmacy(t *testing.T) {
	s := newStore(t)
	p, err := s.GetPharmacy(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Road 5", p.Address)

	_, err = s.GetPharmacy(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNotFound)
}
