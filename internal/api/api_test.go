package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medeasy/marketplace/domain"
	"medeasy/marketplace/internal/assignment"
	"medeasy/marketplace/internal/commission"
	"medeasy/marketplace/internal/database"
	"medeasy/marketplace/internal/fulfillment"
	"medeasy/marketplace/internal/inventory"
	"medeasy/marketplace/internal/lifecycle"
	"medeasy/marketplace/internal/migrations"
	"medeasy/marketplace/internal/ocr"
	"medeasy/marketplace/internal/store"
)

type stubExtractor struct {
	result *ocr.Result
	err    error
}

func (s *stubExtractor) Extract(context.Context, []byte, string) (*ocr.Result, error) {
	return s.result, s.err
}

type testServer struct {
	router http.Handler
	ocr    *stubExtractor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Connect("file::memory:?_pragma=foreign_keys(1)&_time_format=sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	db.MustExec(`INSERT INTO medicines (id, brand_id, brand_name, generic_name) VALUES
        (1, 100, 'Napa', 'Paracetamol'), (2, 101, 'Seclo', 'Omeprazole')`)

	st := store.New(db)
	repo := inventory.NewRepository(db)
	catalog := inventory.NewCachedProvider(repo, nil, 0, nil)
	extractor := &stubExtractor{}
	svc := fulfillment.NewService(st, catalog, extractor, nil, fulfillment.Config{
		Schedule:    commission.NewSchedule(commission.DefaultRate),
		DeliveryFee: decimal.NewFromInt(50),
	}, nil)
	ctrl := assignment.NewController(st, svc.Machine(), svc, nil, nil)

	h := New(db, "test-secret", Dependencies{
		Service:    svc,
		Deliveries: ctrl,
		Inventory:  repo,
		Catalog:    catalog,
	})
	return &testServer{router: h.Router(), ocr: extractor}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, email, role string, extra map[string]string) authResponse {
	t.Helper()
	body := map[string]string{"username": email, "email": email, "password": "secret123", "role": role}
	for k, v := range extra {
		body[k] = v
	}
	rec := s.do(t, http.MethodPost, "/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp authResponse
	decode(t, rec, &resp)
	return resp
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func transition(action lifecycle.Action) map[string]lifecycle.Action {
	return map[string]lifecycle.Action{"action": action}
}

type actors struct {
	pharmacy   authResponse
	patient    authResponse
	partner    authResponse
	rival      authResponse
	pharmacyID int64
}

func (s *testServer) actors(t *testing.T) actors {
	t.Helper()
	a := actors{
		pharmacy: s.register(t, "owner@example.com", domain.RolePharmacy, map[string]string{
			"pharmacy_name": "Green Cross", "pharmacy_address": "Road 5",
		}),
		patient: s.register(t, "patient@example.com", domain.RolePatient, nil),
		partner: s.register(t, "rider@example.com", domain.RoleDeliveryPartner, nil),
		rival:   s.register(t, "rival@example.com", domain.RoleDeliveryPartner, nil),
	}
	require.NotNil(t, a.pharmacy.Pharmacy)
	a.pharmacyID = a.pharmacy.Pharmacy.ID
	return a
}

func (s *testServer) stock(t *testing.T, a actors, medicineID, quantity int64, price string) int64 {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/inventory", a.pharmacy.Token, map[string]any{
		"medicine_id": medicineID, "quantity": quantity, "price": price,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		ID int64 `json:"id"`
	}
	decode(t, rec, &resp)
	return resp.ID
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "patient@example.com", domain.RolePatient, nil)

	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "x", "email": "patient@example.com", "password": "p", "role": domain.RolePatient,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "root", "email": "root@example.com", "password": "p", "role": domain.RoleAdmin,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "shop", "email": "shop@example.com", "password": "p", "role": domain.RolePharmacy,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "pharmacy_name is required")

	rec = s.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "PATIENT@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp authResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Empty(t, resp.User.Password)

	rec = s.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "patient@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/pharmacies", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/pharmacies", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCommissionQuote(t *testing.T) {
	s := newTestServer(t)
	patient := s.register(t, "patient@example.com", domain.RolePatient, nil)

	rec := s.do(t, http.MethodPost, "/commission/quote", patient.Token, map[string]string{
		"kind": "order", "gross_amount": "200.00",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var split commission.Split
	decode(t, rec, &split)
	assert.True(t, split.Commission.Equal(decimal.RequireFromString("10.00")), split.Commission.String())
	assert.True(t, split.Net.Equal(decimal.RequireFromString("190.00")), split.Net.String())

	rec = s.do(t, http.MethodPost, "/commission/quote", patient.Token, map[string]string{
		"kind": "order", "gross_amount": "0",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestOrderToDoorstep(t *testing.T) {
	s := newTestServer(t)
	a := s.actors(t)
	entry := s.stock(t, a, 1, 50, "2.50")

	rec := s.do(t, http.MethodPost, "/orders", a.patient.Token, map[string]any{
		"pharmacy_id":      a.pharmacyID,
		"delivery_address": "House 12",
		"items":            []map[string]int64{{"inventory_id": entry, "quantity": 4}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order domain.Order
	decode(t, rec, &order)
	assert.Equal(t, lifecycle.OrderPending, order.Status)
	assert.True(t, order.GrossAmount.Equal(decimal.NewFromInt(10)), order.GrossAmount.String())
	assert.True(t, order.CommissionAmount.Equal(decimal.RequireFromString("0.50")))

	rec = s.do(t, http.MethodPost, "/orders/"+order.ID+"/transitions", a.patient.Token, transition(lifecycle.ActionConfirm))
	assert.Equal(t, http.StatusForbidden, rec.Code, "patients cannot confirm")

	for _, action := range []lifecycle.Action{lifecycle.ActionConfirm, lifecycle.ActionProcess, lifecycle.ActionMarkReady} {
		rec = s.do(t, http.MethodPost, "/orders/"+order.ID+"/transitions", a.pharmacy.Token, transition(action))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	for _, action := range []lifecycle.Action{lifecycle.ActionDispatch, lifecycle.ActionDeliver} {
		rec = s.do(t, http.MethodPost, "/orders/"+order.ID+"/transitions", a.pharmacy.Token, transition(action))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "%s follows the delivery", action)
	}

	rec = s.do(t, http.MethodGet, "/deliveries/open", a.partner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var open []domain.Delivery
	decode(t, rec, &open)
	require.Len(t, open, 1)
	delivery := open[0]
	assert.Equal(t, "Road 5", delivery.PickupAddress)
	assert.Equal(t, "House 12", delivery.DropoffAddress)

	rec = s.do(t, http.MethodGet, "/orders/"+order.ID+"/delivery", a.patient.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/deliveries/"+delivery.ID+"/accept", a.partner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/deliveries/"+delivery.ID+"/accept", a.rival.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/deliveries/"+delivery.ID+"/transitions", a.rival.Token, transition(lifecycle.ActionPickup))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/deliveries/"+delivery.ID+"/transitions", a.partner.Token, transition(lifecycle.ActionAssign))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	for _, action := range []lifecycle.Action{lifecycle.ActionPickup, lifecycle.ActionStartTransit, lifecycle.ActionDeliver} {
		rec = s.do(t, http.MethodPost, "/deliveries/"+delivery.ID+"/transitions", a.partner.Token, transition(action))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/orders/"+order.ID, a.patient.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &order)
	assert.Equal(t, lifecycle.OrderDelivered, order.Status)
	assert.NotNil(t, order.DeliveredAt)

	rec = s.do(t, http.MethodGet, "/orders/"+order.ID, a.rival.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrderErrors(t *testing.T) {
	s := newTestServer(t)
	a := s.actors(t)
	entry := s.stock(t, a, 1, 3, "2.50")

	rec := s.do(t, http.MethodPost, "/orders", a.patient.Token, map[string]any{
		"pharmacy_id":      a.pharmacyID,
		"delivery_address": "House 12",
		"items":            []map[string]int64{{"inventory_id": entry, "quantity": 4}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "insufficient stock")

	rec = s.do(t, http.MethodPost, "/orders", a.patient.Token, map[string]any{"pharmacy_id": a.pharmacyID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/orders", a.pharmacy.Token, map[string]any{"pharmacy_id": a.pharmacyID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/orders/missing", a.patient.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/orders", a.patient.Token, map[string]any{
		"pharmacy_id":      a.pharmacyID,
		"delivery_address": "House 12",
		"items":            []map[string]int64{{"inventory_id": entry, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var order domain.Order
	decode(t, rec, &order)

	rec = s.do(t, http.MethodPost, "/orders/"+order.ID+"/transitions", a.pharmacy.Token, transition(lifecycle.ActionDeliver))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/orders/"+order.ID+"/transitions", a.patient.Token, transition(lifecycle.ActionCancel))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &order)
	assert.Equal(t, lifecycle.OrderCancelled, order.Status)
}

func TestCancelReadyOrderClosesDelivery(t *testing.T) {
	s := newTestServer(t)
	a := s.actors(t)
	entry := s.stock(t, a, 1, 10, "2.50")

	rec := s.do(t, http.MethodPost, "/orders", a.patient.Token, map[string]any{
		"pharmacy_id":      a.pharmacyID,
		"delivery_address": "House 12",
		"items":            []map[string]int64{{"inventory_id": entry, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order domain.Order
	decode(t, rec, &order)
	for _, action := range []lifecycle.Action{lifecycle.ActionConfirm, lifecycle.ActionProcess, lifecycle.ActionMarkReady} {
		rec = s.do(t, http.MethodPost, "/orders/"+order.ID+"/transitions", a.pharmacy.Token, transition(action))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/orders/"+order.ID+"/transitions", a.patient.Token, transition(lifecycle.ActionCancel))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/orders/"+order.ID+"/delivery", a.patient.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var delivery domain.Delivery
	decode(t, rec, &delivery)
	assert.Equal(t, lifecycle.DeliveryCancelled, delivery.Status)

	rec = s.do(t, http.MethodGet, "/deliveries/open", a.partner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var open []domain.Delivery
	decode(t, rec, &open)
	assert.Empty(t, open)

	rec = s.do(t, http.MethodPost, "/deliveries/"+delivery.ID+"/accept", a.partner.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(t, http.MethodPost, "/deliveries/accept-next", a.partner.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAcceptNextDelivery(t *testing.T) {
	s := newTestServer(t)
	a := s.actors(t)

	rec := s.do(t, http.MethodGet, "/delivery-partners/me", a.partner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var profile domain.DeliveryPartner
	decode(t, rec, &profile)
	assert.True(t, profile.Available)
	assert.Equal(t, defaultPartnerCapacity, profile.MaxConcurrentDeliveries)

	rec = s.do(t, http.MethodPost, "/deliveries/accept-next", a.partner.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/delivery-partners/me", a.partner.Token, availabilityRequest{Available: false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/deliveries/accept-next", a.partner.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "off duty partners are unavailable")

	rec = s.do(t, http.MethodPut, "/delivery-partners/me", a.partner.Token, availabilityRequest{MaxConcurrentDeliveries: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/deliveries/accept-next", a.patient.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAppointmentFlow(t *testing.T) {
	s := newTestServer(t)
	patient := s.register(t, "patient@example.com", domain.RolePatient, nil)
	doctor := s.register(t, "doctor@example.com", domain.RoleDoctor, nil)

	rec := s.do(t, http.MethodPost, "/appointments", patient.Token, map[string]any{
		"doctor_id":    doctor.User.ID,
		"scheduled_at": "2026-05-01T09:30:00Z",
		"fee":          "800",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var appt domain.Appointment
	decode(t, rec, &appt)
	assert.True(t, appt.CommissionAmount.Equal(decimal.NewFromInt(40)))

	rec = s.do(t, http.MethodPost, "/appointments/"+appt.ID+"/transitions", patient.Token, transition(lifecycle.ActionConfirm))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/appointments/"+appt.ID+"/transitions", doctor.Token, transition(lifecycle.ActionConfirm))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &appt)
	assert.Equal(t, lifecycle.AppointmentConfirmed, appt.Status)

	rec = s.do(t, http.MethodGet, "/appointments/"+appt.ID, doctor.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLabBookingFlow(t *testing.T) {
	s := newTestServer(t)
	patient := s.register(t, "patient@example.com", domain.RolePatient, nil)
	lab := s.register(t, "lab@example.com", domain.RoleLaboratory, nil)

	rec := s.do(t, http.MethodPost, "/lab-bookings", patient.Token, map[string]any{
		"laboratory_id": lab.User.ID,
		"test_code":     "CBC",
		"test_name":     "Complete Blood Count",
		"scheduled_at":  "2026-05-02T08:00:00Z",
		"price":         "600",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var booking domain.LabBooking
	decode(t, rec, &booking)

	for _, action := range []lifecycle.Action{lifecycle.ActionCollectSample, lifecycle.ActionStartAnalysis} {
		rec = s.do(t, http.MethodPost, "/lab-bookings/"+booking.ID+"/transitions", lab.Token, transition(action))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodPost, "/lab-bookings/"+booking.ID+"/transitions", lab.Token, map[string]string{
		"action": string(lifecycle.ActionPublishReport), "report_url": "https://reports.example.com/cbc.pdf",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &booking)
	require.NotNil(t, booking.ReportURL)
	assert.Equal(t, "https://reports.example.com/cbc.pdf", *booking.ReportURL)
}

func upload(t *testing.T, s *testServer, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "rx.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/prescriptions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestPrescriptionUploadAndMatch(t *testing.T) {
	s := newTestServer(t)
	a := s.actors(t)
	s.stock(t, a, 1, 20, "2.50")
	s.ocr.result = &ocr.Result{Medicines: []domain.ExtractedMedicine{{Name: "Napa", Quantity: 2}, {Name: "Seclo"}}}

	rec := upload(t, s, a.patient.Token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var up uploadResponse
	decode(t, rec, &up)
	require.NotNil(t, up.Prescription)
	assert.Equal(t, lifecycle.PrescriptionProcessed, up.Prescription.Status)

	rec = s.do(t, http.MethodPost, "/prescriptions/"+up.Prescription.ID+"/match", a.patient.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var match matchResponse
	decode(t, rec, &match)
	assert.False(t, match.ManualVerification)
	require.NotEmpty(t, match.Pharmacies)
	assert.Equal(t, a.pharmacyID, match.Pharmacies[0].PharmacyID)
	assert.Equal(t, 1, match.Pharmacies[0].MatchedCount)

	rec = s.do(t, http.MethodGet, "/prescriptions/"+up.Prescription.ID, a.rival.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	other := s.register(t, "other@example.com", domain.RolePatient, nil)
	rec = s.do(t, http.MethodGet, "/prescriptions/"+up.Prescription.ID, other.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPrescriptionNeedsManualVerification(t *testing.T) {
	s := newTestServer(t)
	patient := s.register(t, "patient@example.com", domain.RolePatient, nil)
	s.ocr.result = &ocr.Result{Medicines: []domain.ExtractedMedicine{{Name: "Seclo"}}}

	rec := upload(t, s, patient.Token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var up uploadResponse
	decode(t, rec, &up)

	rec = s.do(t, http.MethodPost, "/prescriptions/"+up.Prescription.ID+"/match", patient.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var match matchResponse
	decode(t, rec, &match)
	assert.True(t, match.ManualVerification)
	require.Len(t, match.Unmatched, 1)
}

func TestPrescriptionOCRFailure(t *testing.T) {
	s := newTestServer(t)
	patient := s.register(t, "patient@example.com", domain.RolePatient, nil)
	s.ocr.err = &ocr.Failure{Reason: ocr.ReasonUnreadableImage}

	rec := upload(t, s, patient.Token)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	var up uploadResponse
	decode(t, rec, &up)
	assert.Equal(t, string(ocr.ReasonUnreadableImage), up.Reason)
	require.NotNil(t, up.Prescription)
	assert.Equal(t, lifecycle.PrescriptionRejected, up.Prescription.Status)

	rec = s.do(t, http.MethodPost, "/prescriptions/"+up.Prescription.ID+"/match", patient.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInventoryOwnership(t *testing.T) {
	s := newTestServer(t)
	a := s.actors(t)
	entry := s.stock(t, a, 1, 5, "2.50")
	rival := s.register(t, "rival-shop@example.com", domain.RolePharmacy, map[string]string{"pharmacy_name": "Lazz"})

	rec := s.do(t, http.MethodPost, "/inventory/"+itoa(entry)+"/stock", rival.Token, map[string]int64{"quantity": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/inventory/"+itoa(entry)+"/stock", a.pharmacy.Token, map[string]int64{"quantity": 0})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/inventory/"+itoa(entry)+"/stock", a.pharmacy.Token, map[string]int64{"quantity": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/inventory/search?pharmacy_id="+itoa(a.pharmacyID), a.patient.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []domain.InventoryEntry
	decode(t, rec, &entries)
	assert.Empty(t, entries, "out of stock entries are hidden")

	rec = s.do(t, http.MethodGet, "/medicines?q=napa", a.patient.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var medicines []domain.Medicine
	decode(t, rec, &medicines)
	require.Len(t, medicines, 1)
	assert.Equal(t, "Napa", medicines[0].BrandName)

	rec = s.do(t, http.MethodGet, "/pharmacies", a.patient.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pharmacies []domain.Pharmacy
	decode(t, rec, &pharmacies)
	assert.Len(t, pharmacies, 2)
}

func TestUpdateInventoryListing(t *testing.T) {
	s := newTestServer(t)
	a := s.actors(t)
	entry := s.stock(t, a, 1, 20, "2.50")
	rival := s.register(t, "rival-shop@example.com", domain.RolePharmacy, map[string]string{"pharmacy_name": "Lazz"})
	s.ocr.result = &ocr.Result{Medicines: []domain.ExtractedMedicine{{Name: "Napa", Quantity: 2}}}

	rec := upload(t, s, a.patient.Token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var up uploadResponse
	decode(t, rec, &up)
	match := func() matchResponse {
		t.Helper()
		rec := s.do(t, http.MethodPost, "/prescriptions/"+up.Prescription.ID+"/match", a.patient.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var m matchResponse
		decode(t, rec, &m)
		return m
	}
	require.NotEmpty(t, match().Pharmacies)

	rec = s.do(t, http.MethodPut, "/inventory/"+itoa(entry), rival.Token, map[string]any{"active": false})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodPut, "/inventory/"+itoa(entry), a.pharmacy.Token, map[string]any{"expiry_date": "next year"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPut, "/inventory/999", a.pharmacy.Token, map[string]any{"active": false})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/inventory/"+itoa(entry), a.pharmacy.Token, map[string]any{"active": false, "price": "3.00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated domain.InventoryEntry
	decode(t, rec, &updated)
	assert.False(t, updated.Active)
	assert.True(t, updated.Price.Equal(decimal.RequireFromString("3")))

	m := match()
	assert.True(t, m.ManualVerification, "inactive stock is not offered")
	assert.Empty(t, m.Pharmacies)

	rec = s.do(t, http.MethodPut, "/inventory/"+itoa(entry), a.pharmacy.Token, map[string]any{"active": true, "expiry_date": "2020-01-01"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, match().ManualVerification, "expired stock is not offered")

	rec = s.do(t, http.MethodPost, "/orders", a.patient.Token, map[string]any{
		"pharmacy_id":      a.pharmacyID,
		"delivery_address": "House 12",
		"items":            []map[string]int64{{"inventory_id": entry, "quantity": 1}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "expired stock cannot be ordered")
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
