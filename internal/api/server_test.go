package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"example.com/medifly/services/delivery/config"
	"example.com/medifly/services/delivery/internal/metrics"
	"example.com/medifly/services/delivery/internal/models"
	"example.com/medifly/services/delivery/internal/notifications"
	"example.com/medifly/services/delivery/internal/progression"
	"example.com/medifly/services/delivery/internal/repositories"
	"example.com/medifly/services/delivery/internal/services"
	"example.com/medifly/services/delivery/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	redisStore := store.NewRedisStoreWithClient(client)
	deliveries := repositories.NewDeliveryRepository(redisStore)
	progressions := repositories.NewProgressionRepository(redisStore)
	notifier := notifications.NewService(redisStore)
	m := metrics.NewMetrics()

	sched := progression.NewScheduler(deliveries, progressions, notifier, m, 0)
	t.Cleanup(sched.Shutdown)

	svc := services.NewDeliveryService(deliveries, sched, notifier, nil, m)

	cfg := config.Config{Environment: "test", ServerAddress: ":0"}
	return NewServer(cfg, Dependencies{
		DeliveryService: svc,
		Notifications:   notifier,
		Metrics:         m,
	})
}

func (s *Server) perform(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func createBody() map[string]interface{} {
	return map[string]interface{}{
		"patient_id":   "P1",
		"patient_name": "Li Wei",
		"doctor_id":    "DR1",
		"requested_by": "patient",
		"medicines": []map[string]interface{}{
			{"medicine_id": "med-001", "medicine_name": "Amoxicillin", "dosage": "500mg", "quantity": 21, "unit_type": "tablets"},
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.perform(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCreateDeliveryValidation(t *testing.T) {
	s := newTestServer(t)

	// Missing patient_id.
	body := createBody()
	delete(body, "patient_id")
	w := s.perform(t, http.MethodPost, "/api/deliveries", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown urgency level.
	body = createBody()
	body["urgency_level"] = "asap"
	w = s.perform(t, http.MethodPost, "/api/deliveries", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown requester role.
	body = createBody()
	body["requested_by"] = "pharmacist"
	w = s.perform(t, http.MethodPost, "/api/deliveries", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAndListDeliveries(t *testing.T) {
	s := newTestServer(t)

	w := s.perform(t, http.MethodPost, "/api/deliveries", createBody())
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Delivery
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, models.StatusPending, created.Status)

	// The request shows up in both dashboards.
	for _, path := range []string{"/api/deliveries/patient/P1", "/api/deliveries/doctor/DR1"} {
		w = s.perform(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Deliveries []models.Delivery `json:"deliveries"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Deliveries, 1)
		require.Equal(t, created.ID, resp.Deliveries[0].ID)
	}
}

func TestApproveFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.perform(t, http.MethodPost, "/api/deliveries", createBody())
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Delivery
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = s.perform(t, http.MethodPost, "/api/deliveries/"+created.ID+"/approve",
		map[string]interface{}{"doctor_id": "DR1", "patient_id": "P1"})
	require.Equal(t, http.StatusOK, w.Code)

	// The approval is visible and the tracking view now carries a schedule.
	w = s.perform(t, http.MethodGet, "/api/deliveries/"+created.ID+"/tracking?owner_id=P1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info services.TrackingInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	require.Equal(t, models.ApprovalApproved, info.Delivery.ApprovalStatus)
	require.NotNil(t, info.Progression)
	require.NotNil(t, info.Snapshot)
	require.Equal(t, progression.PhasePreparation, info.Snapshot.Phase)
}

func TestApproveUnknownDelivery(t *testing.T) {
	s := newTestServer(t)

	w := s.perform(t, http.MethodPost, "/api/deliveries/D-MISSING/approve",
		map[string]interface{}{"doctor_id": "DR1", "patient_id": "P1"})
	require.Equal(t, http.StatusNotFound, w.Code)

	// A missing doctor_id never reaches the service.
	w = s.perform(t, http.MethodPost, "/api/deliveries/D-MISSING/approve",
		map[string]interface{}{"patient_id": "P1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDenyFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.perform(t, http.MethodPost, "/api/deliveries", createBody())
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Delivery
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = s.perform(t, http.MethodPost, "/api/deliveries/"+created.ID+"/deny",
		map[string]interface{}{"doctor_id": "DR1", "patient_id": "P1", "reason": "needs prescription"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.perform(t, http.MethodGet, "/api/deliveries/"+created.ID+"/tracking?owner_id=P1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info services.TrackingInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	require.Equal(t, models.StatusCancelled, info.Delivery.Status)
	require.Equal(t, models.ApprovalDenied, info.Delivery.ApprovalStatus)

	// The denial landed in the patient's notification feed.
	w = s.perform(t, http.MethodGet, "/api/notifications/P1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "needs prescription")
}

func TestTrackingValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.perform(t, http.MethodGet, "/api/deliveries/D1/tracking", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.perform(t, http.MethodGet, "/api/deliveries/D1/tracking?owner_id=P1", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestResetDemo(t *testing.T) {
	s := newTestServer(t)

	body := createBody()
	body["is_emergency"] = true
	w := s.perform(t, http.MethodPost, "/api/deliveries", body)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Delivery
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = s.perform(t, http.MethodDelete, "/api/demo", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The progression is gone; the delivery record itself stays.
	w = s.perform(t, http.MethodGet, "/api/deliveries/"+created.ID+"/tracking?owner_id=P1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info services.TrackingInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	require.Nil(t, info.Progression)
}
