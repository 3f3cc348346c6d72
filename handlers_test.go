package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type stubSummaryService struct {
	summary *Summary
	err     error
}

func (s *stubSummaryService) DailySummary(ctx context.Context) (*Summary, error) {
	return s.summary, s.err
}

func (s *stubSummaryService) MockSummary() *Summary {
	return &Summary{Date: "01 Jan 2024", Currency: "GBP", MockData: true}
}

func newTestRouter(service SummaryService, dispatches DispatchSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewHandler(service, dispatches, testConfig(), testLogger()).InitRoutes()
}

func doRequest(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestEnergyEndpoint(t *testing.T) {
	summary := &Summary{
		Date:      "01 Jan 2024",
		Currency:  "GBP",
		TotalCost: 4.67,
	}
	router := newTestRouter(&stubSummaryService{summary: summary}, nil)

	w := doRequest(router, "/api/energy")
	require.Equal(t, http.StatusOK, w.Code)

	var got Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "01 Jan 2024", got.Date)
	require.Equal(t, 4.67, got.TotalCost)
	require.Equal(t, "GBP", got.Currency)
}

func TestEnergyEndpointUpstreamFailure(t *testing.T) {
	router := newTestRouter(&stubSummaryService{err: fmt.Errorf("octopus unreachable")}, nil)

	w := doRequest(router, "/api/energy")
	require.Equal(t, http.StatusBadGateway, w.Code)

	var got ErrorSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "Failed to fetch data", got.Error)
	require.NotEmpty(t, got.Date)
}

func TestEnergyEndpointMock(t *testing.T) {
	// The mock path must not touch the live service.
	router := newTestRouter(&stubSummaryService{err: fmt.Errorf("must not be called")}, nil)

	w := doRequest(router, "/api/energy?mock=true")
	require.Equal(t, http.StatusOK, w.Code)

	var got Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.True(t, got.MockData)
}

func TestTrmnlEndpoint(t *testing.T) {
	summary := &Summary{
		Date: "01 Jan 2024",
		Electricity: ElectricitySummary{
			TotalUsage: 4.5,
			TotalCost:  1.71,
			SmartCharging: SmartChargingBreakdown{
				Usage:    1.0,
				Sessions: 1,
				Savings:  0.23,
			},
		},
		Gas:       GasReport{Usage: 3.98, EnergyKWh: 44.52, Cost: 3.09},
		TotalCost: 4.8,
	}
	router := newTestRouter(&stubSummaryService{summary: summary}, nil)

	w := doRequest(router, "/trmnl")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, `class="title_bar"`)
	require.Contains(t, body, "Energy Usage - 01 Jan 2024")
	require.Contains(t, body, "Smart Charging Saved £0.23")
	require.Contains(t, body, "44.5 kWh")
}

func TestTrmnlEndpointUpstreamFailure(t *testing.T) {
	router := newTestRouter(&stubSummaryService{err: fmt.Errorf("octopus unreachable")}, nil)

	w := doRequest(router, "/trmnl")
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Contains(t, w.Body.String(), "Failed to fetch data")
}

func TestDispatchesEndpoint(t *testing.T) {
	dispatches := &stubDispatches{
		windows: []DispatchWindow{{
			Start: time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC),
			Kind:  DispatchPlanned,
			Delta: -7.5,
		}},
	}
	router := newTestRouter(&stubSummaryService{}, dispatches)

	w := doRequest(router, "/dispatches")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "2024-01-01 23:00")
	require.Contains(t, w.Body.String(), "-7.5 kWh")
	require.Equal(t, 1, dispatches.calls)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&stubSummaryService{}, nil)

	w := doRequest(router, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), `"status":"ok"`))
}
