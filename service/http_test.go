package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"example.com/time-oracle/core/oracle"
)

type call struct {
	zone       string
	mode       oracle.Mode
	compensate bool
}

type fakeOracle struct {
	calls []call
	err   error
}

func (o *fakeOracle) TimeUTC(_ context.Context, mode oracle.Mode, compensate bool) (oracle.TimeResult, error) {
	o.calls = append(o.calls, call{mode: mode, compensate: compensate})
	if o.err != nil {
		return oracle.TimeResult{}, o.err
	}
	return oracle.TimeResult{
		ISO8601Time:        "2026-10-14T09:30:00.000000+00:00",
		ConsensusMethod:    "median_with_outlier_rejection",
		SourceSamples:      []oracle.SourceRecord{},
		Warnings:           []string{},
		LatencyCompensated: compensate,
	}, nil
}

func (o *fakeOracle) TimeForTimezone(ctx context.Context, name string, mode oracle.Mode, compensate bool) (oracle.TimezoneResult, error) {
	res, err := o.TimeUTC(ctx, mode, compensate)
	o.calls[len(o.calls)-1].zone = name
	if err != nil {
		return oracle.TimezoneResult{}, err
	}
	return oracle.TimezoneResult{TimeResult: res, Timezone: name, LocalTime: "2026-10-14T18:30:00.000000+09:00"}, nil
}

func (o *fakeOracle) CompareSystemClock(_ context.Context, mode oracle.Mode) (oracle.ClockComparison, error) {
	o.calls = append(o.calls, call{mode: mode, compensate: true})
	if o.err != nil {
		return oracle.ClockComparison{}, o.err
	}
	return oracle.ClockComparison{DeltaMs: 150, Status: oracle.StatusDrift}, nil
}

func get(t *testing.T, h http.Handler, target string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	body, _ := io.ReadAll(rec.Body)
	var m map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(body, &m); err != nil {
			t.Fatalf("invalid JSON body %q: %v", body, err)
		}
	}
	return rec.Code, m
}

func TestTimeUTC(t *testing.T) {
	o := &fakeOracle{}
	code, body := get(t, NewHandler(nil, o), "/v1/time/utc?mode=accurate&compensate=false")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["iso8601_time"] != "2026-10-14T09:30:00.000000+00:00" || body["latency_compensated"] != false {
		t.Errorf("body = %v", body)
	}
	if len(o.calls) != 1 || o.calls[0].mode != oracle.Accurate || o.calls[0].compensate {
		t.Errorf("calls = %+v", o.calls)
	}
}

func TestTimeUTCDefaults(t *testing.T) {
	o := &fakeOracle{}
	code, _ := get(t, NewHandler(nil, o), "/v1/time/utc")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if o.calls[0].mode != oracle.Fast || !o.calls[0].compensate {
		t.Errorf("calls = %+v, want fast mode with compensation", o.calls)
	}
}

func TestInvalidArguments(t *testing.T) {
	for _, target := range []string{
		"/v1/time/utc?mode=precise",
		"/v1/time/utc?compensate=maybe",
		"/v1/time/zone?mode=fast",
		"/v1/time/zone?tz=UTC&mode=slow",
		"/v1/clock/compare?mode=x",
	} {
		o := &fakeOracle{}
		code, body := get(t, NewHandler(nil, o), target)
		if code != http.StatusBadRequest {
			t.Errorf("GET %s: status = %d, want 400", target, code)
		}
		if _, ok := body["error"]; !ok {
			t.Errorf("GET %s: body = %v, want error", target, body)
		}
		if len(o.calls) != 0 {
			t.Errorf("GET %s: oracle called", target)
		}
	}
}

func TestTimeForTimezone(t *testing.T) {
	o := &fakeOracle{}
	code, body := get(t, NewHandler(nil, o), "/v1/time/zone?tz=Asia/Tokyo")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["timezone"] != "Asia/Tokyo" || body["local_time"] != "2026-10-14T18:30:00.000000+09:00" {
		t.Errorf("body = %v", body)
	}
	if body["consensus_method"] != "median_with_outlier_rejection" {
		t.Errorf("body lacks embedded UTC fields: %v", body)
	}
	if o.calls[0].zone != "Asia/Tokyo" {
		t.Errorf("calls = %+v", o.calls)
	}
}

func TestCompareSystemClock(t *testing.T) {
	o := &fakeOracle{}
	code, body := get(t, NewHandler(nil, o), "/v1/clock/compare?mode=accurate")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["status"] != "drift" || body["delta_ms"] != float64(150) {
		t.Errorf("body = %v", body)
	}
}

func TestOracleErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{oracle.ErrInvalidMode, http.StatusBadRequest},
		{oracle.ErrNoServers, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, _ := get(t, NewHandler(nil, &fakeOracle{err: tt.err}), "/v1/time/utc")
		if code != tt.want {
			t.Errorf("error %v: status = %d, want %d", tt.err, code, tt.want)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(nil, &fakeOracle{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/time/utc", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(nil, &fakeOracle{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics status = %d, want 200", rec.Code)
	}
}
