package portapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		BaseURL:  srv.URL,
		Email:    "agent@example.com",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return client
}

func setAuthCookies(w http.ResponseWriter, access, refresh, csrf string) {
	http.SetCookie(w, &http.Cookie{Name: "access-token", Value: access})
	http.SetCookie(w, &http.Cookie{Name: "refresh-token", Value: refresh})
	http.SetCookie(w, &http.Cookie{Name: "csrf-token", Value: csrf})
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for missing base url")
	}

	client, err := NewClient(Config{BaseURL: "backend.local:8080"})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	if client.baseURL != "http://backend.local:8080" {
		t.Fatalf("baseURL = %q, want http scheme added", client.baseURL)
	}

	client, err = NewClient(Config{BaseURL: "https://backend.local/"})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	if client.baseURL != "https://backend.local" {
		t.Fatalf("baseURL = %q, want trailing slash trimmed", client.baseURL)
	}
}

func TestLoginStoresTokensAndSendsThem(t *testing.T) {
	t.Parallel()

	var gotCSRFHeader string
	var gotCookies map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["email"] != "agent@example.com" || creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		setAuthCookies(w, "acc-1", "ref-1", "csrf-1")
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/api/terminals", func(w http.ResponseWriter, r *http.Request) {
		gotCSRFHeader = r.Header.Get("X-CSRF-Token")
		gotCookies = map[string]string{}
		for _, c := range r.Cookies() {
			gotCookies[c.Name] = c.Value
		}
		json.NewEncoder(w).Encode(map[string]any{"terminals": []map[string]any{
			{"id": "uuid-east", "name": "East Gate", "code": "EG"},
		}})
	})

	client := newTestClient(t, mux)
	ctx := context.Background()

	if err := client.Login(ctx); err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	terminals, err := client.Terminals(ctx)
	if err != nil {
		t.Fatalf("Terminals() error: %v", err)
	}
	if len(terminals) != 1 || terminals[0].ID != "uuid-east" {
		t.Fatalf("terminals = %+v", terminals)
	}
	if gotCSRFHeader != "csrf-1" {
		t.Fatalf("X-CSRF-Token = %q", gotCSRFHeader)
	}
	if gotCookies["access-token"] != "acc-1" || gotCookies["refresh-token"] != "ref-1" {
		t.Fatalf("cookies = %+v", gotCookies)
	}
}

func TestLoginFailure(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	err := client.Login(context.Background())
	var status *StatusError
	if !errors.As(err, &status) || status.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Login() = %v, want 401 StatusError", err)
	}
}

func TestGetRetriesOnceAfterRefresh(t *testing.T) {
	t.Parallel()

	var terminalHits, refreshHits int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		refreshHits++
		setAuthCookies(w, "acc-2", "ref-2", "csrf-2")
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/api/terminals", func(w http.ResponseWriter, r *http.Request) {
		terminalHits++
		if terminalHits == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("X-CSRF-Token") != "csrf-2" {
			t.Errorf("retry sent stale csrf token %q", r.Header.Get("X-CSRF-Token"))
		}
		json.NewEncoder(w).Encode(map[string]any{"terminals": []map[string]any{}})
	})

	client := newTestClient(t, mux)

	if _, err := client.Terminals(context.Background()); err != nil {
		t.Fatalf("Terminals() error: %v", err)
	}
	if refreshHits != 1 {
		t.Fatalf("refresh hits = %d, want 1", refreshHits)
	}
	if terminalHits != 2 {
		t.Fatalf("terminal hits = %d, want original + retry", terminalHits)
	}
}

func TestGetGivesUpWhenRefreshFails(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/terminals", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := newTestClient(t, mux)

	_, err := client.Terminals(context.Background())
	var status *StatusError
	if !errors.As(err, &status) || status.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Terminals() = %v, want 401 StatusError", err)
	}
}

func TestStatusErrorSurfacesBody(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "terminal not found"}`))
	}))

	_, err := client.Terminals(context.Background())
	var status *StatusError
	if !errors.As(err, &status) {
		t.Fatalf("Terminals() = %v, want StatusError", err)
	}
	if status.StatusCode != http.StatusNotFound || status.Body == "" {
		t.Fatalf("status = %+v", status)
	}
}

func TestBookingsQueryParams(t *testing.T) {
	t.Parallel()

	var got map[string]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got = map[string]string{
			"startDate":  q.Get("startDate"),
			"endDate":    q.Get("endDate"),
			"status":     q.Get("status"),
			"terminalId": q.Get("terminalId"),
			"carrierId":  q.Get("carrierId"),
		}
		json.NewEncoder(w).Encode(map[string]any{"bookings": []map[string]any{
			{"id": "bk-1", "status": "CONFIRMED"},
		}})
	}))

	bookings, err := client.Bookings(context.Background(), BookingQuery{
		Status:     "confirmed",
		TerminalID: "uuid-east",
		CarrierID:  "carrier-9",
		StartDate:  "2025-03-10",
		EndDate:    "2025-03-17",
	})
	if err != nil {
		t.Fatalf("Bookings() error: %v", err)
	}
	if len(bookings) != 1 || bookings[0].ID != "bk-1" {
		t.Fatalf("bookings = %+v", bookings)
	}
	if got["status"] != "CONFIRMED" {
		t.Fatalf("status param = %q, want uppercased", got["status"])
	}
	if got["terminalId"] != "uuid-east" || got["carrierId"] != "carrier-9" {
		t.Fatalf("query = %+v", got)
	}
	if got["startDate"] != "2025-03-10" || got["endDate"] != "2025-03-17" {
		t.Fatalf("date window = %+v", got)
	}
}

func TestDaySummaryDefaultsToAllTerminals(t *testing.T) {
	t.Parallel()

	var gotPath, gotDate string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotDate = r.URL.Query().Get("date")
		json.NewEncoder(w).Encode(map[string]any{"summaries": []map[string]any{}})
	}))

	if _, err := client.DaySummary(context.Background(), "", "2025-03-10"); err != nil {
		t.Fatalf("DaySummary() error: %v", err)
	}
	if gotPath != "/api/analytics/terminals/all/day-summary" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotDate != "2025-03-10" {
		t.Fatalf("date = %q", gotDate)
	}
}

func TestCapacityForDate(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/terminals/uuid-east/capacity-for-date" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(CapacityForDate{
			Date:             "2025-03-10",
			DayOfWeek:        "Monday",
			Source:           "weekly_default",
			OperatingStart:   "06:00",
			OperatingEnd:     "22:00",
			SlotDurationMin:  60,
			MaxTrucksPerSlot: 10,
		})
	}))

	capacity, err := client.CapacityForDate(context.Background(), "uuid-east", "2025-03-10")
	if err != nil {
		t.Fatalf("CapacityForDate() error: %v", err)
	}
	if capacity.IsClosed || capacity.MaxTrucksPerSlot != 10 || capacity.Source != "weekly_default" {
		t.Fatalf("capacity = %+v", capacity)
	}
}

func TestScopeResolution(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/op-1", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"user": map[string]any{
			"id": "op-1",
			"operatorTerminal": map[string]any{
				"terminal": map[string]any{"id": "uuid-east", "name": "East Gate"},
			},
		}})
	})
	mux.HandleFunc("/api/users/ca-1", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"user": map[string]any{
			"id":      "ca-1",
			"carrier": map[string]any{"id": "carrier-9", "companyName": "Acme Haulage"},
		}})
	})
	mux.HandleFunc("/api/users/plain", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"user": map[string]any{"id": "plain"}})
	})

	client := newTestClient(t, mux)
	ctx := context.Background()

	terminalID, err := client.ResolveTerminalID(ctx, "op-1")
	if err != nil || terminalID != "uuid-east" {
		t.Fatalf("ResolveTerminalID() = %q, %v", terminalID, err)
	}
	carrierID, err := client.ResolveCarrierID(ctx, "ca-1")
	if err != nil || carrierID != "carrier-9" {
		t.Fatalf("ResolveCarrierID() = %q, %v", carrierID, err)
	}

	terminalID, err = client.ResolveTerminalID(ctx, "plain")
	if err != nil || terminalID != "" {
		t.Fatalf("unassigned operator = %q, %v, want empty", terminalID, err)
	}
	carrierID, err = client.ResolveCarrierID(ctx, "plain")
	if err != nil || carrierID != "" {
		t.Fatalf("carrierless user = %q, %v, want empty", carrierID, err)
	}
}
