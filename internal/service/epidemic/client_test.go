package epidemic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/greeting-push-go/internal/apiclient"
)

const guangdongBody = `{"results":[{"provinceName":"广东省","cities":[
	{"cityName":"广州","currentConfirmedCount":12,"suspectedCount":3},
	{"cityName":"深圳","currentConfirmedCount":7,"suspectedCount":0}
]}],"success":true}`

func newEpidemicClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	api := apiclient.NewClient(apiclient.Options{Timeout: 2 * time.Second}, zap.NewNop())
	return NewClient(api, server.URL, zap.NewNop())
}

func TestNormalizeProvince(t *testing.T) {
	tests := map[string]string{
		"广东":  "广东省",
		"广东省": "广东省",
		"北京":  "北京省",
		" 湖南 ": "湖南省",
	}
	for input, want := range tests {
		if got := NormalizeProvince(input); got != want {
			t.Errorf("NormalizeProvince(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFetchEpidemicMatchesCity(t *testing.T) {
	client := newEpidemicClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("latest") != "1" {
			t.Errorf("expected latest=1, got %q", q.Get("latest"))
		}
		if q.Get("province") != "广东省" {
			t.Errorf("expected normalized province, got %q", q.Get("province"))
		}
		_, _ = w.Write([]byte(guangdongBody))
	})

	snapshot, ok := client.FetchEpidemic(context.Background(), "广东", "深圳").Get()
	if !ok {
		t.Fatalf("expected epidemic snapshot")
	}
	if snapshot.CityName != "深圳" || snapshot.CurrentConfirmed != 7 || snapshot.Suspected != 0 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestFetchEpidemicRequiresExactMatch(t *testing.T) {
	client := newEpidemicClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(guangdongBody))
	})

	if client.FetchEpidemic(context.Background(), "广东省", "广州市").IsPresent() {
		t.Fatalf("expected no match for a differently spelled city")
	}
	if client.FetchEpidemic(context.Background(), "广东省", "佛山").IsPresent() {
		t.Fatalf("expected no match for a missing city")
	}
}

func TestFetchEpidemicAbsentOnFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"empty results", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":[],"success":true}`))
		}},
		{"bad status", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newEpidemicClient(t, tt.handler)
			if client.FetchEpidemic(context.Background(), "广东", "广州").IsPresent() {
				t.Fatalf("expected absent epidemic data")
			}
		})
	}
}
