package kraken

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"arb_go/internal/domain"
)

func TestSubscriptionMessage(t *testing.T) {
	c := NewClient(domain.Credentials{})
	msg, err := c.SubscriptionMessage("PEPE/USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"event":"subscribe","pair":["PEPE/USD"],"subscription":{"name":"spread"}}`
	if string(msg) != want {
		t.Errorf("got %s, want %s", msg, want)
	}
}

func TestQuery_Public(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/0/public/Ticker" || r.URL.RawQuery != "pair=PEPEUSD" {
			t.Errorf("unexpected request %s %s?%s", r.Method, r.URL.Path, r.URL.RawQuery)
		}
		w.Write([]byte(`{"error":[],"result":{}}`))
	}))
	defer srv.Close()

	c := NewClient(domain.Credentials{}, WithBaseURL(srv.URL))
	body, err := c.Query(context.Background(), "Ticker", "pair=PEPEUSD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != `{"error":[],"result":{}}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestQuery_PrivateSigned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/0/private/Balance" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "nonce=1616492376594" {
			t.Errorf("body = %s", body)
		}
		if r.Header.Get("API-Key") != "key" {
			t.Error("missing API-Key header")
		}
		want := "1nH4vwR+8FHiYh1QT649xXkGd3JR3x0DWkgv3u9Ed/Qqv6KPtgQpEU4m+Emb/VgpEji3j1XNwI+HCbfXxmrTOg=="
		if got := r.Header.Get("API-Sign"); got != want {
			t.Errorf("API-Sign = %s, want %s", got, want)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %s", ct)
		}
		w.Write([]byte(`{"error":[],"result":{"USDT":"10.0"}}`))
	}))
	defer srv.Close()

	clock := func() time.Time { return time.UnixMilli(1616492376594) }
	c := NewClient(domain.Credentials{APIKey: "key", APISecret: docSecret}, WithBaseURL(srv.URL), WithClock(clock))

	body, err := c.Query(context.Background(), "Balance", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bal, err := c.ParseBalance(body, "USDT")
	if err != nil || bal.Amount != 10 {
		t.Errorf("unexpected balance %+v err=%v", bal, err)
	}
}

func TestQuery_Errors(t *testing.T) {
	tests := []struct {
		name   string
		creds  domain.Credentials
		method string
		want   error
	}{
		{"unknown method", domain.Credentials{APIKey: "k", APISecret: "c2VjcmV0"}, "Explode", domain.ErrUnknownMethod},
		{"missing credentials", domain.Credentials{}, "Balance", domain.ErrMissingCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.creds).Query(context.Background(), tt.method, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !domain.IsFatal(err) {
				t.Errorf("expected fatal error, got %v", err)
			}
		})
	}

	t.Run("undecodable secret", func(t *testing.T) {
		_, err := NewClient(domain.Credentials{APIKey: "k", APISecret: "%%%"}).Query(context.Background(), "Balance", "")
		var se *domain.SigningError
		if !errors.As(err, &se) {
			t.Errorf("expected SigningError, got %v", err)
		}
	})
}

func TestQuery_TransportFailureReturnsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(domain.Credentials{}, WithBaseURL(url), WithTimeout(time.Second))
	body, err := c.Query(context.Background(), "Time", "")
	if err != nil {
		t.Fatalf("transport failure must not be returned as error, got %v", err)
	}
	if !strings.HasPrefix(body, "kraken get") {
		t.Errorf("expected error text, got %q", body)
	}
}
