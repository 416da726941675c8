package domain

import (
	"errors"
	"testing"
)

func TestNetworkError(t *testing.T) {
	baseErr := errors.New("connection refused")

	t.Run("retriable error", func(t *testing.T) {
		err := NewNetworkError("dial", baseErr)

		if !err.IsRetriable() {
			t.Error("Expected error to be retriable")
		}

		if err.Error() != "dial: connection refused" {
			t.Errorf("Error message = %q, want %q", err.Error(), "dial: connection refused")
		}

		if !errors.Is(err, baseErr) {
			t.Error("Expected error to wrap baseErr")
		}
	})

	t.Run("fatal error", func(t *testing.T) {
		err := NewFatalNetworkError("subscribe", baseErr)

		if err.IsRetriable() {
			t.Error("Expected error to not be retriable")
		}
	})

	t.Run("IsRetriable helper", func(t *testing.T) {
		retriable := NewNetworkError("dial", baseErr)
		fatal := NewFatalNetworkError("auth", baseErr)
		plain := errors.New("plain error")

		if !IsRetriable(retriable) {
			t.Error("IsRetriable should return true for retriable error")
		}
		if IsRetriable(fatal) {
			t.Error("IsRetriable should return false for fatal error")
		}
		if IsRetriable(plain) {
			t.Error("IsRetriable should return false for plain error")
		}
	})
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Field: "method", Err: ErrUnknownMethod}

	if err.IsRetriable() {
		t.Error("ConfigError should never be retriable")
	}

	expected := "config error [method]: unknown method"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, ErrUnknownMethod) {
		t.Error("Expected ConfigError to unwrap to ErrUnknownMethod")
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"config", &ConfigError{Field: "api_key", Err: ErrMissingCredentials}, true},
		{"signing", &SigningError{Venue: VenueKraken, Err: errors.New("bad base64")}, true},
		{"wrapped config", errors.Join(errors.New("poll"), &ConfigError{Field: "x", Err: ErrUnknownMethod}), true},
		{"parse", &ParseError{Venue: VenueKraken, What: "balance", Err: ErrCurrencyNotFound}, false},
		{"network", NewNetworkError("read", errors.New("eof")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseVenue(t *testing.T) {
	if v, err := ParseVenue(" kraken "); err != nil || v != VenueKraken {
		t.Errorf("ParseVenue(kraken) = %v, %v", v, err)
	}
	if v, err := ParseVenue("BINANCE"); err != nil || v != VenueBinance {
		t.Errorf("ParseVenue(BINANCE) = %v, %v", v, err)
	}
	if _, err := ParseVenue("ftx"); !errors.Is(err, ErrUnknownVenue) {
		t.Errorf("ParseVenue(ftx) error = %v, want ErrUnknownVenue", err)
	}
}
