package infra

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"arb_go/internal/domain"
)

const (
	apiKeyPrefix = "api_key:"
	apiSecPrefix = "api_sec:"
)

// LoadCredentials reads a line-oriented key file:
//
//	api_key: <key>
//	api_sec: <secret>
//
// Unknown lines are ignored and missing lines leave the field empty.
func LoadCredentials(path string) (domain.Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("open credentials: %w", err)
	}
	defer f.Close()

	var creds domain.Credentials
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, apiKeyPrefix):
			creds.APIKey = strings.TrimSpace(strings.TrimPrefix(line, apiKeyPrefix))
		case strings.HasPrefix(line, apiSecPrefix):
			creds.APISecret = strings.TrimSpace(strings.TrimPrefix(line, apiSecPrefix))
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	return creds, nil
}

// LoadVenueCredentials loads the key file for venue and applies
// ARB_<VENUE>_KEY / ARB_<VENUE>_SECRET overrides. A missing file is
// tolerated when both overrides are set.
func LoadVenueCredentials(venue domain.VenueID, path string) (domain.Credentials, error) {
	key := os.Getenv("ARB_" + string(venue) + "_KEY")
	secret := os.Getenv("ARB_" + string(venue) + "_SECRET")
	if key != "" && secret != "" {
		return domain.Credentials{APIKey: key, APISecret: secret}, nil
	}

	creds, err := LoadCredentials(path)
	if err != nil {
		return domain.Credentials{}, err
	}
	if key != "" {
		creds.APIKey = key
	}
	if secret != "" {
		creds.APISecret = secret
	}
	return creds, nil
}
