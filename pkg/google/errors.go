package google

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/harrisonrobin/taskcal/pkg/syncerr"
)

// IsNotFound reports whether err is a Google API 404 or 410.
func IsNotFound(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
}

// Classify maps a Google API failure onto a syncerr kind. Authentication
// failures are config errors, everything else is upstream.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *syncerr.Error
	if errors.As(err, &se) {
		return err
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return syncerr.ConfigError(op, "not authenticated, run `taskcal auth`", err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized:
			return syncerr.ConfigError(op, "not authenticated, run `taskcal auth`", err)
		case http.StatusForbidden:
			if !rateLimited(gerr) {
				return syncerr.ConfigError(op, "access denied, check API scopes", err)
			}
		}
	}
	return syncerr.UpstreamError(op, "google api request failed", err)
}

// Google reports quota exhaustion as 403 as well.
func rateLimited(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if strings.HasSuffix(strings.ToLower(item.Reason), "ratelimitexceeded") {
			return true
		}
	}
	return false
}
