// Package updater checks whether a newer specify release is published.
//
// The check is best-effort: it runs in the background during "serve" and
// on "specify version --check", and network failures never surface as
// errors to the user. Replacing the binary is left to the package manager
// or "go install".
package updater

import (
	"context"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// checkTimeout bounds the release lookup.
const checkTimeout = 10 * time.Second

// LatestSource resolves the newest published release version.
// bundle.GitHubSource satisfies it.
type LatestSource interface {
	Latest(ctx context.Context) (string, error)
}

// UpdateResult is returned by CheckVersion to communicate the outcome.
type UpdateResult struct {
	// CurrentVersion is the running version (e.g. "0.2.0").
	CurrentVersion string `json:"current_version"`
	// LatestVersion is the newest release (e.g. "0.3.0"). Empty when the
	// lookup failed.
	LatestVersion string `json:"latest_version,omitempty"`
	// UpdateAvailable is true when latest > current.
	UpdateAvailable bool `json:"update_available"`
}

// CheckVersion asks src for the latest release and compares it against
// currentVersion. Lookup failures leave LatestVersion empty.
func CheckVersion(ctx context.Context, currentVersion string, src LatestSource) *UpdateResult {
	result := &UpdateResult{
		CurrentVersion: normalizeVersion(currentVersion),
	}
	if src == nil {
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	latest, err := src.Latest(ctx)
	if err != nil {
		return result
	}
	result.LatestVersion = normalizeVersion(latest)
	result.UpdateAvailable = isNewer(result.CurrentVersion, result.LatestVersion)
	return result
}

// normalizeVersion strips the leading "v" from version strings.
func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// isNewer returns true if latest is a higher version than current.
// Development builds and unparsable versions never report an update.
func isNewer(current, latest string) bool {
	if current == "" || latest == "" || current == "dev" {
		return false
	}
	c, err := semver.NewVersion(current)
	if err != nil {
		return false
	}
	l, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}
	return l.GreaterThan(c)
}
