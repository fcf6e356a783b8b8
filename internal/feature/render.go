package feature

import (
	"strconv"
	"strings"
	"time"

	"github.com/HendryAvila/speckit/internal/artifact"
)

// Values fill the placeholders of an artifact template.
type Values struct {
	FeatureID   int
	Date        time.Time
	Branch      string
	Name        string
	Description string
}

// Render substitutes [FEATURE_ID], [DATE], [BRANCH], [FEATURE NAME] and
// [DESCRIPTION]. Other bracketed text is guidance for the author and is
// left alone.
func Render(tmpl []byte, v Values) []byte {
	r := strings.NewReplacer(
		"[FEATURE_ID]", strconv.Itoa(v.FeatureID),
		"[DATE]", v.Date.Format(artifact.DateLayout),
		"[BRANCH]", v.Branch,
		"[FEATURE NAME]", v.Name,
		"[DESCRIPTION]", v.Description,
	)
	return []byte(r.Replace(string(tmpl)))
}

const maxSlugLen = 50

// Slugify converts a description into a folder-safe slug.
// Example: "Add OAuth2 login!" -> "add-oauth2-login"
//
// Only ASCII letters and digits survive; spaces, underscores and hyphens
// collapse to one hyphen. Slugs longer than 50 characters are cut at a
// word boundary when one exists past the midpoint. Empty input yields
// "feature".
func Slugify(description string) string {
	s := strings.ToLower(strings.TrimSpace(description))

	var b strings.Builder
	prevHyphen := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			prevHyphen = false
		case r == ' ' || r == '_' || r == '-' || r == '\t' || r == '\n':
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "feature"
	}
	if len(slug) <= maxSlugLen {
		return slug
	}

	truncated := slug[:maxSlugLen]
	if lastHyphen := strings.LastIndex(truncated, "-"); lastHyphen > maxSlugLen/2 {
		truncated = truncated[:lastHyphen]
	}
	return strings.TrimRight(truncated, "-")
}
