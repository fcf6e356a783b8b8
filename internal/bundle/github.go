package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/HendryAvila/speckit/internal/config"
)

// Download is the raw result of fetching one version.
type Download struct {
	Version string
	Archive []byte
	// Checksum is the published hex SHA-256 of Archive, empty when the
	// release carries none.
	Checksum string
}

// Source is where bundles are published.
type Source interface {
	// Latest returns the newest published version.
	Latest(ctx context.Context) (string, error)
	// Versions lists every published version.
	Versions(ctx context.Context) ([]string, error)
	// Download fetches one version. Unknown versions yield an error
	// wrapping ErrVersionNotFound.
	Download(ctx context.Context, version string) (*Download, error)
}

// maxPages bounds release listing.
const maxPages = 5

// GitHubSource reads bundles from GitHub releases. Each release carries an
// asset named "<prefix>-<version>.tar.gz" and optionally a matching
// ".sha256" asset.
type GitHubSource struct {
	client      *github.Client
	download    *http.Client
	owner       string
	repo        string
	assetPrefix string
}

// NewGitHubSource creates a source from user settings. A token, when set,
// is sent with every API request.
func NewGitHubSource(s config.GitHubSettings, timeout time.Duration) *GitHubSource {
	hc := &http.Client{Timeout: timeout}
	if s.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, hc)
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: s.Token}))
		hc.Timeout = timeout
	}
	return &GitHubSource{
		client:      github.NewClient(hc),
		download:    hc,
		owner:       s.Owner,
		repo:        s.Repo,
		assetPrefix: s.AssetPrefix,
	}
}

// WithBaseURL points the source at another API root, such as a GitHub
// Enterprise host or a test server.
func (g *GitHubSource) WithBaseURL(raw string) (*GitHubSource, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	g.client.BaseURL = u
	return g, nil
}

// Latest implements Source.
func (g *GitHubSource) Latest(ctx context.Context) (string, error) {
	rel, _, err := g.client.Repositories.GetLatestRelease(ctx, g.owner, g.repo)
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("no releases published for %s/%s: %w", g.owner, g.repo, ErrVersionNotFound)
		}
		return "", fmt.Errorf("fetching latest release: %w", err)
	}
	return normalizeVersion(rel.GetTagName()), nil
}

// Versions implements Source.
func (g *GitHubSource) Versions(ctx context.Context) ([]string, error) {
	var out []string
	opts := &github.ListOptions{PerPage: 100}
	for page := 0; page < maxPages; page++ {
		rels, resp, err := g.client.Repositories.ListReleases(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing releases: %w", err)
		}
		for _, r := range rels {
			if r.GetDraft() {
				continue
			}
			out = append(out, normalizeVersion(r.GetTagName()))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// Download implements Source.
func (g *GitHubSource) Download(ctx context.Context, version string) (*Download, error) {
	rel, err := g.releaseByVersion(ctx, version)
	if err != nil {
		return nil, err
	}

	archive, checksum := g.pickAssets(rel, version)
	if archive == nil {
		return nil, fmt.Errorf("release %s has no template archive: %w", version, ErrVersionNotFound)
	}

	data, err := g.fetchAsset(ctx, archive.GetID())
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", archive.GetName(), err)
	}
	d := &Download{Version: version, Archive: data}

	if checksum != nil {
		sum, err := g.fetchAsset(ctx, checksum.GetID())
		if err != nil {
			return nil, fmt.Errorf("downloading %s: %w", checksum.GetName(), err)
		}
		fields := strings.Fields(string(sum))
		if len(fields) > 0 {
			d.Checksum = strings.ToLower(fields[0])
		}
	}
	return d, nil
}

// releaseByVersion tries the "v"-prefixed tag first, then the bare one.
func (g *GitHubSource) releaseByVersion(ctx context.Context, version string) (*github.RepositoryRelease, error) {
	for _, tag := range []string{"v" + version, version} {
		rel, _, err := g.client.Repositories.GetReleaseByTag(ctx, g.owner, g.repo, tag)
		if err == nil {
			return rel, nil
		}
		if !isNotFound(err) {
			return nil, fmt.Errorf("fetching release %s: %w", tag, err)
		}
	}
	return nil, fmt.Errorf("release %s: %w", version, ErrVersionNotFound)
}

func (g *GitHubSource) pickAssets(rel *github.RepositoryRelease, version string) (archive, checksum *github.ReleaseAsset) {
	want := fmt.Sprintf("%s-%s.tar.gz", g.assetPrefix, version)
	for _, a := range rel.Assets {
		if a.GetName() == want {
			archive = a
		}
	}
	if archive == nil {
		for _, a := range rel.Assets {
			if strings.HasPrefix(a.GetName(), g.assetPrefix) && strings.HasSuffix(a.GetName(), ".tar.gz") {
				archive = a
				break
			}
		}
	}
	if archive == nil {
		return nil, nil
	}
	for _, a := range rel.Assets {
		if a.GetName() == archive.GetName()+".sha256" {
			checksum = a
		}
	}
	return archive, checksum
}

func (g *GitHubSource) fetchAsset(ctx context.Context, id int64) ([]byte, error) {
	rc, _, err := g.client.Repositories.DownloadReleaseAsset(ctx, g.owner, g.repo, id, g.download)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

// normalizeVersion strips the leading "v" from tags.
func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}
