package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wowplug/wowplug/pkg/errors"
	"github.com/wowplug/wowplug/pkg/logging"
	"github.com/wowplug/wowplug/pkg/types"
)

const githubAPIBase = "https://api.github.com/repos"

// GithubProvider serves the addons bundled in one GitHub repository
// under a fixed path (for example `Interface/AddOns` of a UI
// distribution repo).
type GithubProvider struct {
	repo      string
	addonPath string
	client    *http.Client
	baseURL   string
	logger    zerolog.Logger
}

// NewGithubProvider creates a provider for repo (owner/name) serving
// addons below addonPath.
func NewGithubProvider(repo, addonPath string, client *http.Client) *GithubProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &GithubProvider{
		repo:      strings.Trim(repo, "/"),
		addonPath: strings.Trim(addonPath, "/"),
		client:    client,
		baseURL:   githubAPIBase,
		logger:    logging.GetLogger("github"),
	}
}

// Name implements Provider.
func (p *GithubProvider) Name() string {
	return "github:" + p.repo
}

// Entries lists the addon folders under the repository's addon path via
// the contents API. The candidate source is the repository zipball; the
// fetcher locates the addon folder inside it.
func (p *GithubProvider) Entries(ctx context.Context) ([]types.Candidate, error) {
	url := fmt.Sprintf("%s/%s/contents/%s", p.baseURL, p.repo, p.addonPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInternal, "build request for %s", url)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrNetwork, "list %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrNetwork, "list %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrNetwork, "read listing of %s", url)
	}

	var contents []struct {
		Name string `json:"name"`
		Type string `json:"type"`
		SHA  string `json:"sha"`
	}
	if err := json.Unmarshal(body, &contents); err != nil {
		return nil, errors.Wrapf(err, errors.ErrNetwork, "decode listing of %s", url)
	}

	zipball := fmt.Sprintf("%s/%s/zipball", p.baseURL, p.repo)
	var cands []types.Candidate
	for _, c := range contents {
		if c.Type != "dir" {
			continue
		}
		cands = append(cands, types.Candidate{
			Name:    c.Name,
			Source:  zipball,
			Version: c.SHA,
		})
	}

	p.logger.Debug().Str("repo", p.repo).Int("addons", len(cands)).Msg("Listed provider contents")
	return cands, nil
}
