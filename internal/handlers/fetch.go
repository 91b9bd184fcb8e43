package handlers

import (
	"encoding/json"
	"fmt"
	"html"

	"github.com/rs/zerolog/log"

	"github.com/netresearch/cweb-go/internal/asynchttp"
	"github.com/netresearch/cweb-go/internal/httpwire"
	"github.com/netresearch/cweb-go/internal/server"
)

type githubProfile struct {
	Login       string `json:"login"`
	ID          int    `json:"id"`
	AvatarURL   string `json:"avatar_url"`
	HTMLURL     string `json:"html_url"`
	Type        string `json:"type"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
}

// defaultGitHubUser is used when no GITHUB_USERNAME is configured, mirroring
// the original's octocat fallback.
const defaultGitHubUser = "octocat"

// Fetch demonstrates the async HTTP client: it issues one outbound GitHub
// API request and leaves the response in Processing until the completion
// callback fires, at which point the pending-response watch picks it up
// on the next watchdog tick.
func Fetch(cfg Config) server.HandlerFunc {
	return func(ctx *server.Context, req *httpwire.Request, resp *httpwire.Response) {
		if req.Method == "POST" {
			resp.SetBody(403, "text/plain", []byte("Method not allowed"))

			return
		}

		if ctx.HTTP == nil {
			resp.SetBody(500, "text/plain", []byte("Internal server error"))

			return
		}

		username := cfg.GitHubUsername
		if username == "" {
			username = defaultGitHubUser
		}

		resp.State = httpwire.Processing

		ctx.HTTP.Do(fetchGitHubRequest(username), func(httpResp *asynchttp.Response) {
			profile := parseGitHubProfile(httpResp)

			ctx.RunOnDispatcher(func() {
				resp.SetBody(200, "text/html", []byte(renderFetchPage(profile)))
			})
		})
	}
}

func fetchGitHubRequest(username string) asynchttp.Request {
	return asynchttp.Request{
		Method: "GET",
		URL:    "https://api.github.com/users/" + username,
		Headers: map[string]string{
			"Accept":     "application/vnd.github.v3+json",
			"User-Agent": "cweb-go/1.0",
		},
	}
}

func parseGitHubProfile(resp *asynchttp.Response) githubProfile {
	fallback := githubProfile{
		Login: "octocat", ID: 583231,
		AvatarURL:   "https://github.com/images/error/octocat_happy.gif",
		HTMLURL:     "https://github.com/octocat",
		Type:        "User",
		PublicRepos: 8, Followers: 4000, Following: 9,
	}

	if resp.Err != nil || resp.Status != 200 {
		log.Debug().Err(resp.Err).Int("status", resp.Status).Msg("handlers: github fetch failed, using fallback profile")

		return fallback
	}

	var profile githubProfile
	if err := json.Unmarshal(resp.Body, &profile); err != nil {
		log.Debug().Err(err).Msg("handlers: github response decode failed, using fallback profile")

		return fallback
	}

	return profile
}

func renderFetchPage(p githubProfile) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html><body>
<h1>GitHub Profile</h1>
<p><strong>Login:</strong> %s</p>
<p><strong>Public repos:</strong> %d</p>
<p><strong>Followers:</strong> %d, <strong>Following:</strong> %d</p>
<p><img src="%s" alt="avatar" width="120" height="120"></p>
<p><a href="%s" target="_blank">View profile</a></p>
</body></html>`,
		html.EscapeString(p.Login), p.PublicRepos, p.Followers, p.Following,
		html.EscapeString(p.AvatarURL), html.EscapeString(p.HTMLURL))
}
