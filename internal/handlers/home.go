package handlers

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netresearch/cweb-go/internal/httpwire"
	"github.com/netresearch/cweb-go/internal/server"
)

// homeMenu mirrors the original page's sample menu data.
var homeMenu = []string{"Home", "About", "Services", "Portfolio", "Contact", "Blog"}

// Home demonstrates dynamic-param routing (registered with
// SetDynamicParam, so "/home?anything=1" also resolves here) and the
// template-engine collaborator contract of spec section 6: the core never
// implements the templating DSL itself, only calls a build-time-produced
// function returning owned HTML bytes. Here that function is
// renderHomePage, standing in for a templ.Component the build step would
// otherwise generate.
func Home(_ *server.Context, req *httpwire.Request, resp *httpwire.Response) {
	if req.Session != nil {
		log.Debug().Str("session_id", req.Session.ID).Msg("handlers: home page session")
	}

	body := renderHomePage(homePageData{
		Title:         "cweb-go Template Engine Demo",
		Username:      "John Developer",
		GeneratedTime: time.Now(),
		IsAdmin:       true,
		UserScore:     1337,
		StatusMessage: "<b>Welcome to cweb-go!</b>",
		MenuItems:     homeMenu,
	})

	resp.SetBody(200, "text/html", body)
}

// HomeStyles serves the stylesheet the home page links, exercising the
// same "template engine produces owned bytes" contract for CSS instead of
// HTML — and giving the post-processor's CSS minifier a real handler
// response to run against, not just static assets.
func HomeStyles(_ *server.Context, _ *httpwire.Request, resp *httpwire.Response) {
	resp.SetBody(200, "text/css", []byte(homeCSS))
}

type homePageData struct {
	Title         string
	Username      string
	GeneratedTime time.Time
	IsAdmin       bool
	UserScore     int
	StatusMessage string
	MenuItems     []string
}

func renderHomePage(d homePageData) []byte {
	var menu strings.Builder
	for _, item := range d.MenuItems {
		fmt.Fprintf(&menu, "<li><a href=\"#\">%s</a></li>", html.EscapeString(item))
	}

	return []byte(fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <title>%s</title>
  <link rel="stylesheet" href="/home/styles.css">
</head>
<body>
  <nav><ul>%s</ul></nav>
  <h1>%s</h1>
  <p>Welcome, %s (score: %d, admin: %t)</p>
  <p>%s</p>
  <footer>Generated at %s</footer>
</body>
</html>`, html.EscapeString(d.Title), menu.String(), html.EscapeString(d.Title),
		html.EscapeString(d.Username), d.UserScore, d.IsAdmin, d.StatusMessage,
		d.GeneratedTime.Format(time.RFC3339)))
}

const homeCSS = `
body {
  font-family: sans-serif;
  margin: 0;
  padding: 2rem;
  background: #fafafa;
  color: #222;
}

nav ul {
  display: flex;
  list-style: none;
  gap: 1rem;
  padding: 0;
}

nav a {
  text-decoration: none;
  color: #0366d6;
}

footer {
  margin-top: 2rem;
  font-size: 0.8rem;
  color: #666;
}
`
