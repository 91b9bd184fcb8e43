package handlers

import (
	"fmt"
	"html"
	"strings"

	"github.com/netresearch/cweb-go/internal/asyncdb"
	"github.com/netresearch/cweb-go/internal/asynchttp"
	"github.com/netresearch/cweb-go/internal/fanin"
	"github.com/netresearch/cweb-go/internal/httpwire"
	"github.com/netresearch/cweb-go/internal/server"
)

const (
	datahubGitHubOp = "github"
	datahubDBOp     = "db"
)

// Datahub demonstrates the fan-in aggregator (spec section 4.8): it starts
// a GitHub API fetch and a MariaDB query concurrently and renders the page
// only once both have settled, whether each one succeeded or failed.
func Datahub(cfg Config) server.HandlerFunc {
	return func(ctx *server.Context, req *httpwire.Request, resp *httpwire.Response) {
		resp.State = httpwire.Processing

		username := cfg.GitHubUsername
		if username == "" {
			username = defaultGitHubUser
		}

		gate := fanin.NewGate(func(results map[string]any, errs map[string]error) {
			ctx.RunOnDispatcher(func() {
				resp.SetBody(200, "text/html", []byte(renderDatahubPage(results, errs)))
			})
		})

		ops := []fanin.Op{
			{
				Name: datahubGitHubOp,
				Launch: func(done func(result any, err error)) {
					if ctx.HTTP == nil {
						done(nil, fmt.Errorf("datahub: no http client configured"))

						return
					}

					ctx.HTTP.Do(fetchGitHubRequest(username), func(r *asynchttp.Response) {
						if r.Err != nil {
							done(nil, r.Err)

							return
						}

						done(parseGitHubProfile(r), nil)
					})
				},
			},
		}

		if ctx.DB != nil {
			ops = append(ops, fanin.Op{
				Name: datahubDBOp,
				Launch: func(done func(result any, err error)) {
					ctx.DB.Exec(asyncdb.Query{SQL: "SELECT 1"}, func(r *asyncdb.Result, err error) {
						if err != nil {
							done(nil, err)

							return
						}

						done(r, nil)
					})
				},
			})
		}

		gate.Start(ops...)
	}
}

func renderDatahubPage(results map[string]any, errs map[string]error) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html><html><body><h1>Data Hub</h1>")
	b.WriteString("<section><h2>GitHub Profile</h2>")

	if v, ok := results[datahubGitHubOp]; ok {
		p := v.(githubProfile)
		fmt.Fprintf(&b, "<p><strong>Login:</strong> %s</p>", html.EscapeString(p.Login))
		fmt.Fprintf(&b, "<p><strong>Public repos:</strong> %d</p>", p.PublicRepos)
		fmt.Fprintf(&b, "<p><strong>Followers:</strong> %d, <strong>Following:</strong> %d</p>", p.Followers, p.Following)
	} else if err, ok := errs[datahubGitHubOp]; ok {
		fmt.Fprintf(&b, "<p class=\"error\">%s</p>", html.EscapeString(err.Error()))
	} else {
		b.WriteString("<p class=\"error\">Fetch in progress</p>")
	}

	b.WriteString("</section><section><h2>MariaDB Query</h2>")

	if v, ok := results[datahubDBOp]; ok {
		res := v.(*asyncdb.Result)
		renderDBResult(&b, res)
	} else if err, ok := errs[datahubDBOp]; ok {
		fmt.Fprintf(&b, "<p class=\"error\">%s</p>", html.EscapeString(err.Error()))
	} else {
		b.WriteString("<p class=\"error\">Waiting for database response</p>")
	}

	b.WriteString("</section></body></html>")

	return b.String()
}

func renderDBResult(b *strings.Builder, res *asyncdb.Result) {
	if len(res.Columns) == 0 {
		fmt.Fprintf(b, "<p>Query executed successfully (no result set). Affected rows: %d</p>", res.AffectedRows)

		return
	}

	b.WriteString("<table border=\"1\" cellpadding=\"6\" cellspacing=\"0\"><thead><tr>")
	for _, col := range res.Columns {
		fmt.Fprintf(b, "<th>%s</th>", html.EscapeString(col))
	}
	b.WriteString("</tr></thead><tbody>")

	for _, row := range res.Rows {
		b.WriteString("<tr>")
		for _, cell := range row.Cells {
			fmt.Fprintf(b, "<td>%s</td>", html.EscapeString(string(cell)))
		}
		b.WriteString("</tr>")
	}

	if len(res.Rows) == 0 {
		fmt.Fprintf(b, "<tr><td colspan=\"%d\"><em>No rows returned.</em></td></tr>", len(res.Columns))
	}

	b.WriteString("</tbody></table>")
}
