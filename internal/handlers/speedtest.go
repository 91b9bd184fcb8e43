package handlers

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/netresearch/cweb-go/internal/httpwire"
	"github.com/netresearch/cweb-go/internal/server"
)

// Speedtest dumps the debug-only speed-sample ring (spec's SpeedSample,
// section 3) as a plain-text comment block, one line per recorded
// request. Registered with requiresSession=true; it is the only sample
// route that exercises the session-issuance path.
func Speedtest(ctx *server.Context, req *httpwire.Request, resp *httpwire.Response) {
	if req.Method == "POST" {
		resp.SetBody(403, "text/plain; charset=utf-8", []byte("Method not allowed"))

		return
	}

	log.Info().Str("path", req.PathOnly()).Msg("handlers: speed benchmark")

	samples := ctx.SpeedSamples()

	var b strings.Builder

	if len(samples) == 0 {
		b.WriteString("/* No samples available */\n")
	}

	for i, s := range samples {
		fmt.Fprintf(&b, "/* Sample %d: path=%s duration=%.2fms */\n", i, s.Path, float64(s.Duration.Microseconds())/1000.0)
	}

	resp.SetBody(200, "text/plain; charset=utf-8", []byte(b.String()))
}
