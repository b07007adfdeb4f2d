package web

import (
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"time"

	"github.com/sweeney/duty-cycler/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"ms": func(ms uint32) string {
		if ms == 0 {
			return "off"
		}
		return (time.Duration(ms) * time.Millisecond).String()
	},
	"secs": func(s uint32) string {
		return (time.Duration(s) * time.Second).String()
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Duty Cycler</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.running { color: green; font-weight: bold; }
.countdown { color: orange; font-weight: bold; }
.idle { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Duty Cycler</h1>

<h2>Motor</h2>
<table>
{{with stateOrUnknown (printf "%s" .Controller.State)}}<tr><th>State</th><td id="state" class="{{if eq . "RUNNING"}}running{{else if eq . "COUNTDOWN"}}countdown{{else if eq . "IDLE"}}idle{{else}}unknown{{end}}">{{.}}</td></tr>{{end}}
<tr><th>Motor</th><td>{{if .Controller.MotorOn}}on{{else}}off{{end}}</td></tr>
<tr><th>Next countdown in</th><td>{{secs .Controller.Countdown}}</td></tr>
{{if .Controller.RunRemainingMs}}<tr><th>Run remaining</th><td>{{ms .Controller.RunRemainingMs}}</td></tr>{{end}}
{{if .Controller.PreStartRemainingMs}}<tr><th>Starting in</th><td>{{ms .Controller.PreStartRemainingMs}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Starts</th><td>{{.Controller.Counts.Starts}} ({{.Controller.Counts.AutoStarts}} auto, {{.Controller.Counts.ManualStarts}} manual)</td></tr>
<tr><th>Stops</th><td>{{.Controller.Counts.Stops}}</td></tr>
<tr><th>Countdowns</th><td>{{.Controller.Counts.Countdowns}}</td></tr>
<tr><th>Clicks</th><td>{{.Controller.Counts.ShortClicks}} short, {{.Controller.Counts.LongClicks}} long</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}{{if .MQTTBuffered}} ({{.MQTTBuffered}} buffered){{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Boot ID</th><td>{{.BootID}}</td></tr>
<tr><th>Ticks</th><td>{{.Loop.Ticks}}</td></tr>
<tr><th>Input errors</th><td>{{.Loop.InputReadErrors}}</td></tr>
<tr><th>Pre-start delay</th><td>{{ms .Config.PreStartDelayMs}}</td></tr>
<tr><th>Restart interval</th><td>{{if eq .Config.RestartIntervalS 0}}off{{else}}{{secs .Config.RestartIntervalS}}{{end}}</td></tr>
<tr><th>Auto run</th><td>{{ms .Config.AutoRunMs}}</td></tr>
<tr><th>Manual run</th><td>{{if eq .Config.ManualRunMs 0}}until stopped{{else}}{{ms .Config.ManualRunMs}}{{end}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		slog.Debug("render status page", "err", err)
	}
}
