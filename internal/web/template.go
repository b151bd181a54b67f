package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/stair-sensor/internal/eventlog"
	"github.com/sweeney/stair-sensor/internal/status"
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
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
	"hpa": func(v float64) string {
		return fmt.Sprintf("%.2f hPa", v)
	},
	"clock": func(t time.Time) string {
		return t.UTC().Format("15:04:05")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Stair Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
#events { list-style: none; padding: 0; }
#events li { padding: 2px 0; border-bottom: 1px solid #eee; }
.stair { font-weight: bold; }
.system { color: #888; }
</style>
</head>
<body>
<h1>Stair Sensor {{.Config.Device}}<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Session</h2>
<table>
<tr><th>Running</th><td class="{{if .Session.Running}}on{{else}}off{{end}}">{{yesno .Session.Running}}</td></tr>
{{if .Session.Running}}<tr><th>Session</th><td>{{.Session.ID}}</td></tr>
<tr><th>Moving</th><td class="{{if .Session.Moving}}on{{else}}off{{end}}">{{yesno .Session.Moving}}</td></tr>
<tr><th>On stairs</th><td class="{{if .Session.OnStairs}}on{{else}}off{{end}}">{{yesno .Session.OnStairs}}</td></tr>
{{if .Session.AltitudeReady}}<tr><th>Pressure</th><td>{{hpa .Session.PressureEWMA}}</td></tr>
<tr><th>Reference</th><td>{{hpa .Session.Reference}}</td></tr>{{end}}{{end}}
</table>

<h2>Events</h2>
<ul id="events">
{{range .Events}}<li class="{{.Kind}}">{{clock .Time}} {{.Text}}</li>
{{else}}<li class="system">no events yet</li>
{{end}}</ul>

<h2>Sensors</h2>
<table>
<tr><th>Acceleration</th><td class="{{if .AccelAvailable}}connected{{else}}disconnected{{end}}">{{if .AccelAvailable}}available{{else}}unavailable{{end}}</td></tr>
<tr><th>Pressure</th><td class="{{if .PressureAvailable}}connected{{else}}disconnected{{end}}">{{if .PressureAvailable}}available{{else}}unavailable{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Stair transitions</th><td>{{.Session.Counts.StairTransitions}}</td></tr>
<tr><th>Motion starts</th><td>{{.Session.Counts.MotionStarts}}</td></tr>
<tr><th>Motion stops</th><td>{{.Session.Counts.MotionStops}}</td></tr>
<tr><th>Samples</th><td>{{.Session.Counts.AccelSamples}} accel / {{.Session.Counts.PressureSamples}} pressure</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> <a href="/events.json">Events</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var list = document.getElementById("events");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(m) {
      try {
        var e = JSON.parse(m.data);
        var li = document.createElement("li");
        li.className = e.kind;
        li.textContent = e.time.substr(11, 8) + " " + e.text;
        list.insertBefore(li, list.firstChild);
      } catch (err) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, events []eventlog.Entry) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Events []eventlog.Entry
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Events:   events,
	}
	indexTmpl.Execute(w, data)
}
