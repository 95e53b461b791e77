package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/BSMSciTech/guardian-pi-door/internal/status"
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
	"seconds": func(d time.Duration) int {
		return int(d.Round(time.Second).Seconds())
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Door Guardian</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.normal { color: green; font-weight: bold; }
.countdown { color: orange; font-weight: bold; }
.alarmed { color: red; font-weight: bold; }
.open { color: red; }
.closed { color: green; }
.connected { color: green; }
.disconnected { color: red; }
button { font-family: monospace; padding: 4px 12px; margin-right: 8px; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Door Guardian<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>State</h2>
<table>
<tr><th>Door</th><td id="door" class="{{if eq .Door "OPEN"}}open{{else}}closed{{end}}">{{.Door}}</td></tr>
<tr><th>Alarm</th><td id="alarm" class="{{if eq .Mode "ALARMED"}}alarmed{{else if eq .Mode "COUNTDOWN"}}countdown{{else}}normal{{end}}">{{.Mode}}</td></tr>
<tr><th>Countdown</th><td id="remaining">{{if eq .Mode "COUNTDOWN"}}{{seconds .Remaining}}s{{else}}-{{end}}</td></tr>
<tr><th>Access allowed now</th><td id="access">{{if .AccessAllowed}}yes{{else}}no{{end}}</td></tr>
</table>

<p>
<button onclick="post('/api/reset')">Reset alarm</button>
<button onclick="post('/api/test-alarm')">Test alarm</button>
</p>

<h2>Schedule</h2>
<table>
<tr><th>Weekday</th><td>{{range .Schedule.Weekday}}{{.Start}}-{{.End}} {{end}}</td></tr>
<tr><th>Weekend</th><td>{{range .Schedule.Weekend}}{{.Start}}-{{.End}} {{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Broker}}{{.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Timer duration</th><td>{{seconds .Config.TimerDuration}}s</td></tr>
<tr><th>Instant alarm</th><td>{{if .Config.InstantAlarm}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>Sensor</th><td>{{if .Simulation}}simulated{{else}}hardware{{end}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
</table>

<p><a href="/api/status">JSON</a> &middot; <a href="/api/events">Events</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");

  function post(path) {
    fetch(path, { method: "POST", headers: { "Content-Type": "application/json" }, body: "{}" });
  }
  window.post = post;

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function apply(st) {
    var door = document.getElementById("door");
    door.textContent = st.door;
    door.className = st.door === "OPEN" ? "open" : "closed";

    var alarm = document.getElementById("alarm");
    alarm.textContent = st.alarm;
    alarm.className = st.alarm === "ALARMED" ? "alarmed" : st.alarm === "COUNTDOWN" ? "countdown" : "normal";

    var rem = document.getElementById("remaining");
    rem.textContent = st.remaining_countdown_seconds != null ? st.remaining_countdown_seconds + "s" : "-";

    document.getElementById("access").textContent = st.access_allowed_now ? "yes" : "no";
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");

    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "disconnected");
      setTimeout(connect, 3000);
    };
    ws.onmessage = function(e) {
      try { apply(JSON.parse(e.data).status); } catch (err) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// The state fields go in as plain strings so the template's eq
	// comparisons work without casts.
	data := struct {
		status.Snapshot
		Door          string
		Mode          string
		Remaining     time.Duration
		AccessAllowed bool
		Uptime        time.Duration
	}{
		Snapshot:      snap,
		Door:          string(snap.Door),
		Mode:          string(snap.Mode),
		Remaining:     snap.Remaining(),
		AccessAllowed: snap.AccessAllowed(),
		Uptime:        snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
