package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleIndex serves a single page that lists sessions and runs and can
// follow a JSONL log live.
func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Agent Arena Results</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
.container { max-width: 1200px; margin: 0 auto; background: white; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); overflow: hidden; }
.header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 20px; text-align: center; }
.header h1 { margin: 0; }
.section { padding: 20px; border-bottom: 1px solid #eee; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid #eee; }
#tail { background: #111; color: #9f9; font-family: monospace; font-size: 12px; height: 300px; overflow-y: auto; padding: 8px; white-space: pre-wrap; }
</style>
</head>
<body>
<div class="container">
<div class="header"><h1>Agent Arena Results</h1></div>
<div class="section"><h2>Tournament sessions</h2><table id="sessions"><tr><th>Session</th><th>Format</th><th>Champion</th><th>Started</th></tr></table></div>
<div class="section"><h2>Demo runs</h2><table id="runs"><tr><th>Run</th><th>Kind</th><th>Modified</th><th></th></tr></table></div>
<div class="section"><h2>Live log</h2><div id="tailing">Pick a run to follow.</div><div id="tail"></div></div>
</div>
<script>
function cell(tr, html) { const td = document.createElement('td'); td.innerHTML = html; tr.appendChild(td); }
function esc(s) { return String(s ?? '').replace(/[&<>"]/g, c => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;'}[c])); }
async function load() {
  const sessions = await (await fetch('/api/sessions')).json();
  const st = document.getElementById('sessions');
  for (const s of sessions) {
    const tr = document.createElement('tr');
    cell(tr, '<a href="/api/html/sessions/' + encodeURIComponent(s.name) + '">' + esc(s.name) + '</a>');
    cell(tr, esc(s.format)); cell(tr, esc(s.champion)); cell(tr, esc(s.start_time));
    st.appendChild(tr);
  }
  const runs = await (await fetch('/api/runs')).json();
  const rt = document.getElementById('runs');
  for (const r of runs) {
    const tr = document.createElement('tr');
    cell(tr, '<a href="/api/html/outputs/' + r.path + '">' + esc(r.name) + '</a>');
    cell(tr, esc(r.kind)); cell(tr, esc(r.modified));
    const log = r.path.endsWith('.jsonl') ? r.path : r.path + '/transcript.jsonl';
    cell(tr, '<button onclick="follow(\'' + esc(log) + '\')">follow</button>');
    rt.appendChild(tr);
  }
}
let ws;
function follow(path) {
  if (ws) ws.close();
  const out = document.getElementById('tail');
  out.textContent = '';
  document.getElementById('tailing').textContent = 'Following ' + path;
  const proto = location.protocol === 'https:' ? 'wss' : 'ws';
  ws = new WebSocket(proto + '://' + location.host + '/api/tail/outputs/' + path);
  ws.onmessage = ev => { out.textContent += ev.data + '\n'; out.scrollTop = out.scrollHeight; };
}
load();
</script>
</body>
</html>`
