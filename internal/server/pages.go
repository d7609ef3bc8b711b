package server

import (
	"html/template"
	"log"
	"net/http"
	"time"
)

// The resolution page is a single static template; every operator-supplied
// string goes through html/template's contextual escaping so a hostile tool
// message cannot inject markup into the operator's browser.
var actionPageTmpl = template.Must(template.New("action").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} — claude-notify</title>
<style>
  body { font-family: -apple-system, sans-serif; max-width: 480px; margin: 2rem auto; padding: 0 1rem; background: #111; color: #eee; }
  .card { background: #1c1c1e; border-radius: 12px; padding: 1.25rem; }
  .kind { font-size: 1.3rem; font-weight: 600; }
  .project { color: #8e8e93; margin: 0.25rem 0 1rem; }
  .message { white-space: pre-wrap; background: #2c2c2e; border-radius: 8px; padding: 0.75rem; margin-bottom: 1rem; }
  .row { display: flex; gap: 0.5rem; }
  button { flex: 1; font-size: 1.1rem; padding: 0.9rem; border: 0; border-radius: 8px; color: #fff; }
  .approve { background: #30a14e; }
  .deny { background: #d73a49; }
  .send { background: #0a84ff; margin-top: 0.5rem; width: 100%; }
  input[type=text] { width: 100%; box-sizing: border-box; padding: 0.7rem; border-radius: 8px; border: 1px solid #3a3a3c; background: #2c2c2e; color: #eee; margin-top: 1rem; }
  #status { margin-top: 1rem; color: #8e8e93; min-height: 1.2em; }
  .ts { color: #636366; font-size: 0.8rem; margin-top: 1rem; }
</style>
</head>
<body>
<div class="card">
  <div class="kind">{{.Icon}} {{.Title}}</div>
  <div class="project">{{.Project}}</div>
  <div class="message">{{.Message}}</div>
  <div class="row">
    <button class="approve" onclick="resolve('allow')">Approve</button>
    <button class="deny" onclick="resolve('deny')">Deny</button>
  </div>
  <input type="text" id="text" placeholder="Or type a custom reply…">
  <button class="send" onclick="respond()">Send Reply</button>
  <div id="status"></div>
  <div class="ts">requested {{.CreatedAt}}</div>
</div>
<script>
const token = {{.Token}};
function show(msg) { document.getElementById('status').textContent = msg; }
function resolve(verdict) {
  fetch('/api/resolve?token=' + encodeURIComponent(token) + '&verdict=' + verdict, {method: 'POST'})
    .then(r => r.json())
    .then(d => show(d.ok ? (d.already ? 'Already handled: ' + d.verdict : 'Sent: ' + d.verdict) : d.error))
    .catch(() => show('request failed'));
}
function respond() {
  const text = document.getElementById('text').value;
  fetch('/api/respond', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({token: token, text: text})
  })
    .then(r => r.json())
    .then(d => show(d.ok ? 'Reply sent' : d.error))
    .catch(() => show('request failed'));
}
</script>
</body>
</html>
`))

var expiredPageTmpl = template.Must(template.New("expired").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Nothing to do — claude-notify</title>
<style>
  body { font-family: -apple-system, sans-serif; max-width: 480px; margin: 2rem auto; padding: 0 1rem; background: #111; color: #eee; text-align: center; }
  .card { background: #1c1c1e; border-radius: 12px; padding: 2rem 1.25rem; }
  h1 { font-size: 1.3rem; }
  p { color: #8e8e93; }
</style>
</head>
<body>
<div class="card">
  <h1>⌛ This link has expired</h1>
  <p>The request was already handled, timed out, or never existed. There is nothing left to decide.</p>
</div>
</body>
</html>
`))

type actionPageData struct {
	Token     string
	Icon      string
	Title     string
	Project   string
	Message   string
	CreatedAt string
}

// handleActionPage renders the resolution page for a pending token, or the
// dedicated expired page (410) when there is nothing left to decide.
// Rendering never consumes the token; only an explicit resolution does.
func (s *Server) handleActionPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	rec, ok := s.store.PeekAction(token)
	if !ok {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusGone)
		if err := expiredPageTmpl.Execute(w, nil); err != nil {
			log.Printf("server: failed to render expired page: %v", err)
		}
		return
	}

	data := actionPageData{
		Token:     rec.Token,
		Icon:      rec.Kind.Icon(),
		Title:     rec.Kind.Label(),
		Project:   rec.Project,
		Message:   rec.Message,
		CreatedAt: rec.CreatedAt.Format(time.RFC1123),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := actionPageTmpl.Execute(w, data); err != nil {
		log.Printf("server: failed to render action page: %v", err)
	}
}
