package monitor

import (
	"github.com/gin-gonic/gin"
)

// RegisterMonitorPage serves a small self-contained status page at /monitor.
func RegisterMonitorPage(router *gin.Engine) {
	router.GET("/monitor", func(c *gin.Context) {
		c.Data(200, "text/html; charset=utf-8", []byte(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>Claims API Monitor</title>
  <style>
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body {
      background: linear-gradient(135deg, #0f0f0f 0%, #1a1a2e 100%);
      color: #e0e0e0;
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
      min-height: 100vh;
      padding: 20px;
    }
    .container { max-width: 900px; margin: 0 auto; }
    h1 {
      font-size: 2rem;
      background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
      -webkit-background-clip: text;
      -webkit-text-fill-color: transparent;
      margin-bottom: 2rem;
    }
    .status-card {
      background: rgba(255, 255, 255, 0.05);
      border: 1px solid rgba(255, 255, 255, 0.1);
      border-radius: 16px;
      padding: 1.5rem;
      margin-bottom: 1.5rem;
    }
    .status-card h2 { font-size: 1.1rem; margin-bottom: 0.75rem; color: #00d4aa; }
    pre { color: #aab; font-size: 0.9rem; white-space: pre-wrap; }
  </style>
</head>
<body>
  <div class="container">
    <h1>Claims API Monitor</h1>
    <div class="status-card">
      <h2>Health</h2>
      <pre id="health">loading...</pre>
    </div>
    <div class="status-card">
      <h2>Endpoints</h2>
      <pre>POST /api/v1/claims
GET  /api/v1/claims/reference/:reference
POST /api/v1/drafts/auto-save
GET  /api/v1/drafts/get-draft
DELETE /api/v1/drafts/delete-draft
GET  /api/v1/health</pre>
    </div>
  </div>
  <script>
    async function refresh() {
      try {
        const res = await fetch('/api/v1/health');
        document.getElementById('health').textContent = JSON.stringify(await res.json(), null, 2);
      } catch (err) {
        document.getElementById('health').textContent = 'unreachable: ' + err;
      }
    }
    refresh();
    setInterval(refresh, 10000);
  </script>
</body>
</html>`))
	})
}
