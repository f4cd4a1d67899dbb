package mail

import (
	"html/template"
	"time"
)

var digestTemplate = template.Must(template.New("digest").Funcs(template.FuncMap{
	"inc":     func(i int) int { return i + 1 },
	"day":     func(t time.Time) string { return t.Format("Monday, January 2, 2006") },
	"instant": func(t time.Time) string { return t.Format("2006-01-02 15:04 MST") },
}).Parse(digestHTML))

const digestHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Tux Letter</title>
</head>
<body style="margin:0;padding:0;background-color:#f8fafc;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;">
<div style="max-width:800px;margin:0 auto;background-color:#ffffff;">
  <header style="background:#1e293b;color:#ffffff;padding:40px 30px;text-align:center;">
    <h1 style="margin:0;font-size:32px;font-weight:700;">🐧 Tux Letter</h1>
    <p style="margin:8px 0 0;font-size:16px;opacity:0.9;">{{day .Date}}</p>
  </header>
  <main style="padding:40px 30px;">
    <div style="background-color:#f1f5f9;border-left:4px solid #3b82f6;padding:25px;margin-bottom:40px;">
      <div style="color:#1e293b;font-size:16px;line-height:1.7;white-space:pre-line;">{{.Text}}</div>
    </div>
    <h2 style="color:#1e293b;font-size:20px;border-bottom:2px solid #e5e7eb;padding-bottom:10px;">📎 References</h2>
    <table style="width:100%;border-collapse:collapse;">
    {{- range $i, $link := .References}}
      <tr><td style="padding:8px 0;color:#555;"><strong style="color:#2563eb;">{{inc $i}}.</strong> <a href="{{$link}}" style="color:#2563eb;text-decoration:none;word-break:break-all;">{{$link}}</a></td></tr>
    {{- else}}
      <tr><td style="padding:8px 0;color:#888;font-style:italic;">No references available</td></tr>
    {{- end}}
    </table>
  </main>
  <footer style="background-color:#f8fafc;border-top:1px solid #e5e7eb;padding:20px 30px;font-size:12px;color:#64748b;">
    <div>🤖 {{.BotChallenges}} bot checks</div>
    <div>📰 {{.TotalItems}} items</div>
    {{- range .Counts}}
    <div>• {{.Items}} {{.Source}}</div>
    {{- end}}
    <div style="font-size:11px;color:#94a3b8;margin-top:8px;">{{instant .Date}}</div>
  </footer>
</div>
</body>
</html>
`
