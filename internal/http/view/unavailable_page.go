package view

import (
	"bytes"
	"html/template"
)

// UnavailablePageData provides the dynamic fields of the unavailable-link page.
type UnavailablePageData struct {
	Title   string
	Code    string
	Message string
	HomeURL string
}

var unavailablePageTmpl = template.Must(template.New("unavailable_page").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<meta name="robots" content="noindex" />
	<title>{{.Title}}</title>
	<style>
		:root {
			--bg: #090a0f;
			--card: rgba(255, 255, 255, 0.05);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e7ecff;
			--muted: #a1acc5;
			--accent: #7dd3fc;
			--accent-strong: #38bdf8;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		* { box-sizing: border-box; }
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: radial-gradient(circle at 20% 20%, #111827, #030712 60%);
			color: var(--text);
		}
		.card {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 18px;
			padding: 32px;
			width: min(520px, 92vw);
			box-shadow: 0 45px 100px rgba(0,0,0,0.35);
			backdrop-filter: blur(18px);
		}
		h1 {
			font-size: 1.5rem;
			margin-bottom: 6px;
		}
		p {
			color: var(--muted);
			margin-top: 0;
		}
		.code {
			margin: 24px 0;
			padding: 18px;
			border-radius: 14px;
			background: rgba(125, 211, 252, 0.07);
			border: 1px solid rgba(125, 211, 252, 0.25);
			word-break: break-all;
			font-family: ui-monospace, SFMono-Regular, Menlo, monospace;
		}
		a.button {
			display: inline-flex;
			align-items: center;
			justify-content: center;
			padding: 0 28px;
			height: 48px;
			border-radius: 999px;
			background: linear-gradient(120deg, var(--accent), var(--accent-strong));
			color: #050708;
			font-weight: 600;
			text-decoration: none;
		}
	</style>
</head>
<body>
	<div class="card">
		<h1>{{.Title}}</h1>
		<p>{{.Message}}</p>
		{{if .Code}}<div class="code">/{{.Code}}</div>{{end}}
		{{if .HomeURL}}<a class="button" href="{{.HomeURL}}">Create your own link</a>{{end}}
	</div>
</body>
</html>
`))

// RenderUnavailablePage expands the unavailable-link template.
func RenderUnavailablePage(data UnavailablePageData) (string, error) {
	if data.Title == "" {
		data.Title = "Link unavailable"
	}
	var buf bytes.Buffer
	if err := unavailablePageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
