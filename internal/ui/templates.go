package ui

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"
)

// Template functions available in all templates.
var templateFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"classBadge": func(class string) string {
		if class == "CommandLineTool" || class == "ExpressionTool" {
			return "Tool"
		}
		return "Workflow"
	},
	"classBadgeColor": func(class string) string {
		if class == "CommandLineTool" || class == "ExpressionTool" {
			return "bg-purple-100 text-purple-800"
		}
		return "bg-indigo-100 text-indigo-800"
	},
	"shortHash": func(h string) string {
		if len(h) > 12 {
			return h[:12]
		}
		return h
	},
}

// renderTemplate renders a template with the given data.
func renderTemplate(w io.Writer, name string, data map[string]any) error {
	content, ok := templates[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}
	layout, ok := templates["layout"]
	if !ok {
		return fmt.Errorf("layout template not found")
	}

	tmpl, err := template.New("layout").Funcs(templateFuncs).Parse(layout)
	if err != nil {
		return fmt.Errorf("parse layout: %w", err)
	}
	if _, err = tmpl.New("content").Parse(content); err != nil {
		return fmt.Errorf("parse content: %w", err)
	}

	for compName, compContent := range templates {
		if strings.HasPrefix(compName, "components/") {
			if _, err = tmpl.New(strings.TrimPrefix(compName, "components/")).Parse(compContent); err != nil {
				return fmt.Errorf("parse component %s: %w", compName, err)
			}
		}
	}

	return tmpl.Execute(w, data)
}

var templates = map[string]string{
	"layout": `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-50 min-h-screen">
    <nav class="bg-white shadow-sm border-b">
        <div class="max-w-7xl mx-auto px-4 sm:px-6 lg:px-8">
            <div class="flex h-16">
                <a href="/ui/" class="flex items-center px-2 py-2 text-xl font-bold text-indigo-600">cwlviz</a>
                <div class="ml-6 flex space-x-8">
                    <a href="/ui/" class="text-gray-500 hover:text-gray-700 inline-flex items-center px-1 pt-1 text-sm font-medium">Graphs</a>
                    <a href="/ui/new" class="text-gray-500 hover:text-gray-700 inline-flex items-center px-1 pt-1 text-sm font-medium">New graph</a>
                </div>
            </div>
        </div>
    </nav>
    <main class="max-w-7xl mx-auto py-6 px-4 sm:px-6 lg:px-8">
        {{template "content" .}}
    </main>
</body>
</html>`,

	"components/class-badge": `<span class="inline-flex items-center px-2 py-0.5 rounded text-xs font-medium {{classBadgeColor .}}">{{classBadge .}}</span>`,

	"graphs/list": `<div class="flex justify-between items-center mb-6">
    <h1 class="text-2xl font-semibold text-gray-900">Graphs</h1>
    <form method="get" action="/ui/" class="flex space-x-2">
        <input type="text" name="name" value="{{.Name}}" placeholder="Filter by name" class="border rounded px-2 py-1 text-sm">
        <button type="submit" class="px-3 py-1 text-sm bg-white border rounded">Filter</button>
    </form>
</div>
{{if .Graphs}}
<table class="min-w-full bg-white shadow rounded">
    <thead class="bg-gray-50">
        <tr>
            <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Name</th>
            <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Class</th>
            <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Nodes</th>
            <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Arrows</th>
            <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Created</th>
        </tr>
    </thead>
    <tbody class="divide-y divide-gray-200">
        {{range .Graphs}}
        <tr>
            <td class="px-4 py-2"><a href="/ui/graphs/{{.ID}}" class="text-indigo-600 hover:underline">{{.Name}}</a></td>
            <td class="px-4 py-2">{{template "class-badge" .Class}}</td>
            <td class="px-4 py-2 text-sm">{{.NodeCount}}</td>
            <td class="px-4 py-2 text-sm">{{.ArrowCount}}</td>
            <td class="px-4 py-2 text-sm text-gray-500">{{formatTime .CreatedAt}}</td>
        </tr>
        {{end}}
    </tbody>
</table>
<div class="flex justify-between items-center mt-4 text-sm text-gray-600">
    <span>{{.Pagination.From}}-{{.Pagination.To}} of {{.Pagination.Total}}</span>
    <span class="space-x-4">
        {{if .Pagination.HasPrev}}<a href="/ui/?offset={{.Pagination.Prev}}&name={{.Pagination.NameArg}}">Previous</a>{{end}}
        {{if .Pagination.HasNext}}<a href="/ui/?offset={{.Pagination.Next}}&name={{.Pagination.NameArg}}">Next</a>{{end}}
    </span>
</div>
{{else}}
<p class="text-gray-500">No graphs yet. <a href="/ui/new" class="text-indigo-600">Render one.</a></p>
{{end}}`,

	"graphs/detail": `{{with .Graph}}
<div class="flex justify-between items-center mb-6">
    <div>
        <h1 class="text-2xl font-semibold text-gray-900">{{.Name}} {{template "class-badge" .Class}}</h1>
        <p class="text-sm text-gray-500">{{.ID}} &middot; CWL {{.CWLVersion}} &middot; hash {{shortHash .ContentHash}}</p>
    </div>
    <div class="flex space-x-2">
        <a href="/api/v1/graphs/{{.ID}}/dot" class="px-3 py-1 text-sm bg-white border rounded">Download DOT</a>
        <form method="post" action="/ui/graphs/{{.ID}}/delete">
            <button type="submit" class="px-3 py-1 text-sm text-red-700 bg-white border border-red-300 rounded">Delete</button>
        </form>
    </div>
</div>
<dl class="grid grid-cols-4 gap-4 mb-6 text-sm">
    <div><dt class="text-gray-500">Direction</dt><dd>{{.RankDir}}</dd></div>
    <div><dt class="text-gray-500">File nodes</dt><dd>{{if .FileNodes}}yes{{else}}no{{end}}</dd></div>
    <div><dt class="text-gray-500">Nodes</dt><dd>{{.NodeCount}}</dd></div>
    <div><dt class="text-gray-500">Arrows</dt><dd>{{.ArrowCount}}</dd></div>
</dl>
{{if .Warnings}}
<div class="mb-6 p-4 bg-yellow-50 border border-yellow-200 rounded">
    <h2 class="font-medium text-yellow-800 mb-2">Warnings</h2>
    <ul class="text-sm text-yellow-800 list-disc ml-5">
        {{range .Warnings}}<li>{{.}}</li>{{end}}
    </ul>
</div>
{{end}}
{{if .StepOrder}}
<div class="mb-6">
    <h2 class="font-medium text-gray-900 mb-2">Step order</h2>
    <ol class="text-sm list-decimal ml-5">
        {{range .StepOrder}}<li><code>{{.}}</code></li>{{end}}
    </ol>
</div>
{{end}}
<h2 class="font-medium text-gray-900 mb-2">DOT</h2>
<pre class="bg-white border rounded p-4 text-xs overflow-x-auto">{{.DOT}}</pre>
{{end}}`,

	"graphs/new": `<h1 class="text-2xl font-semibold text-gray-900 mb-6">New graph</h1>
{{with .Form}}
{{if .Error}}
<div class="mb-6 p-4 bg-red-50 border border-red-200 rounded text-sm text-red-800">
    <p>{{.Error}}</p>
    {{if .Details}}
    <ul class="list-disc ml-5 mt-2">
        {{range .Details}}<li><code>{{.Field}}</code>: {{.Message}}</li>{{end}}
    </ul>
    {{end}}
</div>
{{end}}
<form method="post" action="/ui/new" class="space-y-4">
    <textarea name="cwl" rows="24" class="w-full font-mono text-xs border rounded p-2" placeholder="Paste a CWL workflow, tool or packed $graph document">{{.CWL}}</textarea>
    <div class="flex items-center space-x-6 text-sm">
        <label>Direction
            <select name="rankdir" class="border rounded ml-1">
                {{$current := .RankDir}}
                {{range $.Directions}}<option value="{{.}}"{{if eq . $current}} selected{{end}}>{{.}}</option>{{end}}
            </select>
        </label>
        <label><input type="checkbox" name="file_nodes" value="1"{{if .FileNodes}} checked{{end}}> File nodes</label>
        <label><input type="checkbox" name="validate" value="1"{{if .Validate}} checked{{end}}> Validate</label>
        <button type="submit" class="px-4 py-2 bg-indigo-600 text-white rounded">Render</button>
    </div>
</form>
{{end}}`,

	"error": `<div class="text-center py-12">
    <h1 class="text-2xl font-semibold text-gray-900 mb-2">{{.Message}}</h1>
    <a href="/ui/" class="text-indigo-600">Back to graphs</a>
</div>`,
}
