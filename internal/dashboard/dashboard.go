package dashboard

import (
	"context"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/authzed/jsonschemas/internal/services/schemas"
	"github.com/authzed/jsonschemas/pkg/schemapath"
)

const rootTemplate = `
{{define "tree"}}
<ul>
	{{range .Dirs}}
	<li class="dir">{{.Name}}/{{template "tree" .}}</li>
	{{end}}
	{{range .Entries}}
	<li class="schema"><a href="{{.Link}}">{{.Name}}</a></li>
	{{end}}
</ul>
{{end}}
<html>
	<head>
		<link href="https://cdn.jsdelivr.net/npm/bootstrap@5.1.1/dist/css/bootstrap.min.css" rel="stylesheet" integrity="sha384-F3w7mX95PdgyTmZZMECAngseQB83DfGTowi0iMjiWaeVhAn4FJkqJByhZMI3AhiU" crossorigin="anonymous">
		<title>JSON Schemas</title>
		<style type="text/css">
		body {
			margin: 20px;
		}

		li.dir {
			font-weight: bold;
		}

		li.schema {
			font-weight: normal;
		}
		</style>
	</head>
	<body>
		<h1>JSON Schemas</h1>
		{{if .IsEmpty}}
		<p>
			No schemas are registered. Start the server with <code>--source name=directory</code>
			or <code>--sources-manifest</code> to serve schemas under <code>{{ .BaseURL }}</code>.
		</p>
		{{else}}
		<p>{{ .Count }} schemas served under <code>{{ .BaseURL }}</code>.</p>
		{{template "tree" .Tree}}
		{{end}}
	</body>
</html>
`

var tmpl = template.Must(template.New("root").Parse(rootTemplate))

// Index lists the schemas to render.
type Index interface {
	Index(ctx context.Context) ([]schemas.IndexEntry, error)
	BaseURL() string
}

type node struct {
	Name    string
	Entries []schemapath.Entry
	Dirs    []*node
}

func toNode(tree *schemapath.Tree) *node {
	entries, children := tree.Sorted()
	n := &node{Name: tree.Name, Entries: entries}
	for _, child := range children {
		n.Dirs = append(n.Dirs, toNode(child))
	}
	return n
}

// NewHandler returns an http.Handler rendering the registered schemas as a
// browsable tree.
func NewHandler(index Index) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entries, err := index.Index(r.Context())
		if err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("Got error when listing schemas")
			http.Error(w, "Internal Error", http.StatusInternalServerError)
			return
		}

		links := make(map[string]string, len(entries))
		paths := make([]string, 0, len(entries))
		for _, entry := range entries {
			links[entry.Path] = entry.URL
			paths = append(paths, entry.Path)
		}
		tree := schemapath.BuildTree(paths, func(p string) string { return links[p] })

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = tmpl.Execute(w, struct {
			IsEmpty bool
			Count   int
			BaseURL string
			Tree    *node
		}{
			IsEmpty: len(entries) == 0,
			Count:   len(entries),
			BaseURL: index.BaseURL(),
			Tree:    toNode(tree),
		})
		if err != nil {
			log.Ctx(r.Context()).Error().AnErr("templateError", err).Msg("Got error when rendering template")
		}
	})
}
