// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
)

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Folder}}</title>
<style>
body { font-family: -apple-system, Helvetica, sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
pre { background: #f6f6f6; padding: 1em; overflow-x: auto; }
</style>
</head>
<body>
<h1>{{.Folder}}</h1>
<p>{{len .Links}} outgoing dependencies</p>
<table>
<tr><th>From</th><th>To</th><th>Lines</th></tr>
{{- range .Links}}
<tr><td><a href="file://{{.FromFile}}">{{.From}}</a></td><td><a href="file://{{.ToFile}}">{{.To}}</a></td><td>{{.FromFile}} &rarr; {{.ToFile}}</td></tr>
{{- end}}
</table>
<h2>Graph</h2>
<pre>{{.DOT}}</pre>
</body>
</html>
`))

// WriteReport writes the folder report as a standalone HTML page with a
// link table and the DOT source of the report graph.
func WriteReport(w io.Writer, r *FolderReport) error {
	var dot bytes.Buffer
	if err := WriteDOT(&dot, r.Graph); err != nil {
		return err
	}
	data := struct {
		Folder string
		Links  []Link
		DOT    string
	}{r.Folder, r.Links, dot.String()}
	if err := reportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("rendering report for %s: %w", r.Folder, err)
	}
	return nil
}
