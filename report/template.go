package report

import "html/template"

// The page is executed in three parts so rows can be streamed one at a time.
var page = template.Must(template.New("report").Parse(`
{{- define "head" -}}
<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Window Log</title>
<link rel="stylesheet" type="text/css" href="https://cdn.datatables.net/v/dt/jq-3.3.1/dt-1.11.5/datatables.min.css"/>
<link rel="stylesheet" href="https://maxcdn.bootstrapcdn.com/bootstrap/4.5.2/css/bootstrap.min.css"/>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/bootstrap-dark@1.1.1/bootstrap-dark.min.css"/>
<style>
.table-dark.table-striped>tbody>tr:nth-of-type(even) { background-color: rgba(255,255,255,.025); }
body { margin: 20px; }
</style>
</head>
<body>
<table id="windowLogTable" class="table-dark table-striped table-bordered table-hover">
<thead>
<tr>
<th>Date</th>
<th>Time</th>
<th>Duration (m:s)</th>
<th>Program</th>
<th>Window Title</th>
</tr>
</thead>
<tbody>
{{end}}

{{- define "row" -}}
<tr><td>{{.Date}}</td><td>{{.Time}}</td><td>{{.Duration}}</td><td>{{.Program}}</td><td>{{.Title}}</td></tr>
{{end}}

{{- define "tail" -}}
</tbody>
</table>
<div id="summaryTableContainer">
{{- range .}}
<h3>{{.Heading}}</h3>
<table class="table-dark table-striped table-bordered">
<thead><tr><th>{{.Label}}</th><th>Duration (s)</th></tr></thead>
<tbody>
{{- range .Items}}
<tr><td>{{.Name}}</td><td>{{.Seconds}}</td></tr>
{{- end}}
</tbody>
</table>
{{- end}}
</div>
<script type="text/javascript" src="https://code.jquery.com/jquery-3.6.0.min.js"></script>
<script type="text/javascript" src="https://cdn.datatables.net/v/dt/jq-3.3.1/dt-1.11.5/datatables.min.js"></script>
<script>
$(document).ready(function () {
    $('#windowLogTable').DataTable();
});
</script>
<script src="https://cdnjs.cloudflare.com/ajax/libs/popper.js/1.16.0/umd/popper.min.js"></script>
<script src="https://maxcdn.bootstrapcdn.com/bootstrap/4.5.2/js/bootstrap.min.js"></script>
</body>
</html>
{{end}}`))
