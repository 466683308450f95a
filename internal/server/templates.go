package server

import "html/template"

var pages = template.Must(template.New("index").Parse(indexHTML))

func init() {
	template.Must(pages.New("result").Parse(resultHTML))
}

const indexHTML = `<!DOCTYPE html>
<html lang="vi">
<head><meta charset="utf-8"><title>Commission Report</title></head>
<body>
<h1>Tổng hợp hoa hồng</h1>
<form action="/upload" method="post" enctype="multipart/form-data">
  <input type="file" name="file" accept=".csv,.xlsx" required>
  <button type="submit">Upload</button>
</form>
</body>
</html>
`

const resultHTML = `<!DOCTYPE html>
<html lang="vi">
<head><meta charset="utf-8"><title>Commission Report</title></head>
<body>
<h1>Tổng hợp hoa hồng</h1>
<p>{{.RowsRead}} rows, {{len .Rows}} groups{{if .Skipped}}, {{.Skipped}} skipped{{end}}.</p>
<table border="1" cellpadding="4">
  <tr><th>{{.Labels.PrimaryKey}}</th><th>{{.Labels.TotalOrders}}</th><th>{{.Labels.TotalAmount}}</th></tr>
  {{range .Rows}}<tr><td>{{.Key}}</td><td>{{.Orders}}</td><td>{{.Total}}</td></tr>
  {{end}}<tr><th>{{.Labels.GrandTotal}}</th><th>{{.GrandOrders}}</th><th>{{.GrandTotal}}</th></tr>
</table>
<p><a href="/download?job={{.JobID}}">Download {{.FileName}}</a></p>
<p><a href="/">Upload another file</a></p>
</body>
</html>
`

type resultRow struct {
	Key    string
	Orders int
	Total  string
}

type resultPage struct {
	JobID       string
	FileName    string
	RowsRead    int
	Skipped     int
	Rows        []resultRow
	GrandOrders int
	GrandTotal  string
	Labels      labelSet
}

type labelSet struct {
	PrimaryKey  string
	TotalOrders string
	TotalAmount string
	GrandTotal  string
}
