package reports

import (
	"html/template"
	"strings"
)

// reportTemplate is the printable layout handed to Gotenberg for PDF
// conversion.
var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"join": func(items []string) string { return strings.Join(items, ", ") },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Report.ReportTitle}}</title>
<style>
  body { font-family: Helvetica, Arial, sans-serif; color: #1a1a2e; margin: 40px; }
  h1 { border-bottom: 3px solid #16213e; padding-bottom: 8px; }
  h2 { color: #16213e; margin-top: 32px; }
  table { width: 100%; border-collapse: collapse; margin-top: 12px; }
  th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; font-size: 13px; }
  th { background: #16213e; color: #fff; }
  .meta td:first-child { font-weight: bold; width: 220px; background: #f4f4f8; }
  .rating { font-size: 18px; font-weight: bold; }
  .rating.Critical { color: #c0392b; }
  .rating.Good { color: #27ae60; }
  .sev-Critical { color: #c0392b; font-weight: bold; }
  .sev-High { color: #e67e22; font-weight: bold; }
  .sev-Medium { color: #f1c40f; }
  .finding { page-break-inside: avoid; margin-top: 24px; border: 1px solid #ddd; padding: 16px; }
  .finding h3 { margin: 0 0 8px; }
  .muted { color: #666; font-size: 12px; }
</style>
</head>
<body>
<h1>{{.Report.ReportTitle}}</h1>
<p class="muted">Security Assessment Report &middot; {{.Asset.AssetName}}</p>

<h2>Report Overview</h2>
<table class="meta">
  <tr><td>Asset</td><td>{{.Asset.AssetName}}</td></tr>
  <tr><td>Tester</td><td>{{.Report.TesterName}}</td></tr>
  <tr><td>Test Period</td><td>{{.Report.TestStartDate.Format "02 Jan 2006"}} &ndash; {{.Report.TestEndDate.Format "02 Jan 2006"}}</td></tr>
  {{if .Report.TotalTestDuration}}<tr><td>Duration</td><td>{{.Report.TotalTestDuration}}</td></tr>{{end}}
  <tr><td>Status</td><td>{{.Report.CurrentStatus}}</td></tr>
  <tr><td>Prepared By</td><td>{{.Report.PreparedBy}}</td></tr>
  <tr><td>Reviewed By</td><td>{{.Report.ReviewedBy}}</td></tr>
  {{if .Report.FinalizedDate}}<tr><td>Finalized</td><td>{{.Report.FinalizedDate.Format "02 Jan 2006"}}</td></tr>{{end}}
  <tr><td>Overall Risk Rating</td><td class="rating {{.RatingClass}}">{{.Report.OverallRiskRating}}</td></tr>
</table>

{{if .Report.ExecutiveSummary}}
<h2>Executive Summary</h2>
<p>{{.Report.ExecutiveSummary}}</p>
{{end}}

<h2>Findings Summary</h2>
<table>
  <tr><th>Critical</th><th>High</th><th>Medium</th><th>Low</th><th>Info</th><th>Total</th></tr>
  <tr>
    <td>{{.Report.SeverityBreakdown.Critical}}</td>
    <td>{{.Report.SeverityBreakdown.High}}</td>
    <td>{{.Report.SeverityBreakdown.Medium}}</td>
    <td>{{.Report.SeverityBreakdown.Low}}</td>
    <td>{{.Report.SeverityBreakdown.Info}}</td>
    <td>{{.Report.TotalFindings}}</td>
  </tr>
</table>

{{if .Findings}}
<h2>Vulnerability Findings</h2>
{{range .Findings}}
<div class="finding">
  <h3><span class="sev-{{.Severity}}">[{{.Severity}}]</span> {{.Title}}</h3>
  <p class="muted">{{.FindingID}} &middot; {{.Category}} &middot; Status: {{.Status}} &middot; Occurrences: {{.Occurrences}}</p>
  <table class="meta">
    <tr><td>Impact</td><td>{{.Impact}}</td></tr>
    <tr><td>Likelihood</td><td>{{.Likelihood}}</td></tr>
    {{if .AffectedURLs}}<tr><td>Affected URLs</td><td>{{join .AffectedURLs}}</td></tr>{{end}}
  </table>
  {{if .Description}}<p><strong>Description.</strong> {{.Description}}</p>{{end}}
  {{if .ProofOfConcept}}<p><strong>Proof of Concept.</strong> {{.ProofOfConcept}}</p>{{end}}
  {{if .Recommendation}}<p><strong>Recommendation.</strong> {{.Recommendation}}</p>{{end}}
  {{if .References}}<p class="muted">References: {{join .References}}</p>{{end}}
  {{if .AdditionalNotes}}<p class="muted">{{.AdditionalNotes}}</p>{{end}}
</div>
{{end}}
{{end}}

</body>
</html>`))

type reportPage struct {
	Report      *Report
	Asset       *AssetContext
	Findings    []Finding
	RatingClass string
}

func renderReportHTML(r *Report, assetCtx *AssetContext, findings []Finding) (string, error) {
	page := reportPage{
		Report:      r,
		Asset:       assetCtx,
		Findings:    findings,
		RatingClass: strings.ReplaceAll(r.OverallRiskRating, " ", "-"),
	}
	var b strings.Builder
	if err := reportTemplate.Execute(&b, page); err != nil {
		return "", err
	}
	return b.String(), nil
}
