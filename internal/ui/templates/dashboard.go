package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Dashboard renders the multi-tab dashboard shell. The panels load their own
// data through the /sse endpoints once the page is up.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, dashboardPage)
		return err
	})
}

const dashboardPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Sales Analytics Dashboard</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@main/bundles/datastar.js"></script>
<style>
body { font-family: system-ui, sans-serif; margin: 0; background: #f5f6fa; color: #1f2430; }
header { background: #1f2430; color: #fff; padding: 1rem 2rem; }
main { padding: 1.5rem 2rem; }
nav.tabs { display: flex; gap: 0.5rem; margin-bottom: 1rem; }
nav.tabs button { border: 0; background: #e3e6ef; padding: 0.5rem 1rem; border-radius: 6px; cursor: pointer; }
nav.tabs button.active { background: #3b5bdb; color: #fff; }
.kpi-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 1rem; }
.kpi-card { background: #fff; border-radius: 8px; padding: 1rem; box-shadow: 0 1px 3px rgba(0,0,0,.08); }
.kpi-label { display: block; color: #667; font-size: .8rem; margin-bottom: .25rem; }
.insight-list { list-style: none; padding: 0; }
.insight-item { background: #fff; border-radius: 8px; padding: .75rem 1rem; margin-bottom: .5rem; box-shadow: 0 1px 3px rgba(0,0,0,.08); }
.insight-title { font-weight: 600; }
</style>
</head>
<body>
<header><h1>Sales Analytics Dashboard</h1></header>
<main data-signals="{tab: 'overview', salesOverTime: [], anomalySummary: {}}">
<nav class="tabs">
<button data-class-active="$tab === 'overview'" data-on-click="$tab = 'overview'; @get('/sse/kpis')">Overview</button>
<button data-class-active="$tab === 'trends'" data-on-click="$tab = 'trends'; @get('/sse/sales-over-time')">Trends</button>
<button data-class-active="$tab === 'anomalies'" data-on-click="$tab = 'anomalies'; @get('/sse/anomalies')">Anomalies</button>
<button data-class-active="$tab === 'insights'" data-on-click="$tab = 'insights'; @get('/sse/insights')">Insights</button>
</nav>
<section data-show="$tab === 'overview'">
<div id="kpi-content" data-on-load="@get('/sse/kpis')">Loading KPIs…</div>
</section>
<section data-show="$tab === 'trends'">
<div id="timeseries-content">Open the Trends tab to load the sales series.</div>
</section>
<section data-show="$tab === 'anomalies'">
<div id="anomaly-content">Open the Anomalies tab to score the current table.</div>
</section>
<section data-show="$tab === 'insights'">
<div id="insights-content">Open the Insights tab to generate findings.</div>
</section>
</main>
</body>
</html>
`
