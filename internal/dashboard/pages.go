package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/semlayer/semlayer/internal/chat"
	"github.com/semlayer/semlayer/internal/db"
)

type navItem struct {
	Name string
	Path string
}

var nav = []navItem{
	{"Overview", "/"},
	{"Employees", "/employees"},
	{"Benefits", "/benefits"},
	{"Attendance", "/attendance"},
	{"Activity Log", "/activity"},
	{"Query", "/query"},
	{"Ask", "/ask"},
}

// KPI is a single headline number.
type KPI struct {
	Label string
	Value string
	Err   string
}

// Panel is one table and/or chart. A failed query sets Err and the rest of
// the page still renders.
type Panel struct {
	Title   string
	Caption string
	Wide    bool
	Result  *db.Result
	Chart   *ChartConfig
	Err     string
}

type pageData struct {
	Title  string
	Active string
	Nav    []navItem
	Info   string
	Err    string
	KPIs   []KPI
	Panels []*Panel

	Search     string
	Plan       string
	Plans      []string
	SQL        string
	Question   string
	Answer     *chat.Answer
	AdhocSQL   bool
	AskEnabled bool
}

func (s *Server) newPage(title, active string) *pageData {
	return &pageData{
		Title:      title,
		Active:     active,
		Nav:        nav,
		AdhocSQL:   s.opts.AllowAdhocSQL,
		AskEnabled: s.pipeline != nil,
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, page *pageData) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, "layout", page); err != nil {
		s.log.Error("failed to render page", zap.String("page", page.Title), zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// panel runs query and fills a table panel.
func (s *Server) panel(ctx context.Context, title, query string, args ...any) *Panel {
	p := &Panel{Title: title}
	res, _, err := s.query(ctx, query, args...)
	if err != nil {
		p.Err = panelError(err)
		return p
	}
	p.Result = res
	return p
}

// chartPanel runs query and charts it; the table is not shown.
func (s *Server) chartPanel(ctx context.Context, title, query string, build func(*db.Result) (*ChartConfig, error)) *Panel {
	p := s.panel(ctx, title, query)
	res := p.Result
	p.Result = nil
	if p.Err != "" {
		return p
	}
	chart, err := build(res)
	if err != nil {
		p.Err = err.Error()
		return p
	}
	p.Chart = chart
	return p
}

func (s *Server) kpi(ctx context.Context, label, query string) KPI {
	k := KPI{Label: label}
	res, _, err := s.query(ctx, query)
	if err != nil {
		k.Err = panelError(err)
		return k
	}
	if len(res.Rows) == 0 || len(res.Rows[0]) == 0 {
		k.Value = "0"
		return k
	}
	k.Value = thousands(toFloat(res.Rows[0][0]))
	return k
}

func panelError(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "does not exist") || errors.Is(err, db.ErrRelationNotFound) {
		return "Data not available yet: " + msg + ". Run 'semlayer init' or 'semlayer build' first."
	}
	return msg
}

func thousands(f float64) string {
	s := fmt.Sprintf("%.0f", f)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func (s *Server) overviewPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := s.newPage("HRMS Overview", "/")

	page.KPIs = []KPI{
		s.kpi(ctx, "Employees", `SELECT COUNT(DISTINCT employee_id) FROM staging.stg_payroll`),
		s.kpi(ctx, "Payroll Records", `SELECT COUNT(*) FROM raw.crmc_payrollfile`),
		s.kpi(ctx, "Attendance Records", `SELECT COUNT(*) FROM staging.stg_attendance`),
		s.kpi(ctx, "Activity Logs", `SELECT COUNT(*) FROM raw.activity_log`),
	}

	benefits := s.chartPanel(ctx, "Benefits Enrollment by Plan Type", `
		SELECT benefit_plan_type, employee_count, enrollment_records
		FROM metrics.headcount_metrics
		ORDER BY employee_count DESC
		LIMIT 10
	`, func(res *db.Result) (*ChartConfig, error) {
		return BuildChart("bar", "Benefits Enrollment by Plan Type", res, "benefit_plan_type", "employee_count")
	})
	benefits.Wide = true

	const shiftQuery = `
		SELECT shift, SUM(total_records) AS records, SUM(total_hours) AS hours
		FROM metrics.attendance_metrics
		GROUP BY shift
		ORDER BY records DESC
	`
	byShift := s.chartPanel(ctx, "Attendance by Shift", shiftQuery, func(res *db.Result) (*ChartConfig, error) {
		return BuildChart("doughnut", "Attendance by Shift", res, "shift", "records")
	})
	hours := s.chartPanel(ctx, "Hours by Shift", shiftQuery, func(res *db.Result) (*ChartConfig, error) {
		return BuildChart("bar", "Hours by Shift", res, "shift", "hours")
	})

	freshness := s.panel(ctx, "Data Freshness", `
		SELECT table_name, source_table, last_sync, row_count, status
		FROM _metadata.data_freshness
		ORDER BY table_name
	`)
	freshness.Wide = true

	page.Panels = []*Panel{benefits, byShift, hours, freshness}
	s.render(w, r, page)
}

func (s *Server) employeesPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := s.newPage("Employee Directory", "/employees")
	page.Search = strings.TrimSpace(r.URL.Query().Get("q"))

	const cols = `
		SELECT employee_id, full_name, num_benefit_plans, benefit_plan_types,
		       total_current_arrears, corp_id
		FROM business.employee_summary`
	var p *Panel
	if page.Search == "" {
		p = s.panel(ctx, "Employees", cols+`
		ORDER BY full_name
		LIMIT 100`)
	} else {
		p = s.panel(ctx, "Employees", cols+`
		WHERE LOWER(full_name) LIKE ? OR employee_id LIKE ?
		ORDER BY full_name
		LIMIT 100`, "%"+strings.ToLower(page.Search)+"%", "%"+page.Search+"%")
	}
	p.Wide = true
	if p.Result != nil {
		p.Caption = fmt.Sprintf("Showing %d employees", len(p.Result.Rows))
	}
	page.Panels = []*Panel{p}
	s.render(w, r, page)
}

func (s *Server) benefitsPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := s.newPage("Benefits Analysis", "/benefits")
	page.Plan = r.URL.Query().Get("plan")

	plans := s.panel(ctx, "Enrollment by Plan Type", `
		SELECT benefit_plan_type, employee_count, enrollment_records,
		       ROUND(avg_current_arrears, 2) AS avg_arrears
		FROM metrics.headcount_metrics
		ORDER BY employee_count DESC
	`)
	top := &Panel{Title: "Top Plans by Enrollment", Err: plans.Err}
	if res := plans.Result; res != nil {
		if i := res.Column("benefit_plan_type"); i >= 0 {
			for _, row := range res.Rows {
				page.Plans = append(page.Plans, labelOf(row[i]))
			}
		}
		head := &db.Result{Columns: res.Columns, Rows: res.Rows[:min(10, len(res.Rows))]}
		chart, err := BuildChart("bar", "Top Plans by Enrollment", head, "benefit_plan_type", "employee_count")
		if err != nil {
			top.Err = err.Error()
		}
		top.Chart = chart
	}

	const detail = `
		SELECT employee_id, full_name, benefit_plan_type, benefit_plan_name,
		       coverage_tier, current_arrears, total_arrears
		FROM business.payroll_detail`
	var details *Panel
	if page.Plan == "" {
		details = s.panel(ctx, "Benefits Detail", detail+`
		LIMIT 500`)
	} else {
		details = s.panel(ctx, "Benefits Detail", detail+`
		WHERE benefit_plan_type = ?
		LIMIT 500`, page.Plan)
	}
	details.Wide = true

	page.Panels = []*Panel{plans, top, details}
	s.render(w, r, page)
}

func (s *Server) attendancePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := s.newPage("Attendance Analysis", "/attendance")

	byWeek := s.chartPanel(ctx, "Hours by Week and Shift", `
		SELECT week_number, shift, employee_count, total_records,
		       total_hours, avg_hours, shift_diff_hours
		FROM metrics.attendance_metrics
		ORDER BY week_number, shift
	`, func(res *db.Result) (*ChartConfig, error) {
		return PivotChart("bar", "Hours by Week and Shift", res, "week_number", "shift", "total_hours")
	})
	byShift := s.chartPanel(ctx, "Employee Count by Shift", `
		SELECT shift, SUM(employee_count) AS employee_count, SUM(total_hours) AS total_hours
		FROM metrics.attendance_metrics
		GROUP BY shift
		ORDER BY shift
	`, func(res *db.Result) (*ChartConfig, error) {
		return BuildChart("bar", "Employee Count by Shift", res, "shift", "employee_count")
	})

	details := s.panel(ctx, "Attendance Details", `
		SELECT employee_id, full_name, shift, week_number,
		       total_hours, hours, rate, earning_code
		FROM business.attendance_detail
		ORDER BY employee_id, week_number
		LIMIT 500
	`)
	details.Wide = true

	page.Panels = []*Panel{byWeek, byShift, details}
	s.render(w, r, page)
}

func (s *Server) activityPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := s.newPage("Activity Log", "/activity")
	page.Info = "Showing activity from the last 30 days"

	recent := s.panel(ctx, "Recent Activity", `
		SELECT activity_id, activity_timestamp, module,
		       activity_type, entered_by, system_ip
		FROM staging.stg_activity_log
		ORDER BY activity_timestamp DESC
		LIMIT 100
	`)
	if recent.Err != "" {
		page.Panels = []*Panel{recent}
		s.render(w, r, page)
		return
	}
	if len(recent.Result.Rows) == 0 {
		page.Err = "No activity log data available"
		s.render(w, r, page)
		return
	}

	byModule := &Panel{Title: "Activity by Module"}
	chart, err := BuildChart("pie", "Activity by Module", CountBy(recent.Result, "module"), "module", "count")
	if err != nil {
		byModule.Err = err.Error()
	}
	byModule.Chart = chart

	recent.Result = project(recent.Result, "activity_timestamp", "module", "activity_type", "entered_by")
	page.Panels = []*Panel{byModule, recent}
	s.render(w, r, page)
}

func (s *Server) queryPage(w http.ResponseWriter, r *http.Request) {
	page := s.newPage("SQL Query", "/query")
	page.Info = fmt.Sprintf("Read-only SELECT statements; at most %d rows are returned.", s.opts.RowLimit)

	if r.Method == http.MethodPost && s.opts.AllowAdhocSQL {
		page.SQL = r.FormValue("sql")
		res, hit, err := s.adhoc(r.Context(), page.SQL)
		if err != nil {
			page.Err = err.Error()
		} else {
			p := &Panel{Title: "Result", Wide: true, Result: res, Caption: fmt.Sprintf("%d rows", len(res.Rows))}
			if hit {
				p.Caption += " (cached)"
			}
			page.Panels = []*Panel{p}
		}
	}
	s.render(w, r, page)
}

func (s *Server) askPage(w http.ResponseWriter, r *http.Request) {
	page := s.newPage("Ask a Question", "/ask")

	if r.Method == http.MethodPost && s.pipeline != nil {
		page.Question = strings.TrimSpace(r.FormValue("question"))
		ans, err := s.ask(r.Context(), page.Question)
		page.Answer = ans
		if err != nil {
			page.Err = err.Error()
		}
		if ans != nil && ans.Result != nil {
			page.Panels = []*Panel{{Title: "Rows", Wide: true, Result: ans.Result}}
		}
	}
	s.render(w, r, page)
}

func (s *Server) ask(ctx context.Context, question string) (*chat.Answer, error) {
	if s.pipeline == nil {
		s.metrics.asks.WithLabelValues("disabled").Inc()
		return nil, chat.ErrLLMDisabled
	}
	ans, err := s.pipeline.Ask(ctx, question)
	if err != nil {
		s.metrics.asks.WithLabelValues("error").Inc()
		s.log.Warn("ask failed", zap.String("question", question), zap.Error(err))
		return ans, err
	}
	s.metrics.asks.WithLabelValues("ok").Inc()
	return ans, nil
}

// project keeps the named columns of res, in that order.
func project(res *db.Result, cols ...string) *db.Result {
	out := &db.Result{}
	var idx []int
	for _, c := range cols {
		if i := res.Column(c); i >= 0 {
			idx = append(idx, i)
			out.Columns = append(out.Columns, res.Columns[i])
		}
	}
	for _, row := range res.Rows {
		r := make([]any, len(idx))
		for j, i := range idx {
			r[j] = row[i]
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}
