package report

import "sort"

// Query is one titled query in a report set.
type Query struct {
	Title string
	SQL   string
	// Unit names what a result row is, e.g. "departments".
	Unit string
	// Empty replaces the table when the query returns no rows.
	Empty string
	Note  string
}

// Set is a named list of queries run together.
type Set struct {
	Name    string
	Title   string
	Queries []Query
	Footer  []string
}

var sets = map[string]Set{
	"examples":   examplesSet,
	"healthcare": healthcareSet,
}

// Lookup returns the set called name.
func Lookup(name string) (Set, bool) {
	s, ok := sets[name]
	return s, ok
}

// Names returns the known set names in order.
func Names() []string {
	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var examplesSet = Set{
	Name:  "examples",
	Title: "Semantic Layer Query Examples",
	Queries: []Query{
		{
			Title: "Active Employees Summary",
			SQL: `SELECT full_name, department, job_title, tenure_years, annual_salary, ytd_gross_pay
FROM business.employee_summary
WHERE employment_status = 'Active'
ORDER BY tenure_years DESC
LIMIT 10`,
			Unit: "rows returned",
		},
		{
			Title: "Headcount by Department",
			SQL: `SELECT department,
       SUM(active_count) AS active_employees,
       ROUND(AVG(avg_annual_salary), 0) AS avg_salary,
       SUM(total_annual_salary) AS total_payroll
FROM metrics.headcount_metrics
WHERE employment_status = 'Active'
GROUP BY department
ORDER BY active_employees DESC`,
			Unit: "departments",
		},
		{
			Title: "Recent Monthly Payroll",
			SQL: `SELECT year_month,
       SUM(employee_count) AS employees,
       SUM(total_gross_pay) AS gross_pay,
       SUM(total_net_pay) AS net_pay,
       SUM(total_overtime_hours) AS overtime_hours
FROM metrics.monthly_payroll_metrics
GROUP BY year_month
ORDER BY year_month DESC
LIMIT 12`,
			Unit: "months",
		},
		{
			Title: "Recent Attendance Rates by Department",
			SQL: `SELECT year_month, department, employee_count,
       attendance_rate_pct, absence_rate_pct, late_rate_pct
FROM metrics.attendance_metrics
ORDER BY year_month DESC, department
LIMIT 10`,
			Unit: "rows",
		},
		{
			Title: "Available Views",
			SQL: `SELECT table_schema, table_name, table_type
FROM information_schema.tables
WHERE table_schema IN ('staging', 'business', 'metrics', 'cache')
ORDER BY table_schema, table_name`,
			Unit: "views available",
		},
	},
	Footer: []string{
		"If queries are slow, consider caching:",
		"  semlayer cache business.employee_summary",
	},
}

var healthcareSet = Set{
	Name:  "healthcare",
	Title: "Hospital Healthcare Workforce Analytics",
	Queries: []Query{
		{
			Title: "Clinical Staff Distribution by Role and Care Unit",
			SQL: `SELECT clinical_role, care_unit_type,
       COUNT(*) AS staff_count,
       COUNT(CASE WHEN employment_status = 'Active' THEN 1 END) AS active_count,
       ROUND(AVG(tenure_years), 1) AS avg_tenure_years,
       ROUND(AVG(attendance_rate_pct), 1) AS avg_attendance_rate
FROM business.clinical_staff_summary
GROUP BY clinical_role, care_unit_type
ORDER BY staff_count DESC
LIMIT 15`,
			Unit: "role-unit combinations",
		},
		{
			Title: "Burnout Risk Analysis (High Overtime Staff)",
			SQL: `SELECT clinical_role, department,
       COUNT(*) AS staff_count,
       ROUND(AVG(ytd_overtime_hours), 1) AS avg_overtime_hours,
       ROUND(AVG(overtime_percentage), 1) AS avg_overtime_pct,
       COUNT(CASE WHEN burnout_risk_level = 'High Risk' THEN 1 END) AS high_risk_count,
       COUNT(CASE WHEN burnout_risk_level = 'Moderate Risk' THEN 1 END) AS moderate_risk_count
FROM business.clinical_staff_summary
WHERE employment_status = 'Active'
GROUP BY clinical_role, department
HAVING AVG(ytd_overtime_hours) > 50
ORDER BY avg_overtime_hours DESC
LIMIT 15`,
			Unit:  "roles with elevated overtime",
			Empty: "No high-overtime groups found (good news!)",
		},
		{
			Title: "Shift Coverage - Last 4 Weeks",
			SQL: `SELECT strftime(week_start_date, '%Y-%m-%d') AS week, shift_type,
       SUM(staff_count) AS total_staff,
       ROUND(AVG(avg_hours_per_shift), 1) AS avg_hours_per_shift,
       SUM(total_overtime_hours) AS total_overtime_hours,
       ROUND(AVG(overtime_pct), 1) AS avg_overtime_pct,
       SUM(extended_shifts_count) AS extended_shifts
FROM metrics.shift_coverage_metrics
WHERE week_start_date >= CURRENT_DATE - INTERVAL '4 weeks'
GROUP BY week_start_date, shift_type
ORDER BY week_start_date DESC, shift_type`,
			Unit: "shift-week combinations",
		},
		{
			Title: "Department Staffing Levels (Current Month)",
			SQL: `SELECT department, shift_type,
       ROUND(avg_rn_count, 1) AS avg_rns,
       ROUND(avg_lpn_count, 1) AS avg_lpns,
       ROUND(avg_cna_count, 1) AS avg_cnas,
       ROUND(avg_total_staff_count, 1) AS avg_total_staff,
       min_total_staff_count AS min_staff,
       max_total_staff_count AS max_staff,
       understaffed_days_pct AS pct_understaffed_days
FROM metrics.department_staffing_ratios
WHERE year = EXTRACT(YEAR FROM CURRENT_DATE)
  AND month = EXTRACT(MONTH FROM CURRENT_DATE)
ORDER BY department, shift_type`,
			Unit: "department-shift combinations",
		},
		{
			Title: "Critical Care Units Workforce Summary",
			SQL: `SELECT care_unit_type, clinical_role, staff_count, active_count,
       ROUND(avg_tenure_years, 1) AS avg_tenure,
       ROUND(avg_attendance_rate, 1) AS attendance_rate,
       high_burnout_risk_count,
       ROUND(avg_overtime_pct, 1) AS avg_overtime_pct
FROM metrics.clinical_workforce_metrics
WHERE care_unit_type IN ('ICU/Critical Care', 'Emergency Department', 'Surgical Services')
  AND employment_status = 'Active'
ORDER BY care_unit_type, staff_count DESC`,
			Unit: "critical care staffing groups",
		},
		{
			Title: "Shift Differential Pay Analysis (Recent Month)",
			SQL: `SELECT shift_type, day_type,
       SUM(staff_count) AS total_staff,
       SUM(total_hours_worked) AS total_hours,
       SUM(shifts_with_differential) AS differential_shifts,
       ROUND(AVG(differential_pct), 1) AS avg_differential_pct
FROM metrics.shift_coverage_metrics
WHERE year_month = strftime(CURRENT_DATE, '%Y-%m')
GROUP BY shift_type, day_type
ORDER BY shift_type, day_type`,
		},
		{
			Title: "Potential Turnover Risk - New vs Experienced Staff",
			SQL: `SELECT clinical_role, care_unit_type, staff_count,
       new_hires_under_1_year, experienced_staff_5plus_years,
       ROUND(new_hires_under_1_year::DOUBLE / NULLIF(staff_count, 0) * 100, 1) AS new_hire_pct,
       ROUND(experienced_staff_5plus_years::DOUBLE / NULLIF(staff_count, 0) * 100, 1) AS experienced_pct
FROM metrics.clinical_workforce_metrics
WHERE employment_status = 'Active'
  AND staff_count >= 5
ORDER BY new_hire_pct DESC
LIMIT 15`,
			Unit: "units analyzed",
			Note: "High new hire % may indicate retention issues or rapid growth",
		},
	},
	Footer: []string{
		"Key insights to monitor:",
		"  • Burnout risk levels by department and role",
		"  • Shift coverage gaps (especially nights and weekends)",
		"  • Staffing ratios in critical care units",
		"  • Overtime trends (cost and retention impact)",
		"  • New hire integration and turnover risk",
	},
}
