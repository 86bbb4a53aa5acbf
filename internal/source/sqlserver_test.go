package source

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semlayer/semlayer/internal/config"
)

func TestDSN(t *testing.T) {
	cfg := config.SQLServerConfig{
		Host:                   "db.internal",
		Port:                   1433,
		Database:               "HRMS",
		Encrypt:                "disable",
		TrustServerCertificate: true,
		AppName:                "semlayer",
		ConnectTimeoutSeconds:  15,
	}

	dsn := DSN(cfg, "etl user", "p@ss:w/rd")
	u, err := url.Parse(dsn)
	require.NoError(t, err)

	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "db.internal:1433", u.Host)
	assert.Equal(t, "etl user", u.User.Username())
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss:w/rd", pass)

	q := u.Query()
	assert.Equal(t, "HRMS", q.Get("database"))
	assert.Equal(t, "disable", q.Get("encrypt"))
	assert.Equal(t, "true", q.Get("TrustServerCertificate"))
	assert.Equal(t, "semlayer", q.Get("app name"))
	assert.Equal(t, "15", q.Get("connection timeout"))
}

func TestDSNMinimal(t *testing.T) {
	dsn := DSN(config.SQLServerConfig{Host: "localhost", Port: 1433}, "sa", "x")
	assert.Equal(t, "sqlserver://sa:x@localhost:1433", dsn)
}

func TestQuoteTable(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Activity_Log", "[dbo].[Activity_Log]"},
		{`"Activity_Log"`, "[dbo].[Activity_Log]"},
		{`'CRMC Payroll'`, "[dbo].[CRMC Payroll]"},
		{"hr.Employees", "[hr].[Employees]"},
		{`"hr.Employees"`, "[hr].[Employees]"},
		{"[Dotted.Name]", "[dbo].[Dotted.Name]"},
		{"we]ird", "[dbo].[we]]ird]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuoteTable(tt.in, "dbo"), tt.in)
	}
	assert.Equal(t, "[T]", QuoteTable("T", ""))
}

func TestBuildQuery(t *testing.T) {
	query, args := BuildQuery("*", "dbo", ExtractRequest{Table: "Employees"})
	assert.Equal(t, "SELECT * FROM [dbo].[Employees]", query)
	assert.Nil(t, args)

	query, args = BuildQuery("COUNT_BIG(*)", "dbo", ExtractRequest{Table: "Activity_Log", DateColumn: "EnteredDate", Days: 30})
	assert.Equal(t, "SELECT COUNT_BIG(*) FROM [dbo].[Activity_Log] WHERE [EnteredDate] >= DATEADD(day, -@p1, GETDATE())", query)
	assert.Equal(t, []any{30}, args)

	// a column without a positive window is ignored
	query, _ = BuildQuery("*", "dbo", ExtractRequest{Table: "t", DateColumn: "d"})
	assert.Equal(t, "SELECT * FROM [dbo].[t]", query)
}

func TestTrimQuotes(t *testing.T) {
	assert.Equal(t, "a", TrimQuotes(`"a"`))
	assert.Equal(t, "a", TrimQuotes(`'a'`))
	assert.Equal(t, "a", TrimQuotes(`[a]`))
	assert.Equal(t, `"a`, TrimQuotes(`"a`))
	assert.Equal(t, "", TrimQuotes(`""`))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Microsoft SQL Server 2019", firstLine("Microsoft SQL Server 2019\n\tCopyright"))
	assert.Equal(t, "x", firstLine(" x "))
}
