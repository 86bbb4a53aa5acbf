package etl

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeTableName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Activity_Log", "activity_log"},
		{"CRMC Payroll-File", "crmc_payroll_file"},
		{`"Benefit$Plans"`, "benefitplans"},
		{"O'Brien Notes", "obrien_notes"},
		{"2024 Census", "t_2024_census"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeTableName(tt.in), tt.in)
	}
}

func TestSanitizeColumnNames(t *testing.T) {
	got := SanitizeColumnNames([]string{"Employee ID", "Pay$", "Badge#", "", "Name", "name", "Name"})
	assert.Equal(t, []string{"Employee_ID", "Pay", "Badge", "col_4", "Name", "name_2", "Name_3"}, got)
}

func TestDuckDBType(t *testing.T) {
	tests := map[string]string{
		"INT":              "BIGINT",
		"tinyint":          "BIGINT",
		"BIT":              "BOOLEAN",
		"REAL":             "DOUBLE",
		"DECIMAL":          "DOUBLE",
		"SMALLMONEY":       "DOUBLE",
		"DATE":             "DATE",
		"DATETIME2":        "TIMESTAMP",
		"DATETIMEOFFSET":   "TIMESTAMP",
		"TIME":             "VARCHAR",
		"UNIQUEIDENTIFIER": "VARCHAR",
		"VARBINARY":        "BLOB",
		"NVARCHAR":         "VARCHAR",
		"XML":              "VARCHAR",
	}
	for in, want := range tests {
		assert.Equal(t, want, DuckDBType(in), in)
	}
}

func convert(t *testing.T, typeName string, v any) driver.Value {
	t.Helper()
	out, err := mapColumn(typeName).convert(v)
	require.NoError(t, err)
	return out
}

func TestConverters(t *testing.T) {
	assert.Equal(t, int64(7), convert(t, "SMALLINT", int64(7)))
	assert.Equal(t, int64(12), convert(t, "INT", []byte("12")))
	assert.Equal(t, true, convert(t, "BIT", true))
	assert.Equal(t, 12.34, convert(t, "DECIMAL", []byte("12.3400")))
	assert.Equal(t, 2.5, convert(t, "FLOAT", 2.5))

	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC), convert(t, "DATETIMEOFFSET", time.Date(2024, 1, 1, 12, 0, 0, 0, est)))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), convert(t, "DATE", time.Date(2024, 1, 1, 0, 0, 0, 0, est)))
	assert.Equal(t, "08:30:15.5", convert(t, "TIME", time.Date(1, 1, 1, 8, 30, 15, 500000000, time.UTC)))

	// SQL Server stores the first three GUID groups little-endian
	raw := []byte{0x67, 0x45, 0x23, 0x01, 0xAB, 0x89, 0xEF, 0xCD, 0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF}
	assert.Equal(t, "01234567-89AB-CDEF-0123-456789ABCDEF", convert(t, "UNIQUEIDENTIFIER", raw))

	assert.Equal(t, []byte{1, 2}, convert(t, "VARBINARY", []byte{1, 2}))
	assert.Equal(t, "hello", convert(t, "NVARCHAR", "hello"))
	assert.Equal(t, "42", convert(t, "SQL_VARIANT", 42))

	for _, typeName := range []string{"INT", "BIT", "FLOAT", "DATE", "DATETIME", "TIME", "UNIQUEIDENTIFIER", "IMAGE", "TEXT"} {
		assert.Nil(t, convert(t, typeName, nil), typeName)
	}
}

func TestConverterErrors(t *testing.T) {
	_, err := mapColumn("INT").convert(struct{}{})
	assert.Error(t, err)
	_, err = mapColumn("DECIMAL").convert([]byte("abc"))
	assert.Error(t, err)
	_, err = mapColumn("DATE").convert("2024-01-01")
	assert.Error(t, err)
}
