package etl

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
)

// DuckDB column types produced by the mapping.
const (
	TypeBigint    = "BIGINT"
	TypeBoolean   = "BOOLEAN"
	TypeDouble    = "DOUBLE"
	TypeDate      = "DATE"
	TypeTimestamp = "TIMESTAMP"
	TypeVarchar   = "VARCHAR"
	TypeBlob      = "BLOB"
)

// converter turns a value scanned from the source into one the DuckDB
// appender accepts for the mapped column type.
type converter func(v any) (driver.Value, error)

type columnMapping struct {
	duckType string
	convert  converter
}

// DuckDBType returns the DuckDB type used for a SQL Server type name.
func DuckDBType(sqlServerType string) string {
	return mapColumn(sqlServerType).duckType
}

func mapColumn(sqlServerType string) columnMapping {
	switch strings.ToUpper(strings.TrimSpace(sqlServerType)) {
	case "BIGINT", "INT", "SMALLINT", "TINYINT":
		return columnMapping{TypeBigint, toInt64}
	case "BIT":
		return columnMapping{TypeBoolean, toBool}
	case "FLOAT", "REAL", "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return columnMapping{TypeDouble, toFloat64}
	case "DATE":
		return columnMapping{TypeDate, toDate}
	case "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET":
		return columnMapping{TypeTimestamp, toTimestamp}
	case "TIME":
		return columnMapping{TypeVarchar, toTimeOfDay}
	case "UNIQUEIDENTIFIER":
		return columnMapping{TypeVarchar, toGUID}
	case "BINARY", "VARBINARY", "IMAGE", "TIMESTAMP", "ROWVERSION":
		return columnMapping{TypeBlob, toBytes}
	default:
		return columnMapping{TypeVarchar, toString}
	}
}

func toInt64(v any) (driver.Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case int:
		return int64(x), nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	default:
		return nil, fmt.Errorf("cannot convert %T to BIGINT", v)
	}
}

func toBool(v any) (driver.Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case []byte:
		return strconv.ParseBool(string(x))
	case string:
		return strconv.ParseBool(strings.TrimSpace(x))
	default:
		return nil, fmt.Errorf("cannot convert %T to BOOLEAN", v)
	}
}

// toFloat64 also handles DECIMAL and MONEY, which the driver returns as text.
func toFloat64(v any) (driver.Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return nil, fmt.Errorf("cannot convert %T to DOUBLE", v)
	}
}

func toDate(v any) (driver.Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, time.UTC), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to DATE", v)
	}
}

func toTimestamp(v any) (driver.Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return x.UTC(), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to TIMESTAMP", v)
	}
}

func toTimeOfDay(v any) (driver.Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return x.Format("15:04:05.999999"), nil
	default:
		return toString(v)
	}
}

func toGUID(v any) (driver.Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case []byte:
		var id mssql.UniqueIdentifier
		if err := id.Scan(x); err != nil {
			return nil, fmt.Errorf("invalid uniqueidentifier: %w", err)
		}
		return id.String(), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to GUID", v)
	}
}

func toBytes(v any) (driver.Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to BLOB", v)
	}
}

func toString(v any) (driver.Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	default:
		return fmt.Sprint(v), nil
	}
}
