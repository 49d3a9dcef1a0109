package sqlstore

import (
	"context"

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
)

const (
	TableBusinesses    = "businesses"
	TableWeeklyPlans   = "weekly_plans"
	TableForecasts     = "forecasts"
	TableFinancialData = "financial_data"
)

const (
	typeID       = "VARCHAR(64) PRIMARY KEY"
	typeOwner    = "VARCHAR(64) NOT NULL"
	typeRef      = "VARCHAR(64)"
	typeShort    = "VARCHAR(64)"
	typeText     = "TEXT"
	typeNumber   = "REAL"
	typeDateTime = "VARCHAR(32)"
)

// Schema lists the application tables in creation order.
var Schema = []struct {
	Table   string
	Columns []contractx.Column
}{
	{TableBusinesses, []contractx.Column{
		{Name: "id", Type: typeID},
		{Name: "userId", Type: typeOwner},
		{Name: "type", Type: typeShort},
		{Name: "industry", Type: typeShort},
		{Name: "stage", Type: typeShort},
		{Name: "revenueModel", Type: typeShort},
		{Name: "currentRevenue", Type: typeNumber},
		{Name: "currentExpenses", Type: typeNumber},
		{Name: "answers", Type: typeText},
		{Name: "createdAt", Type: typeDateTime},
	}},
	{TableWeeklyPlans, []contractx.Column{
		{Name: "id", Type: typeID},
		{Name: "userId", Type: typeOwner},
		{Name: "businessId", Type: typeRef},
		{Name: "plan", Type: typeText},
		{Name: "week", Type: typeDateTime},
		{Name: "createdAt", Type: typeDateTime},
	}},
	{TableForecasts, []contractx.Column{
		{Name: "id", Type: typeID},
		{Name: "userId", Type: typeOwner},
		{Name: "businessId", Type: typeRef},
		{Name: "forecast", Type: typeText},
		{Name: "period", Type: typeShort},
		{Name: "createdAt", Type: typeDateTime},
	}},
	{TableFinancialData, []contractx.Column{
		{Name: "id", Type: typeID},
		{Name: "userId", Type: typeOwner},
		{Name: "businessId", Type: typeRef},
		{Name: "revenue", Type: typeNumber},
		{Name: "expenses", Type: typeNumber},
		{Name: "month", Type: typeDateTime},
		{Name: "createdAt", Type: typeDateTime},
	}},
}

// EnsureSchema creates every application table. Degraded results are
// returned as the first degradation seen.
func EnsureSchema(ctx context.Context, db contractx.SQL) error {
	var degraded error
	for _, t := range Schema {
		err := db.CreateTable(ctx, t.Table, t.Columns)
		if contractx.Failed(err) {
			return err
		}
		if degraded == nil {
			degraded = err
		}
	}
	return degraded
}
