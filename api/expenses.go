package api

import (
	"context"
	"net/http"
	"time"

	"court-desk/logging"
	"court-desk/types"
)

func (c *Client) CreateExpense(ctx context.Context, e types.Expense) (types.Expense, error) {
	created := e
	if err := c.do(ctx, call{endpoint: "expenses.create", method: http.MethodPost, path: "/expenses/Add", body: e}, &created); err != nil {
		return types.Expense{}, err
	}
	return created, nil
}

// Expenses lists expenses. While the backend has no expenses route (404) it returns
// demo records marked Mock.
func (c *Client) Expenses(ctx context.Context) ([]types.Expense, error) {
	expenses := make([]types.Expense, 0)
	err := c.do(ctx, call{endpoint: "expenses.list", method: http.MethodGet, path: "/expenses/GetAll"}, &expenses)
	if IsNotFound(err) {
		logging.FromContext(ctx).Warn("expenses backend not yet implemented, serving demo data")
		return demoExpenses(time.Now()), nil
	}
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

func (c *Client) UpdateExpense(ctx context.Context, e types.Expense) error {
	return c.do(ctx, call{
		endpoint: "expenses.update",
		method:   http.MethodPut,
		path:     "/expenses/Update",
		query:    idQuery(e.ID),
		body:     e,
	}, nil)
}

func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	return c.do(ctx, call{
		endpoint: "expenses.delete",
		method:   http.MethodDelete,
		path:     "/expenses/Delete",
		query:    idQuery(id),
		admin:    true,
	}, nil)
}

func demoExpenses(now time.Time) []types.Expense {
	today := now.Format("2006-01-02")
	return []types.Expense{
		{ID: "demo-1", Category: "utilities", Description: "Floodlight electricity", Amount: 45000, Date: today, Mock: true},
		{ID: "demo-2", Category: "maintenance", Description: "Net replacement", Amount: 30000, Date: today, Mock: true},
		{ID: "demo-3", Category: "supplies", Description: "Shuttlecocks", Amount: 12000, Date: today, Mock: true},
	}
}
