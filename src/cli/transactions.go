package cli

import (
	"context"
	"fmt"

	"starling-server/src/dispatcher"
	"starling-server/src/models"
	"starling-server/src/util"

	"github.com/google/uuid"
)

func (c *CLI) transactions(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("transactions", c.Err)
	account := fs.String("account", "", "sync only this account uuid")
	start := fs.String("start", "", "window start (RFC 3339 or YYYY-MM-DD)")
	end := fs.String("end", "", "window end (RFC 3339 or YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	w, err := util.ParseWindow(*start, *end)
	if err != nil {
		return err
	}

	d, err := app.dispatcher(ctx, nil)
	if err != nil {
		return err
	}

	var txns []models.Transaction
	if *account != "" {
		accountUUID, err := uuid.Parse(*account)
		if err != nil {
			return usageErr("invalid account uuid %q", *account)
		}
		var tracked bool
		txns, tracked, err = d.SyncTransactionsForAccount(ctx, accountUUID, w)
		if err != nil {
			return err
		}
		if !tracked {
			return fmt.Errorf("%s: %w", accountUUID, dispatcher.ErrAccountNotTracked)
		}
	} else {
		report, err := d.SyncTransactionsAllAccounts(ctx, w)
		if err != nil {
			return err
		}
		for _, failure := range report.Errors {
			c.warn("%v", failure)
		}
		if report.Accounts > 0 && len(report.Errors) == report.Accounts {
			return fmt.Errorf("every account failed to sync: %w", report.Errors[0].Err)
		}
		txns = report.Transactions
	}

	names, err := app.Store.SelectDisplayNames(ctx)
	if err != nil {
		return err
	}
	overrides := make(map[string]string, len(names))
	for _, n := range names {
		overrides[n.Name] = n.DisplayName
	}
	for i := range txns {
		if display, ok := overrides[txns[i].Counterparty.Name]; ok {
			txns[i].Counterparty.DisplayName = display
		}
	}

	renderTransactions(c.Out, txns)
	return nil
}
