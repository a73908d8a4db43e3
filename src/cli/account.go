package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"starling-server/src/models"
	"starling-server/src/providers"
	"starling-server/src/providers/starling"
	"starling-server/src/util"

	"github.com/google/uuid"
	"golang.org/x/term"
)

func (c *CLI) account(ctx context.Context, app *App, args []string) error {
	if len(args) == 0 {
		return c.listAccounts(ctx, app)
	}
	switch args[0] {
	case "add":
		return c.addAccounts(ctx, app, args[1:])
	case "delete":
		return c.deleteAccounts(ctx, app, args[1:])
	default:
		return usageErr("unknown account subcommand %q", args[0])
	}
}

func (c *CLI) listAccounts(ctx context.Context, app *App) error {
	accounts, err := app.Store.SelectAccounts(ctx)
	if err != nil {
		return err
	}
	rows := make([]accountRow, 0, len(accounts))
	for _, a := range accounts {
		last, ok, err := app.Store.LastTransactionTime(ctx, a.UUID)
		if err != nil {
			return err
		}
		row := accountRow{Account: a}
		if ok {
			row.LastTransaction = last
		}
		rows = append(rows, row)
	}
	renderAccounts(c.Out, rows)
	return nil
}

// addAccounts stores every account the bank credential can see. For
// Starling banks each account's default category is registered too, since
// the adapter cannot be built without it.
func (c *CLI) addAccounts(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("account add", c.Err)
	bank := fs.String("bank", "", "bank name, as bound in BANK_PROVIDERS")
	tokenFile := fs.String("token-file", "", "file holding the bank access token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !util.ValidateBankName(*bank) {
		return usageErr("invalid bank name %q", *bank)
	}

	factory, err := app.Registry.Lookup(*bank)
	if err != nil {
		configured := "none"
		if banks := app.Registry.Banks(); len(banks) > 0 {
			configured = strings.Join(banks, ", ")
		}
		return fmt.Errorf("%w (configured banks: %s)", err, configured)
	}
	token, err := c.readToken(*tokenFile)
	if err != nil {
		return err
	}
	if !util.ValidateAuthToken(token) {
		return errors.New("access token is empty or contains whitespace")
	}

	p, err := factory(ctx, providers.Binding{BankName: *bank, AuthToken: token})
	if err != nil {
		return err
	}
	accounts, err := p.ListAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		c.warn("%s returned no accounts", *bank)
		return nil
	}

	kind, _ := app.Registry.Kind(*bank)
	for _, a := range accounts {
		if err := app.Store.UpsertAccount(ctx, token, a); err != nil {
			return fmt.Errorf("store account %s: %w", a.UUID, err)
		}
		if kind != starling.Kind {
			continue
		}
		ok, err := app.Categories.Register(ctx, token, a.UUID, *bank)
		if err != nil {
			return fmt.Errorf("register default category for %s: %w", a.UUID, err)
		}
		if !ok {
			c.warn("%s has no default category and will not sync", a.Name)
			continue
		}
		c.success("Saved default category for %s to %s", a.Name, app.Categories.Path())
	}

	rows := make([]accountRow, len(accounts))
	for i, a := range accounts {
		rows[i] = accountRow{Account: a}
	}
	renderAccounts(c.Out, rows)
	c.success("Added %d account(s) for %s", len(accounts), *bank)
	return nil
}

func (c *CLI) deleteAccounts(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("account delete", c.Err)
	bank := fs.String("bank", "", "delete the bank and all of its accounts")
	id := fs.String("uuid", "", "delete a single account")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*bank == "") == (*id == "") {
		return usageErr("exactly one of -bank or -uuid is required")
	}

	var removed []uuid.UUID
	if *bank != "" {
		accounts, err := app.Store.DeleteBank(ctx, *bank)
		if err != nil {
			return err
		}
		removed = accounts
	} else {
		accountUUID, err := uuid.Parse(*id)
		if err != nil {
			return usageErr("invalid account uuid %q", *id)
		}
		if err := app.Store.DeleteAccount(ctx, accountUUID); err != nil {
			return err
		}
		removed = []uuid.UUID{accountUUID}
	}

	for _, account := range removed {
		if err := app.Categories.Remove(account); err != nil {
			c.warn("could not remove default category for %s: %v", account, err)
		}
	}
	c.success("Deleted %d account(s)", len(removed))
	return nil
}

// readToken reads the token from path, prompting without echo when no path
// is given and stdin is a terminal.
func (c *CLI) readToken(path string) (string, error) {
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	if f, ok := c.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(c.Err, "Access token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.Err)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

type accountRow struct {
	models.Account
	LastTransaction time.Time
}
