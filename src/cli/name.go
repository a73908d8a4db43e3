package cli

import (
	"context"

	"starling-server/src/models"
)

// name manages display names, the user's overrides for raw counterparty
// names.
func (c *CLI) name(ctx context.Context, app *App, args []string) error {
	if len(args) == 0 {
		names, err := app.Store.SelectDisplayNames(ctx)
		if err != nil {
			return err
		}
		renderDisplayNames(c.Out, names)
		return nil
	}

	switch args[0] {
	case "add":
		if len(args) != 3 {
			return usageErr("name add takes RAW DISPLAY")
		}
		d := models.DisplayName{Name: args[1], DisplayName: args[2]}
		if err := app.Store.UpsertDisplayName(ctx, d); err != nil {
			return err
		}
		c.success("%s will be shown as %s", d.Name, d.DisplayName)
		return nil
	case "delete":
		if len(args) != 2 {
			return usageErr("name delete takes RAW")
		}
		if err := app.Store.DeleteDisplayName(ctx, args[1]); err != nil {
			return err
		}
		c.success("Removed display name for %s", args[1])
		return nil
	default:
		return usageErr("unknown name subcommand %q", args[0])
	}
}
