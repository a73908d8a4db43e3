package cli

import (
	"context"
	"sort"

	"starling-server/src/models"
)

func (c *CLI) category(ctx context.Context, app *App, args []string) error {
	if len(args) == 0 {
		categories, err := app.Store.SelectCategories(ctx)
		if err != nil {
			return err
		}
		renderCategories(c.Out, categories)
		return nil
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "init":
		return c.initCategories(ctx, app)
	case "add", "delete":
		if len(rest) != 1 {
			return usageErr("category %s takes GROUP:NAME", sub)
		}
		cat, err := models.ParseCategory(rest[0])
		if err != nil {
			return usageErr("%v", err)
		}
		if sub == "add" {
			if _, err := app.Store.UpsertCategory(ctx, cat); err != nil {
				return err
			}
			c.success("Added category %s", cat)
			return nil
		}
		if err := app.Store.DeleteCategory(ctx, cat); err != nil {
			return err
		}
		c.success("Deleted category %s", cat)
		return nil
	case "rename":
		if len(rest) != 2 {
			return usageErr("category rename takes GROUP:NAME NEWNAME")
		}
		cat, err := models.ParseCategory(rest[0])
		if err != nil {
			return usageErr("%v", err)
		}
		if err := app.Store.RenameCategory(ctx, cat, rest[1]); err != nil {
			return err
		}
		c.success("Renamed %s to %s:%s", cat, cat.GroupName, rest[1])
		return nil
	case "change-group":
		if len(rest) != 2 {
			return usageErr("category change-group takes GROUP:NAME NEWGROUP")
		}
		cat, err := models.ParseCategory(rest[0])
		if err != nil {
			return usageErr("%v", err)
		}
		if err := app.Store.ChangeCategoryGroup(ctx, cat, rest[1]); err != nil {
			return err
		}
		c.success("Moved %s to group %s", cat, rest[1])
		return nil
	case "assign":
		if len(rest) != 2 {
			return usageErr("category assign takes COUNTERPARTY GROUP:NAME")
		}
		cat, err := models.ParseCategory(rest[1])
		if err != nil {
			return usageErr("%v", err)
		}
		n, err := app.Store.AssignCategory(ctx, rest[0], cat)
		if err != nil {
			return err
		}
		c.success("Assigned %s to %d transaction(s) from %s", cat, n, rest[0])
		return nil
	default:
		return usageErr("unknown category subcommand %q", sub)
	}
}

func (c *CLI) initCategories(ctx context.Context, app *App) error {
	groups := make([]string, 0, len(models.DefaultCategories))
	for g := range models.DefaultCategories {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	var added []models.Category
	for _, g := range groups {
		for _, name := range models.DefaultCategories[g] {
			cat, err := app.Store.UpsertCategory(ctx, models.Category{GroupName: g, Name: name})
			if err != nil {
				return err
			}
			added = append(added, cat)
		}
	}
	renderCategories(c.Out, added)
	return nil
}
