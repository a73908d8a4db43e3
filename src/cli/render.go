package cli

import (
	"io"
	"sort"

	"starling-server/src/models"

	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	return table
}

func renderAccounts(w io.Writer, rows []accountRow) {
	table := newTable(w, "Bank", "Account", "UUID", "Currency", "Last transaction")
	for _, r := range rows {
		last := "-"
		if !r.LastTransaction.IsZero() {
			last = r.LastTransaction.Format("2006-01-02 15:04")
		}
		table.Append([]string{r.BankName, r.Name, r.UUID.String(), r.Currency, last})
	}
	table.Render()
}

func renderCategories(w io.Writer, categories []models.Category) {
	sorted := append([]models.Category(nil), categories...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].GroupName != sorted[j].GroupName {
			return sorted[i].GroupName < sorted[j].GroupName
		}
		return sorted[i].Name < sorted[j].Name
	})

	table := newTable(w, "Group", "Name", "UUID")
	for _, c := range sorted {
		table.Append([]string{c.GroupName, c.Name, c.UUID.String()})
	}
	table.Render()
}

func renderDisplayNames(w io.Writer, names []models.DisplayName) {
	table := newTable(w, "Name", "Display name")
	for _, n := range names {
		table.Append([]string{n.Name, n.DisplayName})
	}
	table.Render()
}

func renderTransactions(w io.Writer, txns []models.Transaction) {
	table := newTable(w, "Time", "Counterparty", "Amount", "Currency", "Reference")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
	})
	for _, t := range txns {
		table.Append([]string{
			t.Time.Format("2006-01-02 15:04"),
			t.Counterparty.DisplayedName(),
			t.Amount.StringFixed(2),
			t.Currency,
			t.Reference,
		})
	}
	table.Render()
}
