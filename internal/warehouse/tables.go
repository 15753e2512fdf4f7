package warehouse

import "github.com/Ramsey-B/fern/pkg/models"

// dimensionLoad describes one dimension's staging-and-reconcile pass.
// businessKey is empty for natural-key dimensions, which reconcile with
// INSERT...EXCEPT over every staged column instead of a MERGE.
type dimensionLoad struct {
	table       string
	businessKey string
	columns     []string
	updateCols  []string
	rows        [][]any
}

// fact table column order; staged and merged in exactly this order.
var factColumns = []string{
	"TicketKey",
	"UserKey",
	"AgentKey",
	"CompanyKey",
	"CategoryKey",
	"PriorityKey",
	"StatusKey",
	"ProductKey",
	"TagKey",
	"EntryDateKey",
	"ClosedDateKey",
	"FirstResponseDateKey",
	"QtTickets",
}

// dimensionLoads materializes the per-dimension load descriptors from a
// transformed batch, in load order: dates first, then business-key
// dimensions, so fact key resolution always runs against fresh rows.
func dimensionLoads(batch *models.StarBatch) []dimensionLoad {
	loads := make([]dimensionLoad, 0, 10)

	dates := dimensionLoad{
		table:   "Dim_Dates",
		columns: []string{"Year", "Month", "Day", "Hour", "Minute"},
	}
	for _, d := range batch.Dates {
		dates.rows = append(dates.rows, []any{d.Year, d.Month, d.Day, d.Hour, d.Minute})
	}
	loads = append(loads, dates)

	companies := dimensionLoad{
		table:       "Dim_Companies",
		businessKey: "CompanyId_BK",
		columns:     []string{"CompanyId_BK", "Name", "Segmento", "CNPJ"},
		updateCols:  []string{"Name", "Segmento", "CNPJ"},
	}
	for _, d := range batch.Companies {
		companies.rows = append(companies.rows, []any{d.CompanyID, d.Name, d.Segmento, d.CNPJ})
	}
	loads = append(loads, companies)

	users := dimensionLoad{
		table:       "Dim_Users",
		businessKey: "UserId_BK",
		columns:     []string{"UserId_BK", "FullName", "CompanyId_BK", "IsVIP"},
		updateCols:  []string{"FullName", "CompanyId_BK", "IsVIP"},
	}
	for _, d := range batch.Users {
		users.rows = append(users.rows, []any{d.UserID, d.FullName, d.CompanyID, d.IsVIP})
	}
	loads = append(loads, users)

	agents := dimensionLoad{
		table:       "Dim_Agents",
		businessKey: "AgentId_BK",
		columns:     []string{"AgentId_BK", "FullName", "DepartmentName", "IsActive"},
		updateCols:  []string{"FullName", "DepartmentName", "IsActive"},
	}
	for _, d := range batch.Agents {
		agents.rows = append(agents.rows, []any{d.AgentID, d.FullName, d.DepartmentName, d.IsActive})
	}
	loads = append(loads, agents)

	products := dimensionLoad{
		table:       "Dim_Products",
		businessKey: "ProductId_BK",
		columns:     []string{"ProductId_BK", "Name", "Code", "IsActive"},
		updateCols:  []string{"Name", "Code", "IsActive"},
	}
	for _, d := range batch.Products {
		products.rows = append(products.rows, []any{d.ProductID, d.Name, d.Code, d.IsActive})
	}
	loads = append(loads, products)

	categories := dimensionLoad{
		table:       "Dim_Categories",
		businessKey: "CategoryId_BK",
		columns:     []string{"CategoryId_BK", "CategoryName", "SubcategoryId", "SubcategoryName"},
		updateCols:  []string{"CategoryName", "SubcategoryId", "SubcategoryName"},
	}
	for _, d := range batch.Categories {
		categories.rows = append(categories.rows, []any{d.CategoryID, d.CategoryName, d.SubcategoryID, d.SubcategoryName})
	}
	loads = append(loads, categories)

	statuses := dimensionLoad{
		table:       "Dim_Status",
		businessKey: "StatusId_BK",
		columns:     []string{"StatusId_BK", "Name"},
		updateCols:  []string{"Name"},
	}
	for _, d := range batch.Statuses {
		statuses.rows = append(statuses.rows, []any{d.StatusID, d.Name})
	}
	loads = append(loads, statuses)

	priorities := dimensionLoad{
		table:       "Dim_Priorities",
		businessKey: "PriorityId_BK",
		columns:     []string{"PriorityId_BK", "Name", "Weight"},
		updateCols:  []string{"Name", "Weight"},
	}
	for _, d := range batch.Priorities {
		priorities.rows = append(priorities.rows, []any{d.PriorityID, d.Name, d.Weight})
	}
	loads = append(loads, priorities)

	tags := dimensionLoad{
		table:       "Dim_Tags",
		businessKey: "TagId_BK",
		columns:     []string{"TagId_BK", "Name"},
		updateCols:  []string{"Name"},
	}
	for _, d := range batch.Tags {
		tags.rows = append(tags.rows, []any{d.TagID, d.Name})
	}
	loads = append(loads, tags)

	tickets := dimensionLoad{
		table:       "Dim_Tickets",
		businessKey: "TicketId_BK",
		columns:     []string{"TicketId_BK", "Channel"},
		updateCols:  []string{"Channel"},
	}
	for _, d := range batch.Tickets {
		tickets.rows = append(tickets.rows, []any{d.TicketID, d.Channel})
	}
	loads = append(loads, tickets)

	return loads
}
