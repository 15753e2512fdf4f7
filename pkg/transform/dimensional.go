// Package transform converts the flat extraction into the two target
// shapes: star-schema batches for the warehouse and nested documents for
// the search index.
package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// DimensionalTransformer builds the star-schema batch: dimensions
// deduplicated by business key plus fact rows exploded per (ticket, tag).
type DimensionalTransformer struct {
	logger ectologger.Logger
}

func NewDimensionalTransformer(logger ectologger.Logger) *DimensionalTransformer {
	return &DimensionalTransformer{logger: logger}
}

// Transform derives every dimension and the fact rows from one extraction
// pass. An empty extraction yields an empty batch.
func (t *DimensionalTransformer) Transform(ctx context.Context, data *models.ExtractedData) *models.StarBatch {
	ctx, span := tracing.StartSpan(ctx, "transform.DimensionalTransformer.Transform")
	defer span.End()

	batch := &models.StarBatch{}
	if data == nil || len(data.Tickets) == 0 {
		return batch
	}

	batch.Companies = buildDimCompanies(data.Tickets)
	batch.Users = buildDimUsers(data.Tickets)
	batch.Agents = buildDimAgents(data.Tickets)
	batch.Products = buildDimProducts(data.Tickets)
	batch.Categories = buildDimCategories(data.Tickets)
	batch.Statuses = buildDimStatuses(data.Tickets)
	batch.Priorities = buildDimPriorities(data.Tickets)
	batch.Tags = buildDimTags(data.Tags)
	batch.Tickets = buildDimTickets(data.Tickets)
	batch.Dates = buildDimDates(data.Tickets)
	batch.Facts = buildFacts(data)

	t.logger.WithContext(ctx).WithFields(map[string]any{
		"companies": len(batch.Companies),
		"users":     len(batch.Users),
		"agents":    len(batch.Agents),
		"tags":      len(batch.Tags),
		"dates":     len(batch.Dates),
		"facts":     len(batch.Facts),
	}).Info("Dimensional transform complete")

	return batch
}

func buildDimCompanies(tickets []models.TicketRow) []models.DimCompany {
	seen := make(map[int64]bool)
	var dims []models.DimCompany
	for _, t := range tickets {
		if t.CompanyID == nil || seen[*t.CompanyID] {
			continue
		}
		seen[*t.CompanyID] = true
		dims = append(dims, models.DimCompany{
			CompanyID: *t.CompanyID,
			Name:      t.CompanyName,
			Segmento:  t.CompanySegment,
			CNPJ:      t.CompanyCNPJ,
		})
	}
	return dims
}

func buildDimUsers(tickets []models.TicketRow) []models.DimUser {
	seen := make(map[int64]bool)
	var dims []models.DimUser
	for _, t := range tickets {
		if t.UserID == nil || seen[*t.UserID] {
			continue
		}
		seen[*t.UserID] = true
		dims = append(dims, models.DimUser{
			UserID:    *t.UserID,
			FullName:  t.UserFullName,
			CompanyID: t.CompanyID,
			IsVIP:     t.UserIsVIP,
		})
	}
	return dims
}

func buildDimAgents(tickets []models.TicketRow) []models.DimAgent {
	seen := make(map[int64]bool)
	var dims []models.DimAgent
	for _, t := range tickets {
		if t.AgentID == nil || seen[*t.AgentID] {
			continue
		}
		seen[*t.AgentID] = true
		dims = append(dims, models.DimAgent{
			AgentID:        *t.AgentID,
			FullName:       t.AgentFullName,
			DepartmentName: t.AgentDepartment,
			IsActive:       true,
		})
	}
	return dims
}

func buildDimProducts(tickets []models.TicketRow) []models.DimProduct {
	seen := make(map[int64]bool)
	var dims []models.DimProduct
	for _, t := range tickets {
		if t.ProductID == nil || seen[*t.ProductID] {
			continue
		}
		seen[*t.ProductID] = true
		dims = append(dims, models.DimProduct{
			ProductID: *t.ProductID,
			Name:      t.ProductName,
			Code:      t.ProductCode,
			IsActive:  true,
		})
	}
	return dims
}

func buildDimCategories(tickets []models.TicketRow) []models.DimCategory {
	seen := make(map[int64]bool)
	var dims []models.DimCategory
	for _, t := range tickets {
		if t.CategoryID == nil || seen[*t.CategoryID] {
			continue
		}
		seen[*t.CategoryID] = true
		dims = append(dims, models.DimCategory{
			CategoryID:      *t.CategoryID,
			CategoryName:    t.CategoryName,
			SubcategoryID:   t.SubcategoryID,
			SubcategoryName: t.SubcategoryName,
		})
	}
	return dims
}

// The source carries no status display name; one is synthesized from the id.
func buildDimStatuses(tickets []models.TicketRow) []models.DimStatus {
	seen := make(map[int64]bool)
	var dims []models.DimStatus
	for _, t := range tickets {
		if t.CurrentStatusID == nil || seen[*t.CurrentStatusID] {
			continue
		}
		seen[*t.CurrentStatusID] = true
		dims = append(dims, models.DimStatus{
			StatusID: *t.CurrentStatusID,
			Name:     fmt.Sprintf("Status_%d", *t.CurrentStatusID),
		})
	}
	return dims
}

func buildDimPriorities(tickets []models.TicketRow) []models.DimPriority {
	seen := make(map[int64]bool)
	var dims []models.DimPriority
	for _, t := range tickets {
		if t.PriorityID == nil || seen[*t.PriorityID] {
			continue
		}
		seen[*t.PriorityID] = true
		dims = append(dims, models.DimPriority{
			PriorityID: *t.PriorityID,
			Name:       fmt.Sprintf("Priority_%d", *t.PriorityID),
			Weight:     0,
		})
	}
	return dims
}

func buildDimTags(tags map[int64][]models.TagRecord) []models.DimTag {
	seen := make(map[int64]bool)
	var dims []models.DimTag
	for _, records := range tags {
		for _, r := range records {
			if seen[r.TagID] {
				continue
			}
			seen[r.TagID] = true
			dims = append(dims, models.DimTag{TagID: r.TagID, Name: r.TagName})
		}
	}
	return dims
}

func buildDimTickets(tickets []models.TicketRow) []models.DimTicket {
	seen := make(map[int64]bool)
	var dims []models.DimTicket
	for _, t := range tickets {
		if seen[t.TicketID] {
			continue
		}
		seen[t.TicketID] = true
		dims = append(dims, models.DimTicket{TicketID: t.TicketID, Channel: t.Channel})
	}
	return dims
}

// buildDimDates unions the three lifecycle timestamps across all tickets,
// decomposes them to minute granularity and deduplicates the tuples.
func buildDimDates(tickets []models.TicketRow) []models.DimDate {
	seen := make(map[models.DimDate]bool)
	var dims []models.DimDate
	add := func(ts *time.Time) {
		tuple := DateTuple(ts)
		if tuple == nil || seen[*tuple] {
			return
		}
		seen[*tuple] = true
		dims = append(dims, *tuple)
	}
	for _, t := range tickets {
		add(t.CreatedAt)
		add(t.FirstResponseAt)
		add(t.ClosedAt)
	}
	return dims
}

// DateTuple decomposes a timestamp to its minute-granularity date tuple.
// Nil in, nil out.
func DateTuple(ts *time.Time) *models.DimDate {
	if ts == nil {
		return nil
	}
	return &models.DimDate{
		Year:   ts.Year(),
		Month:  int(ts.Month()),
		Day:    ts.Day(),
		Hour:   ts.Hour(),
		Minute: ts.Minute(),
	}
}

// buildFacts explodes each ticket by its tag list. A ticket without tags
// still yields one row, keyed by the sentinel tag.
func buildFacts(data *models.ExtractedData) []models.FactTicket {
	var facts []models.FactTicket
	for _, t := range data.Tickets {
		base := models.FactTicket{
			TicketID:          t.TicketID,
			UserID:            t.UserID,
			AgentID:           t.AgentID,
			CompanyID:         t.CompanyID,
			CategoryID:        t.CategoryID,
			PriorityID:        t.PriorityID,
			StatusID:          t.CurrentStatusID,
			ProductID:         t.ProductID,
			TagID:             models.SentinelTagID,
			QtTickets:         1,
			CreatedDate:       DateTuple(t.CreatedAt),
			FirstResponseDate: DateTuple(t.FirstResponseAt),
			ClosedDate:        DateTuple(t.ClosedAt),
		}

		tags := data.Tags[t.TicketID]
		if len(tags) == 0 {
			facts = append(facts, base)
			continue
		}
		for _, tag := range tags {
			row := base
			row.TagID = tag.TagID
			facts = append(facts, row)
		}
	}
	return facts
}
