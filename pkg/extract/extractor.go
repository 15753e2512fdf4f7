// Package extract pulls ticket data out of the operational database: the
// base ticket projection plus four 1:N related collections, each grouped
// by ticket id.
package extract

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/chunker"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const baseTicketSelect = `
	t.TicketId as ticket_id,
	t.Title as title,
	t.Description as description,
	t.Channel as channel,
	t.Device as device,
	t.CurrentStatusId as current_status,
	t.SLAPlanId as sla_plan,
	t.PriorityId as priority,
	t.CreatedAt as created_at,
	t.FirstResponseAt as first_response_at,
	t.ClosedAt as closed_at,
	c.CompanyId as company_id,
	c.Name as company_name,
	c.CNPJ as company_cnpj,
	c.Segmento as company_segment,
	u.UserId as user_id,
	u.FullName as user_full_name,
	u.Email as user_email,
	u.Phone as user_phone,
	u.CPF as user_cpf,
	u.IsVIP as user_is_vip,
	a.AgentId as agent_id,
	a.FullName as agent_full_name,
	a.Email as agent_email,
	a.DepartmentId as agent_department,
	p.ProductId as product_id,
	p.Name as product_name,
	p.Code as product_code,
	p.Description as product_description,
	cat.CategoryId as category_id,
	cat.Name as category_name,
	sub.SubcategoryId as subcategory_id,
	sub.Name as subcategory_name,
	sla.Name as sla_plan_name,
	sla.FirstResponseMins as sla_first_response_mins,
	sla.ResolutionMins as sla_resolution_mins`

const baseTicketJoins = `
FROM Tickets t
LEFT JOIN Companies c ON t.CompanyId = c.CompanyId
LEFT JOIN Users u ON t.CreatedByUserId = u.UserId
LEFT JOIN Agents a ON t.AssignedAgentId = a.AgentId
LEFT JOIN Products p ON t.ProductId = p.ProductId
LEFT JOIN Categories cat ON t.CategoryId = cat.CategoryId
LEFT JOIN Subcategories sub ON t.SubcategoryId = sub.SubcategoryId
LEFT JOIN SLA_Plans sla ON t.SLAPlanId = sla.SLAPlanId`

const attachmentsQuery = `
SELECT
	AttachmentId as id,
	TicketId as ticket_id,
	FileName as filename,
	MimeType as mime_type,
	SizeBytes as size_bytes,
	StoragePath as storage_path,
	UploadedAt as uploaded_at
FROM Attachments
WHERE TicketId IN (?)`

const tagsQuery = `
SELECT
	tt.TicketId as ticket_id,
	t.TagId as tag_id,
	t.Name as tag_name
FROM TicketTags tt
JOIN Tags t ON tt.TagId = t.TagId
WHERE tt.TicketId IN (?)`

const statusHistoryQuery = `
SELECT
	tsh.TicketId as ticket_id,
	tsh.FromStatusId as from_status,
	tsh.ToStatusId as to_status,
	tsh.ChangedAt as changed_at,
	tsh.ChangedByAgentId as changed_by_agent_id,
	a.FullName as changed_by_agent_name
FROM TicketStatusHistory tsh
LEFT JOIN Agents a ON tsh.ChangedByAgentId = a.AgentId
WHERE tsh.TicketId IN (?)`

const auditLogsQuery = `
SELECT
	al.EntityId as ticket_id,
	al.AuditId as id,
	al.EntityType as entity_type,
	al.EntityId as entity_id,
	al.Operation as operation,
	al.PerformedBy as performed_by,
	al.PerformedAt as performed_at,
	al.DetailsJson as details
FROM AuditLogs al
WHERE al.EntityType = 'ticket' AND al.EntityId IN (?)`

// Queryer matches the read surface the extractor needs from the source
// database connection.
type Queryer interface {
	Rebind(query string) string
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Extractor reads tickets and their related collections from the source
// database. It only ever issues SELECTs.
type Extractor struct {
	db     Queryer
	chunks *chunker.Executor
	logger ectologger.Logger
	limit  int
}

// NewExtractor creates an Extractor. limit caps the base projection row
// count; zero means unbounded.
func NewExtractor(db Queryer, chunks *chunker.Executor, logger ectologger.Logger, limit int) *Extractor {
	return &Extractor{
		db:     db,
		chunks: chunks,
		logger: logger,
		limit:  limit,
	}
}

// GetTicketsBaseData selects the joined base projection, optionally
// restricted to an explicit ticket id list, newest first.
func (e *Extractor) GetTicketsBaseData(ctx context.Context, ticketIDs []int64) ([]models.TicketRow, error) {
	ctx, span := tracing.StartSpan(ctx, "extract.Extractor.GetTicketsBaseData")
	defer span.End()

	top := ""
	if e.limit > 0 {
		top = fmt.Sprintf("TOP %d ", e.limit)
	}

	query := "SELECT " + top + baseTicketSelect + baseTicketJoins

	var args []any
	if len(ticketIDs) > 0 {
		inQuery, inArgs, err := sqlx.In(query+"\nWHERE t.TicketId IN (?)", ticketIDs)
		if err != nil {
			return nil, errors.Wrap(err, "failed to expand ticket id filter")
		}
		query = inQuery
		args = inArgs
	}
	query += "\nORDER BY t.CreatedAt DESC"

	var rows []models.TicketRow
	if err := e.db.SelectContext(ctx, &rows, e.db.Rebind(query), args...); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to select base ticket projection")
		return nil, errors.Wrap(err, "failed to select base ticket projection")
	}

	return rows, nil
}

// GetAttachments fetches attachments for the given tickets, grouped by
// ticket id.
func (e *Extractor) GetAttachments(ctx context.Context, ticketIDs []int64) (map[int64][]models.Attachment, error) {
	ctx, span := tracing.StartSpan(ctx, "extract.Extractor.GetAttachments")
	defer span.End()

	rows, err := chunker.SelectIn[models.Attachment](ctx, e.chunks, attachmentsQuery, ticketIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to select attachments")
	}

	grouped := make(map[int64][]models.Attachment)
	for _, row := range rows {
		grouped[row.TicketID] = append(grouped[row.TicketID], row)
	}
	return grouped, nil
}

// GetTags fetches tag assignments for the given tickets, grouped by
// ticket id.
func (e *Extractor) GetTags(ctx context.Context, ticketIDs []int64) (map[int64][]models.TagRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "extract.Extractor.GetTags")
	defer span.End()

	rows, err := chunker.SelectIn[models.TagRecord](ctx, e.chunks, tagsQuery, ticketIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to select tags")
	}

	grouped := make(map[int64][]models.TagRecord)
	for _, row := range rows {
		grouped[row.TicketID] = append(grouped[row.TicketID], row)
	}
	return grouped, nil
}

// GetStatusHistory fetches status transitions for the given tickets,
// grouped by ticket id.
func (e *Extractor) GetStatusHistory(ctx context.Context, ticketIDs []int64) (map[int64][]models.StatusHistoryEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "extract.Extractor.GetStatusHistory")
	defer span.End()

	rows, err := chunker.SelectIn[models.StatusHistoryEntry](ctx, e.chunks, statusHistoryQuery, ticketIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to select status history")
	}

	grouped := make(map[int64][]models.StatusHistoryEntry)
	for _, row := range rows {
		grouped[row.TicketID] = append(grouped[row.TicketID], row)
	}
	return grouped, nil
}

// GetAuditLogs fetches ticket-scoped audit records, grouped by ticket id.
func (e *Extractor) GetAuditLogs(ctx context.Context, ticketIDs []int64) (map[int64][]models.AuditLogEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "extract.Extractor.GetAuditLogs")
	defer span.End()

	rows, err := chunker.SelectIn[models.AuditLogEntry](ctx, e.chunks, auditLogsQuery, ticketIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to select audit logs")
	}

	grouped := make(map[int64][]models.AuditLogEntry)
	for _, row := range rows {
		grouped[row.TicketID] = append(grouped[row.TicketID], row)
	}
	return grouped, nil
}

// ExtractCompleteTicketsData runs the full extraction pass: the base
// projection followed by the four related collections keyed by the
// extracted ticket ids. When the base projection is empty the related
// queries are skipped entirely.
func (e *Extractor) ExtractCompleteTicketsData(ctx context.Context, ticketIDs []int64) (*models.ExtractedData, error) {
	ctx, span := tracing.StartSpan(ctx, "extract.Extractor.ExtractCompleteTicketsData")
	defer span.End()

	data := models.NewExtractedData()

	tickets, err := e.GetTicketsBaseData(ctx, ticketIDs)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		e.logger.WithContext(ctx).Info("No tickets extracted, skipping related collections")
		return data, nil
	}
	data.Tickets = tickets

	extractedIDs := make([]int64, 0, len(tickets))
	for _, t := range tickets {
		extractedIDs = append(extractedIDs, t.TicketID)
	}

	if data.Attachments, err = e.GetAttachments(ctx, extractedIDs); err != nil {
		return nil, err
	}
	if data.Tags, err = e.GetTags(ctx, extractedIDs); err != nil {
		return nil, err
	}
	if data.StatusHistory, err = e.GetStatusHistory(ctx, extractedIDs); err != nil {
		return nil, err
	}
	if data.AuditLogs, err = e.GetAuditLogs(ctx, extractedIDs); err != nil {
		return nil, err
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"tickets":        len(data.Tickets),
		"attachments":    len(data.Attachments),
		"tags":           len(data.Tags),
		"status_history": len(data.StatusHistory),
		"audit_logs":     len(data.AuditLogs),
	}).Info("Extraction complete")

	return data, nil
}
