package transform

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// timestampLayout is the fixed wire format for every date field in the
// search index.
const timestampLayout = "2006-01-02 15:04:05"

// DocumentTransformer builds one denormalized search document per ticket.
type DocumentTransformer struct {
	logger ectologger.Logger
}

func NewDocumentTransformer(logger ectologger.Logger) *DocumentTransformer {
	return &DocumentTransformer{logger: logger}
}

// Transform converts one extraction pass into search documents. Related
// collections missing for a ticket become empty arrays, never null.
func (t *DocumentTransformer) Transform(ctx context.Context, data *models.ExtractedData) []models.TicketDocument {
	ctx, span := tracing.StartSpan(ctx, "transform.DocumentTransformer.Transform")
	defer span.End()

	if data == nil || len(data.Tickets) == 0 {
		return []models.TicketDocument{}
	}

	docs := make([]models.TicketDocument, 0, len(data.Tickets))
	for _, ticket := range data.Tickets {
		docs = append(docs, buildDocument(ticket, data))
	}

	t.logger.WithContext(ctx).WithField("documents", len(docs)).Info("Document transform complete")
	return docs
}

func buildDocument(ticket models.TicketRow, data *models.ExtractedData) models.TicketDocument {
	return models.TicketDocument{
		TicketID:      strconv.FormatInt(ticket.TicketID, 10),
		Title:         ticket.Title,
		Description:   ticket.Description,
		Channel:       ticket.Channel,
		Device:        ticket.Device,
		CurrentStatus: ticket.CurrentStatusID,
		SLAPlan:       ticket.SLAPlanID,
		Priority:      ticket.PriorityID,
		Dates: models.DocumentDates{
			CreatedAt:       FormatTimestamp(ticket.CreatedAt),
			FirstResponseAt: FormatTimestamp(ticket.FirstResponseAt),
			ClosedAt:        FormatTimestamp(ticket.ClosedAt),
		},
		Company: models.DocumentCompany{
			ID:      ticket.CompanyID,
			Name:    ticket.CompanyName,
			CNPJ:    ticket.CompanyCNPJ,
			Segment: ticket.CompanySegment,
		},
		CreatedByUser: models.DocumentUser{
			ID:       ticket.UserID,
			FullName: ticket.UserFullName,
			Email:    ticket.UserEmail,
			Phone:    ticket.UserPhone,
			CPF:      ticket.UserCPF,
			IsVIP:    ticket.UserIsVIP != nil && *ticket.UserIsVIP,
		},
		AssignedAgent: models.DocumentAgent{
			ID:         ticket.AgentID,
			FullName:   ticket.AgentFullName,
			Email:      ticket.AgentEmail,
			Department: ticket.AgentDepartment,
		},
		Product: models.DocumentProduct{
			ID:          ticket.ProductID,
			Name:        ticket.ProductName,
			Code:        ticket.ProductCode,
			Description: ticket.ProductDescription,
		},
		Category: models.DocumentRef{
			ID:   ticket.CategoryID,
			Name: ticket.CategoryName,
		},
		Subcategory: models.DocumentRef{
			ID:   ticket.SubcategoryID,
			Name: ticket.SubcategoryName,
		},
		Attachments:   buildDocAttachments(data.Attachments[ticket.TicketID]),
		Tags:          buildDocTags(data.Tags[ticket.TicketID]),
		StatusHistory: buildDocStatusHistory(data.StatusHistory[ticket.TicketID]),
		AuditLogs:     buildDocAuditLogs(data.AuditLogs[ticket.TicketID]),
		SLAMetrics:    CalculateSLAMetrics(ticket),
		SearchText:    BuildSearchText(ticket),
	}
}

// FormatTimestamp renders a timestamp in the index wire format, nil in,
// nil out.
func FormatTimestamp(ts *time.Time) *string {
	if ts == nil {
		return nil
	}
	formatted := ts.Format(timestampLayout)
	return &formatted
}

// CalculateSLAMetrics derives the response/resolution minute deltas and
// breach flags. A delta is nil unless both endpoints are present; a breach
// flag is set only when the SLA plan carries a positive threshold and the
// raw delta exceeds it.
func CalculateSLAMetrics(ticket models.TicketRow) models.DocumentSLAMetrics {
	var metrics models.DocumentSLAMetrics

	if ticket.CreatedAt != nil && ticket.FirstResponseAt != nil {
		deltaMins := ticket.FirstResponseAt.Sub(*ticket.CreatedAt).Minutes()
		whole := int(deltaMins)
		metrics.FirstResponseTimeMinutes = &whole
		if ticket.SLAFirstResponseMins != nil && *ticket.SLAFirstResponseMins > 0 &&
			deltaMins > float64(*ticket.SLAFirstResponseMins) {
			metrics.FirstResponseSLABreached = true
		}
	}

	if ticket.CreatedAt != nil && ticket.ClosedAt != nil {
		deltaMins := ticket.ClosedAt.Sub(*ticket.CreatedAt).Minutes()
		whole := int(deltaMins)
		metrics.ResolutionTimeMinutes = &whole
		if ticket.SLAResolutionMins != nil && *ticket.SLAResolutionMins > 0 &&
			deltaMins > float64(*ticket.SLAResolutionMins) {
			metrics.ResolutionSLABreached = true
		}
	}

	return metrics
}

// BuildSearchText concatenates the searchable text fields with single
// spaces, skipping empties.
func BuildSearchText(ticket models.TicketRow) string {
	fields := []*string{
		ticket.Title,
		ticket.Description,
		ticket.CompanyName,
		ticket.UserFullName,
		ticket.AgentFullName,
		ticket.ProductName,
		ticket.CategoryName,
		ticket.SubcategoryName,
	}

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == nil {
			continue
		}
		if trimmed := strings.TrimSpace(*f); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

func buildDocAttachments(attachments []models.Attachment) []models.DocumentAttachment {
	docs := make([]models.DocumentAttachment, 0, len(attachments))
	for _, a := range attachments {
		docs = append(docs, models.DocumentAttachment{
			ID:          a.ID,
			Filename:    a.Filename,
			MimeType:    a.MimeType,
			SizeBytes:   a.SizeBytes,
			StoragePath: a.StoragePath,
			UploadedAt:  FormatTimestamp(a.UploadedAt),
		})
	}
	return docs
}

func buildDocTags(tags []models.TagRecord) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.TagName)
	}
	return names
}

func buildDocStatusHistory(history []models.StatusHistoryEntry) []models.DocumentStatusChange {
	docs := make([]models.DocumentStatusChange, 0, len(history))
	for _, h := range history {
		docs = append(docs, models.DocumentStatusChange{
			FromStatus:         h.FromStatusID,
			ToStatus:           h.ToStatusID,
			ChangedAt:          FormatTimestamp(h.ChangedAt),
			ChangedByAgentID:   h.ChangedByAgentID,
			ChangedByAgentName: h.ChangedByAgentName,
		})
	}
	return docs
}

func buildDocAuditLogs(logs []models.AuditLogEntry) []models.DocumentAuditLog {
	docs := make([]models.DocumentAuditLog, 0, len(logs))
	for _, l := range logs {
		docs = append(docs, models.DocumentAuditLog{
			EntityType:  l.EntityType,
			EntityID:    l.EntityID,
			Operation:   l.Operation,
			PerformedBy: l.PerformedBy,
			PerformedAt: FormatTimestamp(l.PerformedAt),
			Details:     parseDetails(l.Details),
		})
	}
	return docs
}

// parseDetails decodes the embedded JSON details text, defaulting to an
// empty object when absent or malformed.
func parseDetails(raw *string) map[string]any {
	details := map[string]any{}
	if raw == nil || *raw == "" {
		return details
	}
	if err := json.Unmarshal([]byte(*raw), &details); err != nil {
		return map[string]any{}
	}
	return details
}
