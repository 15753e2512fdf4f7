package models

// TicketDocument is the denormalized search document, one per ticket. The
// json tags match the index mapping field names; identity is TicketID.
type TicketDocument struct {
	TicketID      string                 `json:"ticket_id"`
	Title         *string                `json:"title"`
	Description   *string                `json:"description"`
	Channel       *string                `json:"channel"`
	Device        *string                `json:"device"`
	CurrentStatus *int64                 `json:"current_status"`
	SLAPlan       *int64                 `json:"sla_plan"`
	Priority      *int64                 `json:"priority"`
	Dates         DocumentDates          `json:"dates"`
	Company       DocumentCompany        `json:"company"`
	CreatedByUser DocumentUser           `json:"created_by_user"`
	AssignedAgent DocumentAgent          `json:"assigned_agent"`
	Product       DocumentProduct        `json:"product"`
	Category      DocumentRef            `json:"category"`
	Subcategory   DocumentRef            `json:"subcategory"`
	Attachments   []DocumentAttachment   `json:"attachments"`
	Tags          []string               `json:"tags"`
	StatusHistory []DocumentStatusChange `json:"status_history"`
	AuditLogs     []DocumentAuditLog     `json:"audit_logs"`
	SLAMetrics    DocumentSLAMetrics     `json:"sla_metrics"`
	SearchText    string                 `json:"search_text"`
}

// DocumentDates holds the three lifecycle timestamps preformatted as
// "YYYY-MM-DD HH:MM:SS" strings, nil when absent.
type DocumentDates struct {
	CreatedAt       *string `json:"created_at"`
	FirstResponseAt *string `json:"first_response_at"`
	ClosedAt        *string `json:"closed_at"`
}

type DocumentCompany struct {
	ID      *int64  `json:"id"`
	Name    *string `json:"name"`
	CNPJ    *string `json:"cnpj"`
	Segment *string `json:"segment"`
}

type DocumentUser struct {
	ID       *int64  `json:"id"`
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	CPF      *string `json:"cpf"`
	IsVIP    bool    `json:"is_vip"`
}

type DocumentAgent struct {
	ID         *int64  `json:"id"`
	FullName   *string `json:"full_name"`
	Email      *string `json:"email"`
	Department *string `json:"department"`
}

type DocumentProduct struct {
	ID          *int64  `json:"id"`
	Name        *string `json:"name"`
	Code        *string `json:"code"`
	Description *string `json:"description"`
}

// DocumentRef is a bare id/name pair used for category and subcategory.
type DocumentRef struct {
	ID   *int64  `json:"id"`
	Name *string `json:"name"`
}

type DocumentAttachment struct {
	ID          int64   `json:"id"`
	Filename    *string `json:"filename"`
	MimeType    *string `json:"mime_type"`
	SizeBytes   *int64  `json:"size_bytes"`
	StoragePath *string `json:"storage_path"`
	UploadedAt  *string `json:"uploaded_at"`
}

type DocumentStatusChange struct {
	FromStatus         *int64  `json:"from_status"`
	ToStatus           *int64  `json:"to_status"`
	ChangedAt          *string `json:"changed_at"`
	ChangedByAgentID   *int64  `json:"changed_by_agent_id"`
	ChangedByAgentName *string `json:"changed_by_agent_name"`
}

// DocumentAuditLog carries the audit record with its details parsed from
// embedded JSON text into a structured object (empty object on failure).
type DocumentAuditLog struct {
	EntityType  *string        `json:"entity_type"`
	EntityID    *int64         `json:"entity_id"`
	Operation   *string        `json:"operation"`
	PerformedBy *string        `json:"performed_by"`
	PerformedAt *string        `json:"performed_at"`
	Details     map[string]any `json:"details"`
}

// DocumentSLAMetrics holds the derived SLA fields. Minute deltas are floor
// integer minutes, nil when either endpoint timestamp is missing.
type DocumentSLAMetrics struct {
	FirstResponseTimeMinutes *int `json:"first_response_time_minutes"`
	ResolutionTimeMinutes    *int `json:"resolution_time_minutes"`
	FirstResponseSLABreached bool `json:"first_response_sla_breached"`
	ResolutionSLABreached    bool `json:"resolution_sla_breached"`
}
