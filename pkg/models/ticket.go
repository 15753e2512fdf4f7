package models

import "time"

// TicketRow is the flat base projection of a ticket joined with its
// reference entities. Column aliases match the extraction query; joined
// columns are pointers because every join is a LEFT JOIN.
type TicketRow struct {
	TicketID        int64      `db:"ticket_id"`
	Title           *string    `db:"title"`
	Description     *string    `db:"description"`
	Channel         *string    `db:"channel"`
	Device          *string    `db:"device"`
	CurrentStatusID *int64     `db:"current_status"`
	SLAPlanID       *int64     `db:"sla_plan"`
	PriorityID      *int64     `db:"priority"`
	CreatedAt       *time.Time `db:"created_at"`
	FirstResponseAt *time.Time `db:"first_response_at"`
	ClosedAt        *time.Time `db:"closed_at"`

	CompanyID      *int64  `db:"company_id"`
	CompanyName    *string `db:"company_name"`
	CompanyCNPJ    *string `db:"company_cnpj"`
	CompanySegment *string `db:"company_segment"`

	UserID       *int64  `db:"user_id"`
	UserFullName *string `db:"user_full_name"`
	UserEmail    *string `db:"user_email"`
	UserPhone    *string `db:"user_phone"`
	UserCPF      *string `db:"user_cpf"`
	UserIsVIP    *bool   `db:"user_is_vip"`

	AgentID         *int64  `db:"agent_id"`
	AgentFullName   *string `db:"agent_full_name"`
	AgentEmail      *string `db:"agent_email"`
	AgentDepartment *string `db:"agent_department"`

	ProductID          *int64  `db:"product_id"`
	ProductName        *string `db:"product_name"`
	ProductCode        *string `db:"product_code"`
	ProductDescription *string `db:"product_description"`

	CategoryID      *int64  `db:"category_id"`
	CategoryName    *string `db:"category_name"`
	SubcategoryID   *int64  `db:"subcategory_id"`
	SubcategoryName *string `db:"subcategory_name"`

	SLAPlanName          *string `db:"sla_plan_name"`
	SLAFirstResponseMins *int64  `db:"sla_first_response_mins"`
	SLAResolutionMins    *int64  `db:"sla_resolution_mins"`
}

// Attachment is one file attached to a ticket.
type Attachment struct {
	ID          int64      `db:"id"`
	TicketID    int64      `db:"ticket_id"`
	Filename    *string    `db:"filename"`
	MimeType    *string    `db:"mime_type"`
	SizeBytes   *int64     `db:"size_bytes"`
	StoragePath *string    `db:"storage_path"`
	UploadedAt  *time.Time `db:"uploaded_at"`
}

// TagRecord is one (ticket, tag) assignment with the tag's attributes.
type TagRecord struct {
	TicketID int64  `db:"ticket_id"`
	TagID    int64  `db:"tag_id"`
	TagName  string `db:"tag_name"`
}

// StatusHistoryEntry is one status transition of a ticket.
type StatusHistoryEntry struct {
	TicketID           int64      `db:"ticket_id"`
	FromStatusID       *int64     `db:"from_status"`
	ToStatusID         *int64     `db:"to_status"`
	ChangedAt          *time.Time `db:"changed_at"`
	ChangedByAgentID   *int64     `db:"changed_by_agent_id"`
	ChangedByAgentName *string    `db:"changed_by_agent_name"`
}

// AuditLogEntry is one audit record scoped to a ticket. Details carries the
// raw embedded JSON text; parsing is deferred to the document transform.
type AuditLogEntry struct {
	TicketID    int64      `db:"ticket_id"`
	AuditID     int64      `db:"id"`
	EntityType  *string    `db:"entity_type"`
	EntityID    *int64     `db:"entity_id"`
	Operation   *string    `db:"operation"`
	PerformedBy *string    `db:"performed_by"`
	PerformedAt *time.Time `db:"performed_at"`
	Details     *string    `db:"details"`
}

// ExtractedData aggregates one extraction pass: the base ticket rows plus
// the four related collections grouped by ticket id. The maps are always
// non-nil, even when the source returned nothing.
type ExtractedData struct {
	Tickets       []TicketRow
	Attachments   map[int64][]Attachment
	Tags          map[int64][]TagRecord
	StatusHistory map[int64][]StatusHistoryEntry
	AuditLogs     map[int64][]AuditLogEntry
}

// NewExtractedData returns an empty aggregate with all maps initialized.
func NewExtractedData() *ExtractedData {
	return &ExtractedData{
		Attachments:   make(map[int64][]Attachment),
		Tags:          make(map[int64][]TagRecord),
		StatusHistory: make(map[int64][]StatusHistoryEntry),
		AuditLogs:     make(map[int64][]AuditLogEntry),
	}
}
