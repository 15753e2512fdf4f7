package models

// SentinelTagID is the tag business key attached to fact rows of tickets
// that carry no tags, so the grain stays one row per (ticket, tag).
const SentinelTagID int64 = -1

// DimCompany row, business key CompanyId.
type DimCompany struct {
	CompanyID int64
	Name      *string
	Segmento  *string
	CNPJ      *string
}

// DimUser row, business key UserId. CompanyID carries the user's company
// business key as a plain attribute.
type DimUser struct {
	UserID    int64
	FullName  *string
	CompanyID *int64
	IsVIP     *bool
}

// DimAgent row, business key AgentId.
type DimAgent struct {
	AgentID        int64
	FullName       *string
	DepartmentName *string
	IsActive       bool
}

// DimProduct row, business key ProductId.
type DimProduct struct {
	ProductID int64
	Name      *string
	Code      *string
	IsActive  bool
}

// DimCategory row, business key CategoryId. Subcategory fields are
// attributes of the category row.
type DimCategory struct {
	CategoryID      int64
	CategoryName    *string
	SubcategoryID   *int64
	SubcategoryName *string
}

// DimStatus row, business key StatusId. The source has no status display
// name, so one is synthesized.
type DimStatus struct {
	StatusID int64
	Name     string
}

// DimPriority row, business key PriorityId, with a synthesized name.
type DimPriority struct {
	PriorityID int64
	Name       string
	Weight     int
}

// DimTag row, business key TagId.
type DimTag struct {
	TagID int64
	Name  string
}

// DimTicket row, business key TicketId.
type DimTicket struct {
	TicketID int64
	Channel  *string
}

// DimDate is a minute-granularity date tuple. The warehouse assigns the
// surrogate key; the tuple itself is the natural key.
type DimDate struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
}

// FactTicket is one row of the fact grain: one ticket × one tag. TagID is
// SentinelTagID for tickets without tags. The three date tuples are nil
// when the corresponding timestamp was absent or unparseable.
type FactTicket struct {
	TicketID   int64
	UserID     *int64
	AgentID    *int64
	CompanyID  *int64
	CategoryID *int64
	PriorityID *int64
	StatusID   *int64
	ProductID  *int64
	TagID      int64
	QtTickets  int

	CreatedDate       *DimDate
	FirstResponseDate *DimDate
	ClosedDate        *DimDate
}

// StarBatch is one transformed run: every dimension deduplicated by its
// business key, plus the exploded fact rows.
type StarBatch struct {
	Companies  []DimCompany
	Users      []DimUser
	Agents     []DimAgent
	Products   []DimProduct
	Categories []DimCategory
	Statuses   []DimStatus
	Priorities []DimPriority
	Tags       []DimTag
	Tickets    []DimTicket
	Dates      []DimDate
	Facts      []FactTicket
}

// Empty reports whether the batch holds no fact rows and no dimension rows.
func (b *StarBatch) Empty() bool {
	return b == nil || (len(b.Facts) == 0 && len(b.Tickets) == 0)
}
