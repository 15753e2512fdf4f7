package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/chunker"
	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	factTable       = "Fact_Tickets"
	dateLookupTable = "##Dim_Dates_lookup"
)

// factRow is a fully resolved fact record: every business key swapped for
// its warehouse surrogate key. TicketKey and UserKey are mandatory; the
// rest stay nil when unresolvable.
type factRow struct {
	TicketKey            int64
	UserKey              int64
	AgentKey             *int64
	CompanyKey           *int64
	CategoryKey          *int64
	PriorityKey          *int64
	StatusKey            *int64
	ProductKey           *int64
	TagKey               *int64
	EntryDateKey         *int64
	ClosedDateKey        *int64
	FirstResponseDateKey *int64
	QtTickets            int
}

func (r factRow) values() []any {
	return []any{
		r.TicketKey, r.UserKey, r.AgentKey, r.CompanyKey, r.CategoryKey,
		r.PriorityKey, r.StatusKey, r.ProductKey, r.TagKey,
		r.EntryDateKey, r.ClosedDateKey, r.FirstResponseDateKey, r.QtTickets,
	}
}

type keyPair struct {
	BK int64 `db:"bk"`
	SK int64 `db:"sk"`
}

// resolveKeys pulls the (business key -> surrogate key) pairs for exactly
// the keys present in the batch, one chunked query per dimension.
func resolveKeys(ctx context.Context, chunks *chunker.Executor, table, bkCol, skCol string, keys []int64) (map[int64]int64, error) {
	resolved := make(map[int64]int64, len(keys))
	if len(keys) == 0 {
		return resolved, nil
	}

	query := fmt.Sprintf("SELECT DISTINCT [%s] as bk, [%s] as sk FROM %s WHERE [%s] IN (?)", bkCol, skCol, table, bkCol)
	pairs, err := chunker.SelectIn[keyPair](ctx, chunks, query, keys)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve surrogate keys from %s", table)
	}

	for _, p := range pairs {
		resolved[p.BK] = p.SK
	}
	return resolved, nil
}

type dateKeyRow struct {
	DateKey int64 `db:"date_key"`
	Year    int   `db:"year"`
	Month   int   `db:"month"`
	Day     int   `db:"day"`
	Hour    int   `db:"hour"`
	Minute  int   `db:"minute"`
}

// resolveDateKeys stages the distinct date tuples of the batch into a
// session lookup table and joins it against Dim_Dates once, so date key
// resolution is a single set-based operation regardless of fact count.
func resolveDateKeys(ctx context.Context, sess Session, tuples []models.DimDate, batchSize int) (_ map[models.DimDate]int64, err error) {
	resolved := make(map[models.DimDate]int64, len(tuples))
	if len(tuples) == 0 {
		return resolved, nil
	}

	createSQL := fmt.Sprintf(
		"CREATE TABLE %s ([Year] INT, [Month] INT, [Day] INT, [Hour] INT, [Minute] INT)", dateLookupTable)
	if _, err = sess.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", dateLookupTable)); err != nil {
		return nil, errors.Wrap(err, "failed to clear date lookup table")
	}
	if _, err = sess.ExecContext(ctx, createSQL); err != nil {
		return nil, errors.Wrap(err, "failed to create date lookup table")
	}
	defer func() {
		if _, dropErr := sess.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", dateLookupTable)); dropErr != nil && err == nil {
			err = errors.Wrap(dropErr, "failed to drop date lookup table")
		}
	}()

	columns := []string{"Year", "Month", "Day", "Hour", "Minute"}
	rows := make([][]any, 0, len(tuples))
	for _, t := range tuples {
		rows = append(rows, []any{t.Year, t.Month, t.Day, t.Hour, t.Minute})
	}
	perBatch := rowsPerBatch(len(columns), batchSize)
	for start := 0; start < len(rows); start += perBatch {
		end := start + perBatch
		if end > len(rows) {
			end = len(rows)
		}
		ib := sqlbuilder.SQLServer.NewInsertBuilder()
		ib.InsertInto(dateLookupTable)
		ib.Cols(columns...)
		for _, row := range rows[start:end] {
			ib.Values(row...)
		}
		query, args := ib.Build()
		if _, err = sess.ExecContext(ctx, query, args...); err != nil {
			return nil, errors.Wrap(err, "failed to populate date lookup table")
		}
	}

	joinSQL := fmt.Sprintf(`SELECT d.DateKey as date_key,
	t.[Year] as [year], t.[Month] as [month], t.[Day] as [day], t.[Hour] as [hour], t.[Minute] as [minute]
FROM %s t
JOIN Dim_Dates d ON d.[Year] = t.[Year] AND d.[Month] = t.[Month] AND d.[Day] = t.[Day]
	AND d.[Hour] = t.[Hour] AND d.[Minute] = t.[Minute]`, dateLookupTable)

	var keyRows []dateKeyRow
	if err = sess.SelectContext(ctx, &keyRows, joinSQL); err != nil {
		return nil, errors.Wrap(err, "failed to join date lookup against Dim_Dates")
	}

	for _, row := range keyRows {
		tuple := models.DimDate{Year: row.Year, Month: row.Month, Day: row.Day, Hour: row.Hour, Minute: row.Minute}
		resolved[tuple] = row.DateKey
	}
	return resolved, nil
}

// surrogateKeyMaps holds every resolved dimension lookup for one batch.
type surrogateKeyMaps struct {
	tickets    map[int64]int64
	users      map[int64]int64
	agents     map[int64]int64
	companies  map[int64]int64
	categories map[int64]int64
	priorities map[int64]int64
	statuses   map[int64]int64
	products   map[int64]int64
	tags       map[int64]int64
	dates      map[models.DimDate]int64
}

func uniqueKeys(facts []models.FactTicket, get func(f models.FactTicket) *int64) []int64 {
	seen := make(map[int64]bool)
	var keys []int64
	for _, f := range facts {
		v := get(f)
		if v == nil || seen[*v] {
			continue
		}
		seen[*v] = true
		keys = append(keys, *v)
	}
	return keys
}

func uniqueDateTuples(facts []models.FactTicket) []models.DimDate {
	seen := make(map[models.DimDate]bool)
	var tuples []models.DimDate
	add := func(d *models.DimDate) {
		if d == nil || seen[*d] {
			return
		}
		seen[*d] = true
		tuples = append(tuples, *d)
	}
	for _, f := range facts {
		add(f.CreatedDate)
		add(f.FirstResponseDate)
		add(f.ClosedDate)
	}
	return tuples
}

func resolveAllKeys(ctx context.Context, sess Session, chunks *chunker.Executor, facts []models.FactTicket, batchSize int) (*surrogateKeyMaps, error) {
	keys := &surrogateKeyMaps{}
	var err error

	ticketIDs := uniqueKeys(facts, func(f models.FactTicket) *int64 { id := f.TicketID; return &id })
	if keys.tickets, err = resolveKeys(ctx, chunks, "Dim_Tickets", "TicketId_BK", "TicketKey", ticketIDs); err != nil {
		return nil, err
	}
	if keys.users, err = resolveKeys(ctx, chunks, "Dim_Users", "UserId_BK", "UserKey",
		uniqueKeys(facts, func(f models.FactTicket) *int64 { return f.UserID })); err != nil {
		return nil, err
	}
	if keys.agents, err = resolveKeys(ctx, chunks, "Dim_Agents", "AgentId_BK", "AgentKey",
		uniqueKeys(facts, func(f models.FactTicket) *int64 { return f.AgentID })); err != nil {
		return nil, err
	}
	if keys.companies, err = resolveKeys(ctx, chunks, "Dim_Companies", "CompanyId_BK", "CompanyKey",
		uniqueKeys(facts, func(f models.FactTicket) *int64 { return f.CompanyID })); err != nil {
		return nil, err
	}
	if keys.categories, err = resolveKeys(ctx, chunks, "Dim_Categories", "CategoryId_BK", "CategoryKey",
		uniqueKeys(facts, func(f models.FactTicket) *int64 { return f.CategoryID })); err != nil {
		return nil, err
	}
	if keys.priorities, err = resolveKeys(ctx, chunks, "Dim_Priorities", "PriorityId_BK", "PriorityKey",
		uniqueKeys(facts, func(f models.FactTicket) *int64 { return f.PriorityID })); err != nil {
		return nil, err
	}
	if keys.statuses, err = resolveKeys(ctx, chunks, "Dim_Status", "StatusId_BK", "StatusKey",
		uniqueKeys(facts, func(f models.FactTicket) *int64 { return f.StatusID })); err != nil {
		return nil, err
	}
	if keys.products, err = resolveKeys(ctx, chunks, "Dim_Products", "ProductId_BK", "ProductKey",
		uniqueKeys(facts, func(f models.FactTicket) *int64 { return f.ProductID })); err != nil {
		return nil, err
	}

	tagIDs := uniqueKeys(facts, func(f models.FactTicket) *int64 {
		if f.TagID == models.SentinelTagID {
			return nil
		}
		id := f.TagID
		return &id
	})
	if keys.tags, err = resolveKeys(ctx, chunks, "Dim_Tags", "TagId_BK", "TagKey", tagIDs); err != nil {
		return nil, err
	}

	if keys.dates, err = resolveDateKeys(ctx, sess, uniqueDateTuples(facts), batchSize); err != nil {
		return nil, err
	}

	return keys, nil
}

func lookupOptional(m map[int64]int64, bk *int64) *int64 {
	if bk == nil {
		return nil
	}
	sk, ok := m[*bk]
	if !ok {
		return nil
	}
	return &sk
}

func lookupDate(m map[models.DimDate]int64, tuple *models.DimDate) *int64 {
	if tuple == nil {
		return nil
	}
	sk, ok := m[*tuple]
	if !ok {
		return nil
	}
	return &sk
}

// resolveFacts joins the fact batch against the key maps in memory. Rows
// missing a mandatory ticket or user key are dropped; optional keys fall
// back to NULL (the sentinel tag always resolves to NULL).
func resolveFacts(facts []models.FactTicket, keys *surrogateKeyMaps) (rows []factRow, dropped int) {
	for _, f := range facts {
		ticketKey, ok := keys.tickets[f.TicketID]
		if !ok {
			dropped++
			continue
		}
		userKey := lookupOptional(keys.users, f.UserID)
		if userKey == nil {
			dropped++
			continue
		}

		var tagKey *int64
		if f.TagID != models.SentinelTagID {
			id := f.TagID
			tagKey = lookupOptional(keys.tags, &id)
		}

		rows = append(rows, factRow{
			TicketKey:            ticketKey,
			UserKey:              *userKey,
			AgentKey:             lookupOptional(keys.agents, f.AgentID),
			CompanyKey:           lookupOptional(keys.companies, f.CompanyID),
			CategoryKey:          lookupOptional(keys.categories, f.CategoryID),
			PriorityKey:          lookupOptional(keys.priorities, f.PriorityID),
			StatusKey:            lookupOptional(keys.statuses, f.StatusID),
			ProductKey:           lookupOptional(keys.products, f.ProductID),
			TagKey:               tagKey,
			EntryDateKey:         lookupDate(keys.dates, f.CreatedDate),
			ClosedDateKey:        lookupDate(keys.dates, f.ClosedDate),
			FirstResponseDateKey: lookupDate(keys.dates, f.FirstResponseDate),
			QtTickets:            f.QtTickets,
		})
	}
	return rows, dropped
}

// createFactStagingSQL builds the typed staging table for the fact merge.
func createFactStagingSQL() string {
	cols := make([]string, len(factColumns))
	for i, c := range factColumns {
		colType := "BIGINT"
		if c == "QtTickets" {
			colType = "INT"
		}
		cols[i] = fmt.Sprintf("[%s] %s", c, colType)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", stagingName(factTable), strings.Join(cols, ", "))
}

func factStagingIndexSQL() string {
	return fmt.Sprintf("CREATE INDEX IX_Fact_Tickets_stage ON %s([TicketKey], [TagKey])", stagingName(factTable))
}

// mergeFactSQL matches on (TicketKey, TagKey) with NULL-safe tag
// comparison and inserts only unmatched rows, so a rerun over unchanged
// source data adds nothing.
func mergeFactSQL() string {
	staging := stagingName(factTable)
	cols := quoteColumns(factColumns)
	sourceCols := make([]string, len(factColumns))
	for i, c := range factColumns {
		sourceCols[i] = "Source.[" + c + "]"
	}

	return fmt.Sprintf(`MERGE %s AS Target
USING %s AS Source
ON (Target.[TicketKey] = Source.[TicketKey]) AND
	(Target.[TagKey] = Source.[TagKey] OR (Target.[TagKey] IS NULL AND Source.[TagKey] IS NULL))
WHEN NOT MATCHED BY TARGET THEN
	INSERT (%s)
	VALUES (%s);`, factTable, staging, cols, strings.Join(sourceCols, ", "))
}

// loadFacts resolves, stages and merges the fact batch. When
// explicitIdentityInsert is set, IDENTITY_INSERT wraps the merge and is
// always switched back off.
func loadFacts(ctx context.Context, sess Session, chunks *chunker.Executor, logger ectologger.Logger, facts []models.FactTicket, batchSize int, explicitIdentityInsert bool) (err error) {
	if len(facts) == 0 {
		return nil
	}

	keys, err := resolveAllKeys(ctx, sess, chunks, facts, batchSize)
	if err != nil {
		return err
	}

	rows, dropped := resolveFacts(facts, keys)
	if dropped > 0 {
		logger.WithContext(ctx).WithField("dropped", dropped).
			Warn("Dropped fact rows missing mandatory ticket or user keys")
	}
	if len(rows) == 0 {
		logger.WithContext(ctx).Info("No valid fact rows to load")
		return nil
	}

	logger.WithContext(ctx).WithField("rows", len(rows)).Info("Loading fact table")

	if _, err = sess.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", stagingName(factTable))); err != nil {
		return errors.Wrap(err, "failed to clear fact staging")
	}
	if _, err = sess.ExecContext(ctx, createFactStagingSQL()); err != nil {
		return errors.Wrap(err, "failed to create fact staging")
	}
	defer func() {
		if _, dropErr := sess.ExecContext(ctx, dropStagingSQL(factTable)); dropErr != nil {
			logger.WithContext(ctx).WithError(dropErr).Warn("Failed to drop fact staging table")
			if err == nil {
				err = errors.Wrap(dropErr, "failed to drop fact staging")
			}
		}
	}()

	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		values = append(values, r.values())
	}
	if err = populateStaging(ctx, sess, factTable, factColumns, values, batchSize); err != nil {
		return err
	}

	if _, err = sess.ExecContext(ctx, factStagingIndexSQL()); err != nil {
		return errors.Wrap(err, "failed to index fact staging")
	}

	if explicitIdentityInsert {
		if _, err = sess.ExecContext(ctx, fmt.Sprintf("SET IDENTITY_INSERT %s ON;", factTable)); err != nil {
			return errors.Wrap(err, "failed to enable identity insert")
		}
		defer func() {
			if _, offErr := sess.ExecContext(ctx, fmt.Sprintf("SET IDENTITY_INSERT %s OFF;", factTable)); offErr != nil {
				logger.WithContext(ctx).WithError(offErr).Error("Failed to disable identity insert")
				if err == nil {
					err = errors.Wrap(offErr, "failed to disable identity insert")
				}
			}
		}()
	}

	if _, err = sess.ExecContext(ctx, mergeFactSQL()); err != nil {
		logger.WithContext(ctx).WithError(err).Error("Fact merge failed")
		return errors.Wrap(err, "failed to merge fact table")
	}

	return nil
}
