package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeSession struct {
	execs    []string
	failWhen func(query string) bool
	keyRows  map[string][]keyPair
	dateRows []dateKeyRow
}

func (f *fakeSession) Rebind(query string) string { return query }

func (f *fakeSession) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	f.execs = append(f.execs, query)
	if f.failWhen != nil && f.failWhen(query) {
		return nil, assert.AnError
	}
	return driver.RowsAffected(1), nil
}

func (f *fakeSession) SelectContext(_ context.Context, dest any, query string, _ ...any) error {
	switch rows := dest.(type) {
	case *[]keyPair:
		for table, pairs := range f.keyRows {
			if strings.Contains(query, "FROM "+table+" ") {
				*rows = append(*rows, pairs...)
			}
		}
	case *[]dateKeyRow:
		*rows = append(*rows, f.dateRows...)
	}
	return nil
}

func (f *fakeSession) indexOf(fragment string) int {
	for i, q := range f.execs {
		if strings.Contains(q, fragment) {
			return i
		}
	}
	return -1
}

func int64Ptr(v int64) *int64 { return &v }

func TestRowsPerBatch(t *testing.T) {
	tests := []struct {
		name      string
		numCols   int
		batchSize int
		want      int
	}{
		{"fact width bounded by params", 13, 1000, 153},
		{"date tuple width", 5, 1000, 400},
		{"batch size wins when smaller", 2, 100, 100},
		{"never below one row", 4000, 1000, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rowsPerBatch(tt.numCols, tt.batchSize))
		})
	}
}

func TestStagingIndexSQL(t *testing.T) {
	bkDim := dimensionLoad{table: "Dim_Companies", businessKey: "CompanyId_BK", columns: []string{"CompanyId_BK", "Name"}}
	assert.Equal(t,
		"CREATE UNIQUE CLUSTERED INDEX IX_Dim_Companies_stage ON ##Dim_Companies_stage([CompanyId_BK])",
		stagingIndexSQL(bkDim))

	naturalDim := dimensionLoad{table: "Dim_Dates", columns: []string{"Year", "Month", "Day", "Hour", "Minute"}}
	stmt := stagingIndexSQL(naturalDim)
	assert.Contains(t, stmt, "CREATE CLUSTERED INDEX")
	assert.NotContains(t, stmt, "UNIQUE")
}

func TestInsertExceptSQL(t *testing.T) {
	load := dimensionLoad{table: "Dim_Dates", columns: []string{"Year", "Month", "Day", "Hour", "Minute"}}
	stmt := insertExceptSQL(load)

	assert.Contains(t, stmt, "INSERT INTO Dim_Dates ([Year], [Month], [Day], [Hour], [Minute])")
	assert.Contains(t, stmt, "EXCEPT")
	assert.Contains(t, stmt, "FROM ##Dim_Dates_stage")
	assert.NotContains(t, stmt, "MERGE")
}

func TestMergeDimensionSQL(t *testing.T) {
	load := dimensionLoad{
		table:       "Dim_Companies",
		businessKey: "CompanyId_BK",
		columns:     []string{"CompanyId_BK", "Name", "Segmento", "CNPJ"},
		updateCols:  []string{"Name", "Segmento", "CNPJ"},
	}
	stmt := mergeDimensionSQL(load)

	assert.Contains(t, stmt, "MERGE Dim_Companies AS Target")
	assert.Contains(t, stmt, "USING ##Dim_Companies_stage AS Source")
	assert.Contains(t, stmt, "ON Target.[CompanyId_BK] = Source.[CompanyId_BK]")
	assert.Contains(t, stmt, "WHEN MATCHED THEN UPDATE SET Target.[Name] = Source.[Name]")
	assert.Contains(t, stmt, "WHEN NOT MATCHED BY TARGET THEN")
}

func TestMergeFactSQLIsInsertOnlyAndNullSafe(t *testing.T) {
	stmt := mergeFactSQL()

	assert.Contains(t, stmt, "MERGE Fact_Tickets AS Target")
	assert.Contains(t, stmt, "Target.[TagKey] IS NULL AND Source.[TagKey] IS NULL")
	assert.NotContains(t, stmt, "WHEN MATCHED THEN UPDATE", "rerunning an unchanged batch must not touch existing fact rows")
}

func TestResolveFactsDropsAndDefaults(t *testing.T) {
	keys := &surrogateKeyMaps{
		tickets: map[int64]int64{1: 501, 2: 502},
		users:   map[int64]int64{10: 601},
		tags:    map[int64]int64{100: 701},
		agents:  map[int64]int64{},
		dates:   map[models.DimDate]int64{{Year: 2024, Month: 1, Day: 1}: 801},
	}

	created := &models.DimDate{Year: 2024, Month: 1, Day: 1}
	facts := []models.FactTicket{
		{TicketID: 1, UserID: int64Ptr(10), TagID: 100, QtTickets: 1, CreatedDate: created},
		{TicketID: 1, UserID: int64Ptr(10), TagID: models.SentinelTagID, QtTickets: 1},
		{TicketID: 2, UserID: int64Ptr(99), TagID: models.SentinelTagID, QtTickets: 1}, // unknown user
		{TicketID: 3, UserID: int64Ptr(10), TagID: models.SentinelTagID, QtTickets: 1}, // unknown ticket
	}

	rows, dropped := resolveFacts(facts, keys)

	assert.Equal(t, 2, dropped)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(501), rows[0].TicketKey)
	assert.Equal(t, int64(601), rows[0].UserKey)
	require.NotNil(t, rows[0].TagKey)
	assert.Equal(t, int64(701), *rows[0].TagKey)
	require.NotNil(t, rows[0].EntryDateKey)
	assert.Equal(t, int64(801), *rows[0].EntryDateKey)
	assert.Nil(t, rows[0].AgentKey)

	assert.Nil(t, rows[1].TagKey, "sentinel tag stays NULL")
	assert.Nil(t, rows[1].EntryDateKey)
}

func newTestLoader() *Loader {
	return &Loader{
		logger: testLogger(),
		cfg:    Config{BatchSize: 1000, ChunkSize: 2000, ExplicitIdentityInsert: true},
	}
}

func testBatch() *models.StarBatch {
	name := "Acme"
	return &models.StarBatch{
		Companies: []models.DimCompany{{CompanyID: 20, Name: &name}},
		Tickets:   []models.DimTicket{{TicketID: 1}},
		Facts: []models.FactTicket{
			{TicketID: 1, UserID: int64Ptr(10), TagID: models.SentinelTagID, QtTickets: 1},
		},
	}
}

func TestRunStagingLifecycleOrder(t *testing.T) {
	sess := &fakeSession{
		keyRows: map[string][]keyPair{
			"Dim_Tickets": {{BK: 1, SK: 501}},
			"Dim_Users":   {{BK: 10, SK: 601}},
		},
	}

	err := newTestLoader().run(context.Background(), sess, testBatch())
	require.NoError(t, err)

	create := sess.indexOf("SELECT TOP 0 * INTO ##Dim_Companies_stage")
	insert := sess.indexOf("INSERT INTO ##Dim_Companies_stage")
	index := sess.indexOf("CREATE UNIQUE CLUSTERED INDEX IX_Dim_Companies_stage")
	merge := sess.indexOf("MERGE Dim_Companies")
	drop := sess.indexOf("DROP TABLE IF EXISTS ##Dim_Companies_stage")

	require.NotEqual(t, -1, create)
	assert.Less(t, create, insert)
	assert.Less(t, insert, index)
	assert.Less(t, index, merge)
	assert.Less(t, merge, drop)
}

func TestRunFactIdentityInsertWrapsMerge(t *testing.T) {
	sess := &fakeSession{
		keyRows: map[string][]keyPair{
			"Dim_Tickets": {{BK: 1, SK: 501}},
			"Dim_Users":   {{BK: 10, SK: 601}},
		},
	}

	err := newTestLoader().run(context.Background(), sess, testBatch())
	require.NoError(t, err)

	on := sess.indexOf("SET IDENTITY_INSERT Fact_Tickets ON")
	merge := sess.indexOf("MERGE Fact_Tickets")
	off := sess.indexOf("SET IDENTITY_INSERT Fact_Tickets OFF")
	drop := sess.indexOf("DROP TABLE IF EXISTS ##Fact_Tickets_stage")

	require.NotEqual(t, -1, on)
	assert.Less(t, on, merge)
	assert.Less(t, merge, off)
	assert.NotEqual(t, -1, drop)
}

func TestRunDropsStagingOnReconcileFailure(t *testing.T) {
	sess := &fakeSession{
		failWhen: func(query string) bool {
			return strings.HasPrefix(query, "MERGE Dim_Companies")
		},
	}

	err := newTestLoader().run(context.Background(), sess, testBatch())
	require.Error(t, err)

	merge := sess.indexOf("MERGE Dim_Companies")
	drop := sess.indexOf("DROP TABLE IF EXISTS ##Dim_Companies_stage")
	require.NotEqual(t, -1, merge)
	require.NotEqual(t, -1, drop, "staging must be dropped even when reconcile fails")
	assert.Less(t, merge, drop)

	assert.Equal(t, -1, sess.indexOf("MERGE Fact_Tickets"), "fact load must not run after a dimension failure")
}

func TestRunSkipsEmptyBatch(t *testing.T) {
	sess := &fakeSession{}
	err := newTestLoader().run(context.Background(), sess, &models.StarBatch{})
	require.NoError(t, err)
	assert.Empty(t, sess.execs)
}

func TestResolveDateKeysStagesTuples(t *testing.T) {
	sess := &fakeSession{
		dateRows: []dateKeyRow{
			{DateKey: 801, Year: 2024, Month: 1, Day: 1, Hour: 0, Minute: 30},
		},
	}

	tuples := []models.DimDate{{Year: 2024, Month: 1, Day: 1, Hour: 0, Minute: 30}}
	resolved, err := resolveDateKeys(context.Background(), sess, tuples, 1000)
	require.NoError(t, err)

	assert.Equal(t, int64(801), resolved[tuples[0]])
	assert.NotEqual(t, -1, sess.indexOf("CREATE TABLE ##Dim_Dates_lookup"))
	assert.NotEqual(t, -1, sess.indexOf("INSERT INTO ##Dim_Dates_lookup"))

	last := sess.execs[len(sess.execs)-1]
	assert.Contains(t, last, "DROP TABLE IF EXISTS ##Dim_Dates_lookup")
}
