package transform

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func int64Ptr(v int64) *int64        { return &v }
func strPtr(v string) *string        { return &v }
func boolPtr(v bool) *bool           { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func TestTransformEmptyExtraction(t *testing.T) {
	tr := NewDimensionalTransformer(testLogger())

	batch := tr.Transform(context.Background(), models.NewExtractedData())
	assert.True(t, batch.Empty())
	assert.Empty(t, batch.Facts)
}

func TestFactExplosionByTags(t *testing.T) {
	data := models.NewExtractedData()
	data.Tickets = []models.TicketRow{
		{TicketID: 1, UserID: int64Ptr(10), CompanyID: int64Ptr(20)},
		{TicketID: 2, UserID: int64Ptr(11), CompanyID: int64Ptr(20)},
	}
	data.Tags[1] = []models.TagRecord{
		{TicketID: 1, TagID: 100, TagName: "urgente"},
		{TicketID: 1, TagID: 101, TagName: "vip"},
		{TicketID: 1, TagID: 102, TagName: "faturamento"},
	}

	batch := NewDimensionalTransformer(testLogger()).Transform(context.Background(), data)

	var ticket1, ticket2 []models.FactTicket
	for _, f := range batch.Facts {
		switch f.TicketID {
		case 1:
			ticket1 = append(ticket1, f)
		case 2:
			ticket2 = append(ticket2, f)
		}
	}

	require.Len(t, ticket1, 3, "ticket with K tags yields K fact rows")
	tagIDs := []int64{ticket1[0].TagID, ticket1[1].TagID, ticket1[2].TagID}
	assert.ElementsMatch(t, []int64{100, 101, 102}, tagIDs)
	for _, f := range ticket1 {
		assert.Equal(t, int64(10), *f.UserID, "non-tag keys identical across exploded rows")
		assert.Equal(t, int64(20), *f.CompanyID)
		assert.Equal(t, 1, f.QtTickets)
	}

	require.Len(t, ticket2, 1, "ticket without tags yields exactly one fact row")
	assert.Equal(t, models.SentinelTagID, ticket2[0].TagID)
}

func TestDimensionDedupeKeepsFirstOccurrence(t *testing.T) {
	data := models.NewExtractedData()
	data.Tickets = []models.TicketRow{
		{TicketID: 1, CompanyID: int64Ptr(5), CompanyName: strPtr("Acme Ltda")},
		{TicketID: 2, CompanyID: int64Ptr(5), CompanyName: strPtr("Acme Renamed")},
		{TicketID: 3, CompanyID: int64Ptr(6), CompanyName: strPtr("Beta SA")},
	}

	batch := NewDimensionalTransformer(testLogger()).Transform(context.Background(), data)

	require.Len(t, batch.Companies, 2)
	assert.Equal(t, "Acme Ltda", *batch.Companies[0].Name)
	assert.Equal(t, int64(6), batch.Companies[1].CompanyID)
}

func TestSynthesizedStatusAndPriorityNames(t *testing.T) {
	data := models.NewExtractedData()
	data.Tickets = []models.TicketRow{
		{TicketID: 1, CurrentStatusID: int64Ptr(3), PriorityID: int64Ptr(2)},
	}

	batch := NewDimensionalTransformer(testLogger()).Transform(context.Background(), data)

	require.Len(t, batch.Statuses, 1)
	assert.Equal(t, "Status_3", batch.Statuses[0].Name)
	require.Len(t, batch.Priorities, 1)
	assert.Equal(t, "Priority_2", batch.Priorities[0].Name)
	assert.Equal(t, 0, batch.Priorities[0].Weight)
}

func TestDateDimensionDedupesMinuteTuples(t *testing.T) {
	created := time.Date(2024, 3, 15, 9, 30, 12, 0, time.UTC)
	sameMinute := time.Date(2024, 3, 15, 9, 30, 59, 0, time.UTC)
	closed := time.Date(2024, 3, 16, 18, 0, 0, 0, time.UTC)

	data := models.NewExtractedData()
	data.Tickets = []models.TicketRow{
		{TicketID: 1, CreatedAt: timePtr(created), ClosedAt: timePtr(closed)},
		{TicketID: 2, CreatedAt: timePtr(sameMinute)},
	}

	batch := NewDimensionalTransformer(testLogger()).Transform(context.Background(), data)

	require.Len(t, batch.Dates, 2, "same-minute timestamps share one tuple, seconds are dropped")
	assert.Contains(t, batch.Dates, models.DimDate{Year: 2024, Month: 3, Day: 15, Hour: 9, Minute: 30})
	assert.Contains(t, batch.Dates, models.DimDate{Year: 2024, Month: 3, Day: 16, Hour: 18, Minute: 0})
}

func TestFactDateTuplesNilForMissingTimestamps(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	data := models.NewExtractedData()
	data.Tickets = []models.TicketRow{
		{TicketID: 1, CreatedAt: timePtr(created)},
	}

	batch := NewDimensionalTransformer(testLogger()).Transform(context.Background(), data)

	require.Len(t, batch.Facts, 1)
	fact := batch.Facts[0]
	require.NotNil(t, fact.CreatedDate)
	assert.Equal(t, models.DimDate{Year: 2024, Month: 1, Day: 1}, *fact.CreatedDate)
	assert.Nil(t, fact.FirstResponseDate)
	assert.Nil(t, fact.ClosedDate)
}

func TestDimUsersAndTags(t *testing.T) {
	data := models.NewExtractedData()
	data.Tickets = []models.TicketRow{
		{TicketID: 1, UserID: int64Ptr(7), UserFullName: strPtr("Maria Silva"), CompanyID: int64Ptr(5), UserIsVIP: boolPtr(true)},
	}
	data.Tags[1] = []models.TagRecord{
		{TicketID: 1, TagID: 100, TagName: "urgente"},
		{TicketID: 1, TagID: 100, TagName: "urgente"},
	}

	batch := NewDimensionalTransformer(testLogger()).Transform(context.Background(), data)

	require.Len(t, batch.Users, 1)
	assert.Equal(t, int64(5), *batch.Users[0].CompanyID)
	assert.True(t, *batch.Users[0].IsVIP)

	require.Len(t, batch.Tags, 1, "duplicate tag assignments collapse to one dimension row")
	assert.Equal(t, "urgente", batch.Tags[0].Name)
}
