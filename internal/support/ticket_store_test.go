package support

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ticketCols = []string{
	"id", "tenant_id", "conversation_id", "phone", "client_name", "category",
	"severity", "summary", "archive_key", "occurrences", "ticket_date", "created_at", "updated_at",
}

func newTicketStoreMock(t *testing.T) (*TicketStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := NewTicketStore(db, nil)
	store.now = func() time.Time { return time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC) }
	return store, mock
}

func TestTicketStore_RecordInsertsFirstTicketOfDay(t *testing.T) {
	store, mock := newTicketStoreMock(t)
	convID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM complaint_tickets .+ FOR UPDATE").
		WithArgs("tenant-a", "+5511988887777", "2026-03-09").
		WillReturnRows(sqlmock.NewRows(ticketCols))
	mock.ExpectExec("INSERT INTO complaint_tickets").
		WithArgs(sqlmock.AnyArg(), "tenant-a", convID, "+5511988887777", "Joana", CategoryDelay, SeverityHigh,
			"Esperou 40 minutos.", 1, "2026-03-09", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	got, created, err := store.Record(context.Background(), Ticket{
		TenantID:       "tenant-a",
		ConversationID: convID,
		Phone:          "+5511988887777",
		ClientName:     "Joana",
		Category:       CategoryDelay,
		Severity:       SeverityHigh,
		Summary:        "Esperou 40 minutos.",
		TicketDate:     "2026-03-09",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, 1, got.Occurrences)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketStore_RecordEnrichesExistingTicket(t *testing.T) {
	store, mock := newTicketStoreMock(t)
	ticketID := uuid.New()
	oldConv, newConv := uuid.New(), uuid.New()
	created := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM complaint_tickets .+ FOR UPDATE").
		WithArgs("tenant-a", "+5511988887777", "2026-03-09").
		WillReturnRows(sqlmock.NewRows(ticketCols).AddRow(
			ticketID.String(), "tenant-a", oldConv.String(), "+5511988887777", "", CategoryGeneral,
			SeverityLow, "Atendimento ruim.", "", 1, "2026-03-09", created, created,
		))
	mock.ExpectExec("UPDATE complaint_tickets").
		WithArgs(newConv, "Joana", CategoryStaffConduct, SeverityMedium,
			"Atendimento ruim.\nRecepcionista foi grosseira.", 2, sqlmock.AnyArg(), ticketID, "tenant-a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, isNew, err := store.Record(context.Background(), Ticket{
		TenantID:       "tenant-a",
		ConversationID: newConv,
		Phone:          "+5511988887777",
		ClientName:     "Joana",
		Category:       CategoryStaffConduct,
		Severity:       SeverityMedium,
		Summary:        "Recepcionista foi grosseira.",
		TicketDate:     "2026-03-09",
	})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, ticketID, got.ID)
	assert.Equal(t, 2, got.Occurrences)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketStore_RecordRollsBackOnInsertError(t *testing.T) {
	store, mock := newTicketStoreMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM complaint_tickets").
		WillReturnRows(sqlmock.NewRows(ticketCols))
	mock.ExpectExec("INSERT INTO complaint_tickets").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, _, err := store.Record(context.Background(), Ticket{TenantID: "tenant-a", Phone: "+5511988887777", TicketDate: "2026-03-09"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketStore_FindForDayMissing(t *testing.T) {
	store, mock := newTicketStoreMock(t)
	mock.ExpectQuery("SELECT .+ FROM complaint_tickets").
		WithArgs("tenant-a", "+5511988887777", "2026-03-09").
		WillReturnRows(sqlmock.NewRows(ticketCols))

	got, err := store.FindForDay(context.Background(), "tenant-a", "+5511988887777", "2026-03-09")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTicketStore_SetArchiveKey(t *testing.T) {
	store, mock := newTicketStoreMock(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE complaint_tickets SET archive_key").
		WithArgs("complaints/v1/x.json", sqlmock.AnyArg(), id, "tenant-a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.SetArchiveKey(context.Background(), "tenant-a", id, "complaints/v1/x.json"))

	mock.ExpectExec("UPDATE complaint_tickets SET archive_key").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Error(t, store.SetArchiveKey(context.Background(), "tenant-b", id, "complaints/v1/x.json"))
}

func TestMergeTicket(t *testing.T) {
	existing := &Ticket{Category: CategoryDelay, Severity: SeverityHigh, Summary: "Atraso.", ClientName: "Joana", Occurrences: 2}

	got := mergeTicket(existing, Ticket{Category: CategoryBilling, Severity: SeverityLow, Summary: "Atraso."})
	assert.Equal(t, CategoryDelay, got.Category, "specific category is kept")
	assert.Equal(t, SeverityHigh, got.Severity, "severity never decreases")
	assert.Equal(t, "Atraso.", got.Summary, "repeated summary is not duplicated")
	assert.Equal(t, "Joana", got.ClientName)
	assert.Equal(t, 3, got.Occurrences)
	assert.Equal(t, 2, existing.Occurrences, "input is not mutated")
}

func TestNormalizeCategoryAndSeverity(t *testing.T) {
	assert.Equal(t, CategoryBilling, NormalizeCategory(" billing "))
	assert.Equal(t, CategoryGeneral, NormalizeCategory("PARKING"))
	assert.Equal(t, SeverityHigh, NormalizeSeverity("HIGH"))
	assert.Equal(t, SeverityMedium, NormalizeSeverity("urgent"))
}
