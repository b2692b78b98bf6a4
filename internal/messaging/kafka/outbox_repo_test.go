package kafka_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"stafflink/internal/messaging/kafka"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() kafka.OutboxEvent {
	return kafka.OutboxEvent{
		ID:            "0b7f2f6e-6a4c-4f0e-9d1c-3f7c3a0e9a11",
		RequestID:     "REQ-1",
		AggregateType: "shift",
		AggregateID:   "5d1f0c0e-2b9b-4d9a-8d7e-7c0f3f5b8a22",
		EventType:     "notification_requested",
		Topic:         "stafflink.notification.requested.v1",
		Payload:       []byte(`{"to":"ops@agency.test"}`),
		Status:        kafka.OutboxStatusPending,
	}
}

func TestOutboxRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := kafka.NewOutboxRepository(db)

	t.Run("insert", func(t *testing.T) {
		e := validEvent()
		mock.ExpectExec(`INSERT INTO outbox_events`).
			WithArgs(e.ID, e.RequestID, e.AggregateType, e.AggregateID, e.EventType, e.Topic, e.Payload, e.Status).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(context.Background(), e))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid event never reaches the db", func(t *testing.T) {
		e := validEvent()
		e.Topic = ""

		err := repo.Create(context.Background(), e)

		assert.EqualError(t, err, "outbox topic is required")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inside a transaction", func(t *testing.T) {
		e := validEvent()
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO outbox_events`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.Begin()
		require.NoError(t, err)
		require.NoError(t, repo.WithTx(tx).Create(context.Background(), e))
		require.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_ClaimDue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := kafka.NewOutboxRepository(db)

	next := time.Date(2025, 3, 10, 9, 1, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "request_id", "aggregate_type", "aggregate_id", "event_type", "topic", "payload", "status", "retry_count", "next_retry_at",
	}).AddRow("ev-1", "REQ-1", "shift", "shift-1", "notification_requested", "stafflink.notification.requested.v1", []byte(`{}`), "pending", 0, next).
		AddRow("ev-2", "", "timesheet", "ts-1", "notification_requested", "stafflink.notification.requested.v1", []byte(`{}`), "failed", 2, next)

	mock.ExpectQuery(`UPDATE outbox_events o .* FOR UPDATE SKIP LOCKED .* RETURNING`).
		WithArgs(kafka.OutboxStatusPending, kafka.OutboxStatusFailed, kafka.MaxOutboxRetries, 60, 50).
		WillReturnRows(rows)

	got, err := repo.ClaimDue(context.Background(), 50)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "REQ-1", got[0].RequestID)
	assert.Equal(t, 2, got[1].RetryCount)
	assert.Equal(t, "ts-1", got[1].AggregateID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_PurgeSent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := kafka.NewOutboxRepository(db)

	cutoff := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM outbox_events`).
		WithArgs(kafka.OutboxStatusSent, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.PurgeSent(context.Background(), cutoff)

	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestValidateOutboxEvent(t *testing.T) {
	err := kafka.ValidateOutboxEvent(kafka.OutboxEvent{Status: "queued"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox id is required")
	assert.Contains(t, err.Error(), "outbox payload is required")
	assert.Contains(t, err.Error(), `invalid outbox status "queued"`)
}

func TestOutboxRepository_MarkFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := kafka.NewOutboxRepository(db)

	mock.ExpectExec(`UPDATE outbox_events`).
		WithArgs("ev-1", kafka.OutboxStatusFailed, "broker unavailable").
		WillReturnError(errors.New("db gone"))

	err = repo.MarkFailed(context.Background(), "ev-1", "broker unavailable")

	assert.EqualError(t, err, "db gone")
}
