package database

import (
	"context"
	"testing"
	"time"

	"salonbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.NotificationTask{
		TaskType: "booking_created",
		EventID:  "ev-100",
		Payload:  `{"to":"owner@test"}`,
	}

	// Create
	require.NoError(t, db.CreateTask(ctx, task))
	assert.NotZero(t, task.ID)
	assert.Equal(t, models.TaskStatusPending, task.Status)

	// Get Pending
	tasks, err := db.GetPendingTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "ev-100", tasks[0].EventID)
	assert.Nil(t, tasks[0].LastError)

	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Payload, got.Payload)

	// Update Status
	require.NoError(t, db.UpdateTaskStatus(ctx, tasks[0].ID, models.TaskStatusCompleted, "", nil))

	tasks, err = db.GetPendingTasks(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, tasks, 0)

	got, err = db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.ProcessedAt)

	// Failed tasks
	errMsg := "some error"
	require.NoError(t, db.CreateTask(ctx, &models.NotificationTask{TaskType: "test", EventID: "ev-101", Payload: "{}", Status: models.TaskStatusFailed, LastError: &errMsg}))
	failed, err := db.GetFailedTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "some error", *failed[0].LastError)

	counts, err := db.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.TaskStatusCompleted])
	assert.Equal(t, 1, counts[models.TaskStatusFailed])
}

func TestOutboxRetrySchedule(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.NotificationTask{TaskType: "retry_test", EventID: "ev-102", Payload: "{}"}
	require.NoError(t, db.CreateTask(ctx, task))

	nextRetry := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateTaskStatus(ctx, task.ID, models.TaskStatusRetry, "temporary error", &nextRetry))

	// Not due yet.
	tasks, err := db.GetPendingTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	pastRetry := time.Now().Add(-time.Hour)
	require.NoError(t, db.UpdateTaskStatus(ctx, task.ID, models.TaskStatusRetry, "temporary error", &pastRetry))

	tasks, err = db.GetPendingTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 2, tasks[0].RetryCount)
	require.NotNil(t, tasks[0].LastError)
	assert.Equal(t, "temporary error", *tasks[0].LastError)
	require.NotNil(t, tasks[0].NextRetryAt)
}

func TestOutboxGetTaskMissing(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.GetTask(context.Background(), 999)
	assert.Error(t, err)
}

func TestRequeueFailed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	errMsg := "smtp timeout"
	failed := &models.NotificationTask{TaskType: "notify", EventID: "ev-200", Payload: "{}", Status: models.TaskStatusFailed, RetryCount: 5, LastError: &errMsg}
	require.NoError(t, db.CreateTask(ctx, failed))
	require.NoError(t, db.CreateTask(ctx, &models.NotificationTask{TaskType: "notify", EventID: "ev-201", Payload: "{}", Status: models.TaskStatusCompleted}))

	n, err := db.RequeueFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := db.GetTask(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)
	assert.Nil(t, got.NextRetryAt)

	pending, err := db.GetPendingTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ev-200", pending[0].EventID)
}
