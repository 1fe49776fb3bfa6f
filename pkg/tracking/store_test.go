package tracking

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func TestCreateAndGetExperiment(t *testing.T) {
	store := setupTestStore(t)

	created, err := store.CreateExperiment("exp-1", "s3://bucket/exp-1")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, LifecycleActive, created.LifecycleStage)

	got, err := store.GetExperiment(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "exp-1", got.Name)

	byName, err := store.GetExperimentByName("exp-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
}

func TestCreateExperimentDuplicateName(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.CreateExperiment("exp-1", "")
	require.NoError(t, err)
	_, err = store.CreateExperiment("exp-1", "")
	assert.ErrorIs(t, err, ErrExists)
}

func TestGetExperimentByNameNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetExperimentByName("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAndRestoreExperiment(t *testing.T) {
	store := setupTestStore(t)
	exp, err := store.CreateExperiment("exp-1", "")
	require.NoError(t, err)

	require.NoError(t, store.DeleteExperiment(exp.ID))
	got, err := store.GetExperiment(exp.ID)
	require.NoError(t, err)
	assert.Equal(t, LifecycleDeleted, got.LifecycleStage)

	require.NoError(t, store.RestoreExperiment(exp.ID))
	got, err = store.GetExperiment(exp.ID)
	require.NoError(t, err)
	assert.Equal(t, LifecycleActive, got.LifecycleStage)

	assert.ErrorIs(t, store.DeleteExperiment("nope"), ErrNotFound)
}

func TestRunLifecycle(t *testing.T) {
	store := setupTestStore(t)
	exp, err := store.CreateExperiment("exp-1", "")
	require.NoError(t, err)

	run, err := store.CreateRun(exp.ID, "trial-1", "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, exp.ID, run.ExperimentID)
	assert.Equal(t, "RUNNING", run.Status)
	assert.NotZero(t, run.StartTime)

	require.NoError(t, store.UpdateRun(run.ID, "FINISHED", 123456, ""))
	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "FINISHED", got.Status)
	assert.Equal(t, int64(123456), got.EndTime)

	require.NoError(t, store.DeleteRun(run.ID))
	got, err = store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, LifecycleDeleted, got.LifecycleStage)
}

func TestCreateRunRequiresExperiment(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.CreateRun("missing", "", "", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMetricsParamsTags(t *testing.T) {
	store := setupTestStore(t)
	exp, err := store.CreateExperiment("exp-1", "")
	require.NoError(t, err)
	run, err := store.CreateRun(exp.ID, "", "", 0)
	require.NoError(t, err)

	require.NoError(t, store.LogMetric(run.ID, "loss", 0.9, 1000, 0))
	require.NoError(t, store.LogMetric(run.ID, "loss", 0.5, 2000, 1))
	history, err := store.GetMetricHistory(run.ID, "loss")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 0.9, history[0].Value)

	require.NoError(t, store.LogParam(run.ID, "lr", "0.001"))
	assert.Error(t, store.LogParam(run.ID, "lr", "0.01"), "params are write-once")

	require.NoError(t, store.SetTag(run.ID, "stage", "dev"))
	require.NoError(t, store.SetTag(run.ID, "stage", "prod"), "tags are mutable")

	assert.ErrorIs(t, store.LogMetric("missing", "loss", 1, 0, 0), ErrNotFound)
}

func TestRegisteredModelLifecycle(t *testing.T) {
	store := setupTestStore(t)

	model, err := store.CreateRegisteredModel("resnet", "vision model")
	require.NoError(t, err)
	assert.NotZero(t, model.CreationTime)

	_, err = store.CreateRegisteredModel("resnet", "")
	assert.ErrorIs(t, err, ErrExists)

	require.NoError(t, store.UpdateRegisteredModel("resnet", "updated"))
	got, err := store.GetRegisteredModel("resnet")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Description)

	require.NoError(t, store.DeleteRegisteredModel("resnet"))
	_, err = store.GetRegisteredModel("resnet")
	assert.ErrorIs(t, err, ErrNotFound)
}

func seedExperiments(t *testing.T, store *Store, n int) []Experiment {
	t.Helper()
	experiments := make([]Experiment, 0, n)
	for i := 0; i < n; i++ {
		exp, err := store.CreateExperiment(fmt.Sprintf("exp-%02d", i), "")
		require.NoError(t, err)
		experiments = append(experiments, *exp)
	}
	return experiments
}

func TestSearchExperimentsPagination(t *testing.T) {
	store := setupTestStore(t)
	seedExperiments(t, store, 7)

	page1, token1, err := store.SearchExperiments("", "name ASC", 3, "")
	require.NoError(t, err)
	require.Len(t, page1, 3)
	assert.Equal(t, "exp-00", page1[0].Name)
	require.NotEmpty(t, token1)

	page2, token2, err := store.SearchExperiments("", "name ASC", 3, token1)
	require.NoError(t, err)
	require.Len(t, page2, 3)
	assert.Equal(t, "exp-03", page2[0].Name)
	require.NotEmpty(t, token2)

	page3, token3, err := store.SearchExperiments("", "name ASC", 3, token2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "exp-06", page3[0].Name)
	assert.Empty(t, token3)
}

func TestSearchExperimentsFilter(t *testing.T) {
	store := setupTestStore(t)
	seedExperiments(t, store, 5)
	exp, err := store.GetExperimentByName("exp-02")
	require.NoError(t, err)
	require.NoError(t, store.DeleteExperiment(exp.ID))

	results, token, err := store.SearchExperiments("lifecycle_stage = 'active'", "name ASC", 100, "")
	require.NoError(t, err)
	assert.Len(t, results, 4)
	assert.Empty(t, token)

	results, _, err = store.SearchExperiments("name LIKE 'exp-0%' AND lifecycle_stage != 'deleted'", "name ASC", 100, "")
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestSearchExperimentsInvalidInput(t *testing.T) {
	store := setupTestStore(t)

	_, _, err := store.SearchExperiments("password = 'x'", "", 10, "")
	assert.Error(t, err)

	_, _, err = store.SearchExperiments("", "password_hash ASC", 10, "")
	assert.Error(t, err)

	_, _, err = store.SearchExperiments("", "", 10, "bogus token")
	assert.Error(t, err)
}

func TestSearchExperimentsOrderDesc(t *testing.T) {
	store := setupTestStore(t)
	seedExperiments(t, store, 3)

	results, _, err := store.SearchExperiments("", "name DESC", 10, "")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "exp-02", results[0].Name)
}

func TestSearchRegisteredModels(t *testing.T) {
	store := setupTestStore(t)
	for _, name := range []string{"alpha", "beta", "gamma"} {
		_, err := store.CreateRegisteredModel(name, "")
		require.NoError(t, err)
	}

	page, token, err := store.SearchRegisteredModels("", "name ASC", 2, "")
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "alpha", page[0].Name)
	require.NotEmpty(t, token)

	page, token, err = store.SearchRegisteredModels("", "name ASC", 2, token)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "gamma", page[0].Name)
	assert.Empty(t, token)
}
