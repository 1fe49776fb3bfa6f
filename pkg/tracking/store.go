// Package tracking is the experiment/run/model-registry store behind the
// API. Search results are ordered, offset-paginated sequences; the opaque
// page tokens it hands out are the cursors the authorization layer's
// redaction loop advances when it refills filtered pages.
package tracking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrExists is returned when creating an entity whose name is taken.
var ErrExists = errors.New("already exists")

const (
	// DefaultMaxResults applies when a search request omits max_results.
	DefaultMaxResults = 100
	// MaxResultsLimit is the hard cap on page size.
	MaxResultsLimit = 1000
)

// Store provides CRUD and paged search over tracking entities.
type Store struct {
	db *gorm.DB
}

// NewStore creates a tracking Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the tracking tables.
func (s *Store) AutoMigrate() error {
	err := s.db.AutoMigrate(&Experiment{}, &Run{}, &Metric{}, &Param{}, &RunTag{}, &RegisteredModel{})
	if err != nil {
		return fmt.Errorf("auto-migrate tracking tables: %w", err)
	}
	return nil
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// CreateExperiment creates an active experiment with a fresh ID.
func (s *Store) CreateExperiment(name, artifactLocation string) (*Experiment, error) {
	if name == "" {
		return nil, fmt.Errorf("experiment name must not be empty")
	}
	var count int64
	if err := s.db.Model(&Experiment{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check experiment name %q: %w", name, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("experiment %q: %w", name, ErrExists)
	}
	now := nowMillis()
	exp := &Experiment{
		ID:               uuid.NewString(),
		Name:             name,
		ArtifactLocation: artifactLocation,
		LifecycleStage:   LifecycleActive,
		CreationTime:     now,
		LastUpdateTime:   now,
	}
	if err := s.db.Create(exp).Error; err != nil {
		return nil, fmt.Errorf("create experiment %q: %w", name, err)
	}
	return exp, nil
}

// GetExperiment returns an experiment by ID.
func (s *Store) GetExperiment(id string) (*Experiment, error) {
	var exp Experiment
	err := s.db.Where("experiment_id = ?", id).First(&exp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("experiment %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get experiment %q: %w", id, err)
	}
	return &exp, nil
}

// GetExperimentByName resolves an experiment by its unique name.
func (s *Store) GetExperimentByName(name string) (*Experiment, error) {
	var exp Experiment
	err := s.db.Where("name = ?", name).First(&exp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("experiment named %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("get experiment named %q: %w", name, err)
	}
	return &exp, nil
}

// UpdateExperiment renames an experiment.
func (s *Store) UpdateExperiment(id, newName string) error {
	if newName == "" {
		return fmt.Errorf("experiment name must not be empty")
	}
	result := s.db.Model(&Experiment{}).Where("experiment_id = ?", id).
		Updates(map[string]any{"name": newName, "last_update_time": nowMillis()})
	if result.Error != nil {
		return fmt.Errorf("update experiment %q: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("experiment %q: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteExperiment soft-deletes an experiment.
func (s *Store) DeleteExperiment(id string) error {
	return s.setExperimentStage(id, LifecycleDeleted)
}

// RestoreExperiment reverses a soft delete.
func (s *Store) RestoreExperiment(id string) error {
	return s.setExperimentStage(id, LifecycleActive)
}

func (s *Store) setExperimentStage(id, stage string) error {
	result := s.db.Model(&Experiment{}).Where("experiment_id = ?", id).
		Updates(map[string]any{"lifecycle_stage": stage, "last_update_time": nowMillis()})
	if result.Error != nil {
		return fmt.Errorf("update experiment %q: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("experiment %q: %w", id, ErrNotFound)
	}
	return nil
}

var experimentColumns = map[string]string{
	"name":             "name",
	"lifecycle_stage":  "lifecycle_stage",
	"creation_time":    "creation_time",
	"last_update_time": "last_update_time",
}

var experimentOrderColumns = map[string]string{
	"experiment_id":    "experiment_id",
	"name":             "name",
	"creation_time":    "creation_time",
	"last_update_time": "last_update_time",
}

// SearchExperiments returns one ordered page of experiments matching the
// filter, plus a continuation token when more results remain.
func (s *Store) SearchExperiments(filter, orderBy string, maxResults int, pageToken string) ([]Experiment, string, error) {
	query := s.db.Model(&Experiment{})
	query, err := applyFilter(query, filter, experimentColumns)
	if err != nil {
		return nil, "", err
	}
	order, err := orderClause(orderBy, experimentOrderColumns, "name ASC")
	if err != nil {
		return nil, "", err
	}

	var page []Experiment
	nextToken, err := searchPage(query.Order(order), maxResults, pageToken, &page)
	if err != nil {
		return nil, "", fmt.Errorf("search experiments: %w", err)
	}
	return page, nextToken, nil
}

// CreateRun creates a run under an experiment. The owning experiment is
// fixed for the run's lifetime.
func (s *Store) CreateRun(experimentID, name, userID string, startTime int64) (*Run, error) {
	if _, err := s.GetExperiment(experimentID); err != nil {
		return nil, err
	}
	if startTime == 0 {
		startTime = nowMillis()
	}
	run := &Run{
		ID:             uuid.NewString(),
		ExperimentID:   experimentID,
		Name:           name,
		UserID:         userID,
		Status:         "RUNNING",
		StartTime:      startTime,
		LifecycleStage: LifecycleActive,
	}
	if err := s.db.Create(run).Error; err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	var run Run
	err := s.db.Where("run_uuid = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get run %q: %w", id, err)
	}
	return &run, nil
}

// UpdateRun sets a run's status, end time, and optionally its name.
func (s *Store) UpdateRun(id, status string, endTime int64, name string) error {
	updates := map[string]any{}
	if status != "" {
		updates["status"] = status
	}
	if endTime != 0 {
		updates["end_time"] = endTime
	}
	if name != "" {
		updates["name"] = name
	}
	if len(updates) == 0 {
		return nil
	}
	result := s.db.Model(&Run{}).Where("run_uuid = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update run %q: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run %q: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteRun soft-deletes a run.
func (s *Store) DeleteRun(id string) error {
	return s.setRunStage(id, LifecycleDeleted)
}

// RestoreRun reverses a soft delete.
func (s *Store) RestoreRun(id string) error {
	return s.setRunStage(id, LifecycleActive)
}

func (s *Store) setRunStage(id, stage string) error {
	result := s.db.Model(&Run{}).Where("run_uuid = ?", id).Update("lifecycle_stage", stage)
	if result.Error != nil {
		return fmt.Errorf("update run %q: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run %q: %w", id, ErrNotFound)
	}
	return nil
}

// LogMetric appends a metric value to a run's history.
func (s *Store) LogMetric(runID string, key string, value float64, timestamp, step int64) error {
	if _, err := s.GetRun(runID); err != nil {
		return err
	}
	metric := &Metric{RunID: runID, Key: key, Value: value, Timestamp: timestamp, Step: step}
	if err := s.db.Create(metric).Error; err != nil {
		return fmt.Errorf("log metric %q for run %q: %w", key, runID, err)
	}
	return nil
}

// GetMetricHistory returns all logged values for one metric of a run.
func (s *Store) GetMetricHistory(runID, key string) ([]Metric, error) {
	var metrics []Metric
	err := s.db.Where("run_uuid = ? AND key = ?", runID, key).
		Order("timestamp ASC, step ASC").Find(&metrics).Error
	if err != nil {
		return nil, fmt.Errorf("metric history %q for run %q: %w", key, runID, err)
	}
	return metrics, nil
}

// LogParam records a parameter. Params are write-once per (run, key).
func (s *Store) LogParam(runID, key, value string) error {
	if _, err := s.GetRun(runID); err != nil {
		return err
	}
	param := &Param{RunID: runID, Key: key, Value: value}
	if err := s.db.Create(param).Error; err != nil {
		return fmt.Errorf("log param %q for run %q: %w", key, runID, err)
	}
	return nil
}

// SetTag creates or replaces a tag on a run.
func (s *Store) SetTag(runID, key, value string) error {
	if _, err := s.GetRun(runID); err != nil {
		return err
	}
	var existing RunTag
	err := s.db.Where("run_uuid = ? AND key = ?", runID, key).First(&existing).Error
	switch {
	case err == nil:
		existing.Value = value
		if err := s.db.Save(&existing).Error; err != nil {
			return fmt.Errorf("update tag %q for run %q: %w", key, runID, err)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		tag := &RunTag{RunID: runID, Key: key, Value: value}
		if err := s.db.Create(tag).Error; err != nil {
			return fmt.Errorf("set tag %q for run %q: %w", key, runID, err)
		}
		return nil
	default:
		return fmt.Errorf("get tag %q for run %q: %w", key, runID, err)
	}
}

// CreateRegisteredModel registers a model name.
func (s *Store) CreateRegisteredModel(name, description string) (*RegisteredModel, error) {
	if name == "" {
		return nil, fmt.Errorf("registered model name must not be empty")
	}
	var count int64
	if err := s.db.Model(&RegisteredModel{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check registered model %q: %w", name, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("registered model %q: %w", name, ErrExists)
	}
	now := nowMillis()
	model := &RegisteredModel{
		Name:            name,
		Description:     description,
		CreationTime:    now,
		LastUpdatedTime: now,
	}
	if err := s.db.Create(model).Error; err != nil {
		return nil, fmt.Errorf("create registered model %q: %w", name, err)
	}
	return model, nil
}

// GetRegisteredModel returns a registered model by name.
func (s *Store) GetRegisteredModel(name string) (*RegisteredModel, error) {
	var model RegisteredModel
	err := s.db.Where("name = ?", name).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("registered model %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("get registered model %q: %w", name, err)
	}
	return &model, nil
}

// UpdateRegisteredModel replaces a model's description.
func (s *Store) UpdateRegisteredModel(name, description string) error {
	result := s.db.Model(&RegisteredModel{}).Where("name = ?", name).
		Updates(map[string]any{"description": description, "last_updated_timestamp": nowMillis()})
	if result.Error != nil {
		return fmt.Errorf("update registered model %q: %w", name, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("registered model %q: %w", name, ErrNotFound)
	}
	return nil
}

// DeleteRegisteredModel removes a registered model.
func (s *Store) DeleteRegisteredModel(name string) error {
	result := s.db.Where("name = ?", name).Delete(&RegisteredModel{})
	if result.Error != nil {
		return fmt.Errorf("delete registered model %q: %w", name, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("registered model %q: %w", name, ErrNotFound)
	}
	return nil
}

var registeredModelColumns = map[string]string{
	"name":        "name",
	"description": "description",
}

var registeredModelOrderColumns = map[string]string{
	"name":                   "name",
	"creation_timestamp":     "creation_timestamp",
	"last_updated_timestamp": "last_updated_timestamp",
}

// SearchRegisteredModels returns one ordered page of registered models
// matching the filter, plus a continuation token when more results remain.
func (s *Store) SearchRegisteredModels(filter, orderBy string, maxResults int, pageToken string) ([]RegisteredModel, string, error) {
	query := s.db.Model(&RegisteredModel{})
	query, err := applyFilter(query, filter, registeredModelColumns)
	if err != nil {
		return nil, "", err
	}
	order, err := orderClause(orderBy, registeredModelOrderColumns, "name ASC")
	if err != nil {
		return nil, "", err
	}

	var page []RegisteredModel
	nextToken, err := searchPage(query.Order(order), maxResults, pageToken, &page)
	if err != nil {
		return nil, "", fmt.Errorf("search registered models: %w", err)
	}
	return page, nextToken, nil
}

// applyFilter parses a filter string and adds its clauses as WHERE
// conditions, rejecting attributes outside the allowlist.
func applyFilter(query *gorm.DB, filter string, columns map[string]string) (*gorm.DB, error) {
	clauses, err := ParseFilter(filter)
	if err != nil {
		return nil, err
	}
	for _, clause := range clauses {
		sql, value, err := clause.whereClause(columns)
		if err != nil {
			return nil, err
		}
		query = query.Where(sql, value)
	}
	return query, nil
}

// orderClause validates an "attribute [ASC|DESC]" order_by value against an
// allowlist. An empty value falls back to the given default.
func orderClause(orderBy string, columns map[string]string, fallback string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return fallback, nil
	}
	fields := strings.Fields(orderBy)
	if len(fields) > 2 {
		return "", fmt.Errorf("invalid order_by %q", orderBy)
	}
	column, ok := columns[strings.TrimPrefix(fields[0], "attribute.")]
	if !ok {
		return "", fmt.Errorf("invalid order_by attribute %q", fields[0])
	}
	direction := "ASC"
	if len(fields) == 2 {
		switch strings.ToUpper(fields[1]) {
		case "ASC", "DESC":
			direction = strings.ToUpper(fields[1])
		default:
			return "", fmt.Errorf("invalid order_by direction %q", fields[1])
		}
	}
	return column + " " + direction, nil
}

// searchPage runs an offset query for one page, fetching one extra row to
// detect whether a continuation token is needed. dest must be a pointer to
// a slice.
func searchPage[T any](query *gorm.DB, maxResults int, pageToken string, dest *[]T) (string, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}
	offset, err := DecodePageToken(pageToken)
	if err != nil {
		return "", err
	}

	if err := query.Offset(offset).Limit(maxResults + 1).Find(dest).Error; err != nil {
		return "", err
	}

	var nextToken string
	if len(*dest) > maxResults {
		*dest = (*dest)[:maxResults]
		nextToken = EncodePageToken(offset + maxResults)
	}
	return nextToken, nil
}
