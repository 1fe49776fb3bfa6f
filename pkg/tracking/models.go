package tracking

// LifecycleStage values for experiments and runs.
const (
	LifecycleActive  = "active"
	LifecycleDeleted = "deleted"
)

// Experiment is the GORM model for a tracking experiment. IDs are opaque
// strings assigned at creation.
type Experiment struct {
	ID               string `gorm:"primaryKey;column:experiment_id;type:varchar(36)" json:"experiment_id"`
	Name             string `gorm:"column:name;uniqueIndex;not null" json:"name"`
	ArtifactLocation string `gorm:"column:artifact_location" json:"artifact_location,omitempty"`
	LifecycleStage   string `gorm:"column:lifecycle_stage;not null;default:active" json:"lifecycle_stage"`
	CreationTime     int64  `gorm:"column:creation_time" json:"creation_time"`
	LastUpdateTime   int64  `gorm:"column:last_update_time" json:"last_update_time"`
}

// TableName returns the GORM table name.
func (Experiment) TableName() string { return "experiments" }

// Run is the GORM model for a run. A run belongs to exactly one experiment,
// fixed at creation; authorization for runs always resolves to the owning
// experiment.
type Run struct {
	ID             string `gorm:"primaryKey;column:run_uuid;type:varchar(36)" json:"run_id"`
	ExperimentID   string `gorm:"column:experiment_id;index;not null" json:"experiment_id"`
	Name           string `gorm:"column:name" json:"run_name,omitempty"`
	UserID         string `gorm:"column:user_id" json:"user_id,omitempty"`
	Status         string `gorm:"column:status;default:RUNNING" json:"status"`
	StartTime      int64  `gorm:"column:start_time" json:"start_time"`
	EndTime        int64  `gorm:"column:end_time" json:"end_time,omitempty"`
	LifecycleStage string `gorm:"column:lifecycle_stage;not null;default:active" json:"lifecycle_stage"`
}

// TableName returns the GORM table name.
func (Run) TableName() string { return "runs" }

// Metric is a single logged metric value for a run.
type Metric struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"-"`
	RunID     string  `gorm:"column:run_uuid;index;not null" json:"-"`
	Key       string  `gorm:"column:key;not null" json:"key"`
	Value     float64 `gorm:"column:value;not null" json:"value"`
	Timestamp int64   `gorm:"column:timestamp" json:"timestamp"`
	Step      int64   `gorm:"column:step" json:"step"`
}

// TableName returns the GORM table name.
func (Metric) TableName() string { return "metrics" }

// Param is a single logged parameter for a run. The first write wins;
// params are immutable after logging.
type Param struct {
	ID    uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	RunID string `gorm:"column:run_uuid;uniqueIndex:idx_param_run_key,priority:1;not null" json:"-"`
	Key   string `gorm:"column:key;uniqueIndex:idx_param_run_key,priority:2;not null" json:"key"`
	Value string `gorm:"column:value;not null" json:"value"`
}

// TableName returns the GORM table name.
func (Param) TableName() string { return "params" }

// RunTag is a mutable key/value tag on a run.
type RunTag struct {
	ID    uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	RunID string `gorm:"column:run_uuid;uniqueIndex:idx_tag_run_key,priority:1;not null" json:"-"`
	Key   string `gorm:"column:key;uniqueIndex:idx_tag_run_key,priority:2;not null" json:"key"`
	Value string `gorm:"column:value" json:"value"`
}

// TableName returns the GORM table name.
func (RunTag) TableName() string { return "run_tags" }

// RegisteredModel is the GORM model for a model-registry entry, keyed by name.
type RegisteredModel struct {
	ID              uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	Name            string `gorm:"column:name;uniqueIndex;not null" json:"name"`
	Description     string `gorm:"column:description" json:"description,omitempty"`
	CreationTime    int64  `gorm:"column:creation_timestamp" json:"creation_timestamp"`
	LastUpdatedTime int64  `gorm:"column:last_updated_timestamp" json:"last_updated_timestamp"`
}

// TableName returns the GORM table name.
func (RegisteredModel) TableName() string { return "registered_models" }
