package authstore

// User is the GORM model for an account. Passwords are stored as bcrypt
// hashes only.
type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"column:username;uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	IsAdmin      bool   `gorm:"column:is_admin;not null;default:false"`
}

// TableName returns the GORM table name.
func (User) TableName() string { return "users" }

// ExperimentPermission is a grant of a permission level to a user on one
// experiment. Runs never carry grants of their own; run authorization
// resolves to the owning experiment's grant.
type ExperimentPermission struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	ExperimentID string `gorm:"column:experiment_id;uniqueIndex:idx_experiment_user,priority:1;not null"`
	Username     string `gorm:"column:username;uniqueIndex:idx_experiment_user,priority:2;index:idx_experiment_perm_user;not null"`
	Permission   string `gorm:"column:permission;not null"`
}

// TableName returns the GORM table name.
func (ExperimentPermission) TableName() string { return "experiment_permissions" }

// RegisteredModelPermission is a grant of a permission level to a user on
// one registered model, keyed by model name.
type RegisteredModelPermission struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Name       string `gorm:"column:name;uniqueIndex:idx_model_user,priority:1;not null"`
	Username   string `gorm:"column:username;uniqueIndex:idx_model_user,priority:2;index:idx_model_perm_user;not null"`
	Permission string `gorm:"column:permission;not null"`
}

// TableName returns the GORM table name.
func (RegisteredModelPermission) TableName() string { return "registered_model_permissions" }
