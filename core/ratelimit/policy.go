package ratelimit

import "time"

// Operation discriminates counters so the same user has independent
// windows for different mutation types.
type Operation string

const (
	OpCourseCreation    Operation = "course_creation"
	OpTeacherAssignment Operation = "teacher_assignment"
	OpPermissionUpdate  Operation = "permission_update"
	OpCategoryCreation  Operation = "category_creation"
	OpCategoryUpdate    Operation = "category_update"
	OpFileUpload        Operation = "file_upload"
)

const defaultKeyPrefix = "rl"

// DefaultPolicies is the fixed policy table applied to guarded endpoints.
func DefaultPolicies() map[Operation]Config {
	return map[Operation]Config{
		OpCourseCreation:    {MaxRequests: 10, Window: time.Hour, KeyPrefix: defaultKeyPrefix},
		OpTeacherAssignment: {MaxRequests: 50, Window: time.Hour, KeyPrefix: defaultKeyPrefix},
		OpPermissionUpdate:  {MaxRequests: 100, Window: time.Hour, KeyPrefix: defaultKeyPrefix},
		OpCategoryCreation:  {MaxRequests: 5, Window: time.Minute, KeyPrefix: defaultKeyPrefix},
		OpCategoryUpdate:    {MaxRequests: 10, Window: time.Minute, KeyPrefix: defaultKeyPrefix},
		OpFileUpload:        {MaxRequests: 20, Window: time.Hour, KeyPrefix: defaultKeyPrefix},
	}
}

// ValidatePolicies fails fast on a malformed policy table; called at startup.
func ValidatePolicies(policies map[Operation]Config) error {
	for _, cfg := range policies {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}
