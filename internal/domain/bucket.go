package domain

import "time"

// Bucket groups objects under a globally unique name.
type Bucket struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserID    string    `json:"user_id"`
	Public    bool      `json:"public"`
	CreatedAt time.Time `json:"created_at"`
}

// Object is one stored payload, keyed by (bucket id, key). Writing the
// same pair again replaces the record, there is no versioning.
type Object struct {
	BucketID    string    `json:"bucket_id"`
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"`
	Public      bool      `json:"public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UsageReport is the per-user storage aggregation result.
type UsageReport struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Objects int    `json:"objects"`
	Bytes   int64  `json:"bytes"`
}
