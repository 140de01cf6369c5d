package store

// Course is a tracked LMS course page.
type Course struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	ScanInterval  int64  `json:"scan_interval"` // ms
	Enabled       bool   `json:"enabled"`
	CredentialID  string `json:"credential_id,omitempty"`
	LastScannedAt *int64 `json:"last_scanned_at,omitempty"`
	LastStatus    string `json:"last_status"`
	LastError     string `json:"last_error"`
	FailCount     int    `json:"fail_count"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

// Assignment is a persisted assignment record for a course.
type Assignment struct {
	ID          string  `json:"id"`
	CourseID    string  `json:"course_id"`
	Title       string  `json:"title"`
	DueAt       *int64  `json:"due_at,omitempty"` // ms
	RawDue      string  `json:"raw_due,omitempty"`
	Confidence  float64 `json:"confidence"`
	MatchedText string  `json:"matched_text"`
	Markdown    string  `json:"markdown,omitempty"`
	Link        string  `json:"link,omitempty"`
	Tier        string  `json:"tier"`
	NotifiedAt  *int64  `json:"notified_at,omitempty"`
	FirstSeenAt int64   `json:"first_seen_at"`
	LastSeenAt  int64   `json:"last_seen_at"`
}

// ScanLogEntry is one scan attempt record.
type ScanLogEntry struct {
	ID            string  `json:"id"`
	CourseID      string  `json:"course_id"`
	Status        string  `json:"status"`
	Candidates    int     `json:"candidates"`
	Verified      int     `json:"verified"`
	Rejected      int     `json:"rejected"`
	DateFailures  int     `json:"date_failures"`
	AvgConfidence float64 `json:"avg_confidence"`
	Tier          string  `json:"tier"`
	ErrorMessage  string  `json:"error_message"`
	DurationMs    int64   `json:"duration_ms"`
	ScannedAt     int64   `json:"scanned_at"`
}

// Credential is a stored LMS login. Sealed holds the encrypted password;
// the plaintext never touches the database.
type Credential struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Username  string `json:"username"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}
