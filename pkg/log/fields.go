package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID = "user_id"
	FieldEmail  = "email"

	// Chat domain
	FieldProjectID = "project_id"
	FieldIssueID   = "issue_id"
	FieldSessionID = "session_id"
	FieldMessageID = "message_id"

	// Service
	FieldService = "service"
)
