package cassandra

import "fmt"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS chat_sessions (
		project_id   text,
		issue_id     text,
		session_id   text,
		participants map<text, text>,
		version      bigint,
		created_at   timestamp,
		modified_at  timestamp,
		PRIMARY KEY ((project_id), issue_id, session_id)
	)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		session_id   text,
		message_id   text,
		sender_id    text,
		content_type text,
		content      text,
		url          text,
		created_at   timestamp,
		PRIMARY KEY ((session_id), message_id)
	)`,
}

// EnsureSchema creates the chat tables if they do not exist yet. The keyspace
// itself must already exist; it is provisioned with the cluster.
func (c *Client) EnsureSchema() error {
	for _, stmt := range schemaStatements {
		if err := c.session.Query(stmt).Exec(); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
