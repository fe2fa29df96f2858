package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRegistry(t *testing.T) {
	runner := NewOpenAIRunner("test-key", "gpt-4", 0.2, 256)

	sessionID, err := runner.CreateSession(context.Background(), "query_optimizer", "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, sessionID)

	err = runner.DeleteSession(context.Background(), "query_optimizer", "user-1", sessionID)
	require.NoError(t, err)

	err = runner.DeleteSession(context.Background(), "query_optimizer", "user-1", sessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeleteSessionRequiresMatchingIdentity(t *testing.T) {
	runner := NewOpenAIRunner("test-key", "gpt-4", 0.2, 256)

	sessionID, err := runner.CreateSession(context.Background(), "query_optimizer", "user-1")
	require.NoError(t, err)

	err = runner.DeleteSession(context.Background(), "query_optimizer", "user-2", sessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = runner.DeleteSession(context.Background(), "other_app", "user-1", sessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = runner.DeleteSession(context.Background(), "query_optimizer", "user-1", sessionID)
	require.NoError(t, err)
}

func TestRunRejectsUnknownSession(t *testing.T) {
	runner := NewOpenAIRunner("test-key", "gpt-4", 0.2, 256)

	_, err := runner.Run(context.Background(), "user-1", "no-such-session", "hello")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestBuildPromptEmbedsInputsVerbatim(t *testing.T) {
	query := "SELECT * FROM a CROSS JOIN b"
	ddl := "CREATE TABLE `p.d.a` (\n  `x` INT64\n)"

	prompt := BuildPrompt(query, ddl)

	assert.Contains(t, prompt, "```sql\n"+query+"\n```")
	assert.Contains(t, prompt, "```sql\n"+ddl+"\n```")
	assert.Contains(t, prompt, "Analyze the user's query and the provided table/view DDLs.")
}
