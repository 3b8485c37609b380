package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAction_Valid(t *testing.T) {
	for _, a := range []Action{
		ActionTokenIssued, ActionNotificationSent, ActionFormAccessed,
		ActionDocumentSigned, ActionDocumentGenerationFailed, ActionTokenExpired,
	} {
		assert.True(t, a.Valid(), a)
	}
	assert.False(t, Action("token_deleted").Valid())
	assert.False(t, Action("").Valid())
}

func TestVerifyReport_Passed(t *testing.T) {
	assert.True(t, (&VerifyReport{Total: 2, Valid: 1, Unsigned: 1}).Passed())
	assert.False(t, (&VerifyReport{Total: 1, Invalid: []uuid.UUID{uuid.New()}}).Passed())
}
