package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileNames(t *testing.T) {
	group := "Sopranos"

	p := Profile{FirstName: "Ada", LastName: "Lovelace", GroupLabel: &group}
	assert.Equal(t, "Ada Lovelace", p.FullName())
	assert.Equal(t, "Sopranos", p.GroupName())

	p = Profile{FirstName: "Ada"}
	assert.Equal(t, "Ada", p.FullName())
	assert.Empty(t, p.GroupName())
}

func TestDefaultNotificationPreferences(t *testing.T) {
	prefs := DefaultNotificationPreferences()

	assert.Len(t, prefs, 6)

	for topic, on := range prefs {
		assert.True(t, on, topic)
	}
}

func TestCredentialPassword(t *testing.T) {
	hash, err := HashPassword("s3cr3t")
	require.NoError(t, err)

	c := Credential{UserID: "u1", PasswordHash: hash}
	assert.True(t, c.VerifyPassword("s3cr3t"))
	assert.False(t, c.VerifyPassword("wrong"))

	assert.False(t, (&Credential{}).VerifyPassword("s3cr3t"))
	assert.False(t, (&Credential{PasswordHash: "not-a-hash"}).VerifyPassword("s3cr3t"))
}
