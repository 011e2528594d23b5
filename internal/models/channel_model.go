package models

import (
	"time"
)

type Channel struct {
	ID             string     `db:"id" json:"id" bson:"_id" yaml:"id"`
	Name           string     `db:"name" json:"name" bson:"name" yaml:"name"`
	Handle         string     `db:"handle" json:"handle" bson:"handle" yaml:"handle"`
	AccountID      string     `db:"account_id" json:"account_id" bson:"account_id" yaml:"account_id"`
	AccessToken    string     `db:"access_token" json:"access_token,omitempty" bson:"access_token" yaml:"access_token"`
	TokenExpiresAt *time.Time `db:"token_expires_at" json:"token_expires_at" bson:"token_expires_at" yaml:"token_expires_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at" bson:"created_at" yaml:"-"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at" bson:"updated_at" yaml:"-"`
}

// Configured reports whether the channel can be published to.
func (c *Channel) Configured() bool {
	return c.AccessToken != "" && c.AccountID != ""
}

func (c *Channel) Redacted() *Channel {
	v := *c
	v.AccessToken = ""
	return &v
}

// DefaultChannels is the fixed set provisioned when no seed file is given.
func DefaultChannels(now time.Time) []*Channel {
	return []*Channel{
		{ID: "main", Name: "Main", Handle: "", CreatedAt: now, UpdatedAt: now},
		{ID: "secondary", Name: "Secondary", Handle: "", CreatedAt: now, UpdatedAt: now},
		{ID: "backup", Name: "Backup", Handle: "", CreatedAt: now, UpdatedAt: now},
	}
}
