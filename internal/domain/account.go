package domain

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null;column:name" json:"name"`
	User      string    `gorm:"column:user" json:"user"`
	Status    bool      `gorm:"not null;default:true;index" json:"status"`
	Timestamp time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (Account) TableName() string { return "account" }

type Bot struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null;column:name" json:"name"`
	Account   uuid.UUID `gorm:"type:uuid;not null;index;column:account" json:"account"`
	User      string    `gorm:"column:user" json:"user"`
	Status    bool      `gorm:"not null;default:true;index" json:"status"`
	Timestamp time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (Bot) TableName() string { return "bot" }

// BotAccess grants a user a role on a bot. Ownership transfer rewrites the
// owner row and evicts the bot's cached agent.
type BotAccess struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Bot       uuid.UUID `gorm:"type:uuid;not null;index;column:bot" json:"bot"`
	Username  string    `gorm:"not null;index;column:username" json:"username"`
	Role      string    `gorm:"not null;column:role" json:"role"`
	User      string    `gorm:"column:user" json:"user"`
	Status    bool      `gorm:"not null;default:true;index" json:"status"`
	Timestamp time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (BotAccess) TableName() string { return "bot_access" }

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleTester = "tester"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password  string    `gorm:"not null;column:password" json:"-"`
	FirstName string    `gorm:"column:first_name" json:"first_name"`
	LastName  string    `gorm:"column:last_name" json:"last_name"`
	Account   uuid.UUID `gorm:"type:uuid;not null;index;column:account" json:"account"`
	Status    bool      `gorm:"not null;default:true;index" json:"status"`
	Timestamp time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

func (User) TableName() string { return "user" }
