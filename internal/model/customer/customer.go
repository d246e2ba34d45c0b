package customer

import (
	"context"
	"time"
)

// Customer 是持有有效合同、可以使用支持助手的客户。
type Customer struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	ContractNumber string     `json:"contractNumber"`
	IsActive       bool       `json:"isActive"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
}

type Store interface {
	GetCustomers(ctx context.Context) ([]Customer, error)
	SaveCustomer(ctx context.Context, c Customer) error
	DeleteCustomer(ctx context.Context, id string) error
}

// DefaultSessionTimeoutMinutes is used when no settings were saved.
const DefaultSessionTimeoutMinutes = 15

// Settings 是可在后台调整的运行参数。
type Settings struct {
	SessionTimeoutMinutes int `json:"sessionTimeoutMinutes"`
}

// SessionTimeout converts the minutes setting, falling back to the default.
func (s Settings) SessionTimeout() time.Duration {
	minutes := s.SessionTimeoutMinutes
	if minutes <= 0 {
		minutes = DefaultSessionTimeoutMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// SettingsStore persists Settings. found=false means never saved.
type SettingsStore interface {
	GetSettings(ctx context.Context) (Settings, bool, error)
	SaveSettings(ctx context.Context, s Settings) error
}
