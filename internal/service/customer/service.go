package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/modernsoft/estock-support/backend/internal/model/customer"
)

var (
	ErrNotFound           = errors.New("customer not found")
	ErrContractExists     = errors.New("contract number already registered")
	ErrFieldsRequired     = errors.New("name and contract number are required")
	ErrInvalidCredentials = errors.New("invalid credentials or inactive account")
	ErrInvalidTimeout     = errors.New("session timeout must be positive")
)

// Store 是客户服务需要的持久化能力。
type Store interface {
	customer.Store
	customer.SettingsStore
}

// Service 管理客户账号与运行设置。
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// List returns every customer ordered by name.
func (s *Service) List(ctx context.Context) ([]customer.Customer, error) {
	return s.store.GetCustomers(ctx)
}

// Get 按 ID 查找客户。
func (s *Service) Get(ctx context.Context, id string) (*customer.Customer, error) {
	customers, err := s.store.GetCustomers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range customers {
		if customers[i].ID == id {
			c := customers[i]
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

// Authenticate 校验姓名与合同号（两侧去空白后精确匹配），仅允许启用的账号登录，并刷新 LastLogin。
func (s *Service) Authenticate(ctx context.Context, name, contract string) (*customer.Customer, error) {
	name = strings.TrimSpace(name)
	contract = strings.TrimSpace(contract)
	if name == "" || contract == "" {
		return nil, ErrFieldsRequired
	}

	customers, err := s.store.GetCustomers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range customers {
		c := customers[i]
		if strings.TrimSpace(c.Name) != name || strings.TrimSpace(c.ContractNumber) != contract {
			continue
		}
		if !c.IsActive {
			return nil, ErrInvalidCredentials
		}
		now := s.now().UTC()
		c.LastLogin = &now
		if err := s.store.SaveCustomer(ctx, c); err != nil {
			return nil, fmt.Errorf("update last login: %w", err)
		}
		return &c, nil
	}
	return nil, ErrInvalidCredentials
}

// Register 创建新的启用客户。合同号重复优先于字段缺失报错。
func (s *Service) Register(ctx context.Context, name, contract string) (*customer.Customer, error) {
	name = strings.TrimSpace(name)
	contract = strings.TrimSpace(contract)

	customers, err := s.store.GetCustomers(ctx)
	if err != nil {
		return nil, err
	}
	if contract != "" && containsContract(customers, contract) {
		return nil, ErrContractExists
	}
	if name == "" || contract == "" {
		return nil, ErrFieldsRequired
	}

	c := customer.Customer{
		ID:             uuid.NewString(),
		Name:           name,
		ContractNumber: contract,
		IsActive:       true,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.SaveCustomer(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save upserts a customer edited in the admin panel.
func (s *Service) Save(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.ContractNumber = strings.TrimSpace(c.ContractNumber)
	if c.Name == "" || c.ContractNumber == "" {
		return customer.Customer{}, ErrFieldsRequired
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	if err := s.store.SaveCustomer(ctx, c); err != nil {
		return customer.Customer{}, err
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteCustomer(ctx, id)
}

// BulkAdd 批量导入客户，跳过已存在（或本批次内重复）的合同号，返回新增数量。
func (s *Service) BulkAdd(ctx context.Context, incoming []customer.Customer) (int, error) {
	existing, err := s.store.GetCustomers(ctx)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, c := range existing {
		seen[strings.TrimSpace(c.ContractNumber)] = struct{}{}
	}

	added := 0
	for _, c := range incoming {
		contract := strings.TrimSpace(c.ContractNumber)
		if contract == "" || strings.TrimSpace(c.Name) == "" {
			continue
		}
		if _, dup := seen[contract]; dup {
			continue
		}
		seen[contract] = struct{}{}
		c.IsActive = true
		if _, err := s.Save(ctx, c); err != nil {
			return added, fmt.Errorf("bulk add %s: %w", contract, err)
		}
		added++
	}
	return added, nil
}

// Settings 返回运行设置，未保存时使用默认值。
func (s *Service) Settings(ctx context.Context) (customer.Settings, error) {
	settings, found, err := s.store.GetSettings(ctx)
	if err != nil {
		return customer.Settings{}, err
	}
	if !found || settings.SessionTimeoutMinutes <= 0 {
		settings.SessionTimeoutMinutes = customer.DefaultSessionTimeoutMinutes
	}
	return settings, nil
}

func (s *Service) SaveSettings(ctx context.Context, settings customer.Settings) error {
	if settings.SessionTimeoutMinutes <= 0 {
		return ErrInvalidTimeout
	}
	return s.store.SaveSettings(ctx, settings)
}

func containsContract(customers []customer.Customer, contract string) bool {
	for _, c := range customers {
		if strings.TrimSpace(c.ContractNumber) == contract {
			return true
		}
	}
	return false
}
