// Package settings holds the admin-edited configuration rows: global cash
// settings, per-user cash settings, and per-role search limits.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adforge/slotmarket/internal/role"
)

var (
	ErrNotFound             = errors.New("settings row not found")
	ErrForbidden            = errors.New("caller may not edit settings")
	ErrInvalidSettings      = errors.New("invalid settings")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// GlobalSettings is the single shared cash configuration row.
type GlobalSettings struct {
	BankName           string
	BankAccountNumber  string
	BankAccountHolder  string
	ChargeBonusPercent int64
	MinChargeCents     int64
	UpdatedUnixUTC     int64
}

// UserSettings is one user's cash configuration.
type UserSettings struct {
	UserID                   string
	DepositorName            string
	TaxInvoiceEmail          string
	AutoChargeEnabled        bool
	AutoChargeThresholdCents int64
	AutoChargeAmountCents    int64
	UpdatedUnixUTC           int64
}

// SearchLimits caps keyword searches for one role.
type SearchLimits struct {
	Role            role.Role
	DailyLimit      int64
	IntervalSeconds int64
	UpdatedUnixUTC  int64
}

// Store is the persistence contract used by Service.
type Store interface {
	GetGlobalSettings(ctx context.Context) (GlobalSettings, error)
	SaveGlobalSettings(ctx context.Context, settings GlobalSettings) error
	GetUserSettings(ctx context.Context, userID string) (UserSettings, error)
	SaveUserSettings(ctx context.Context, settings UserSettings) error
	GetSearchLimits(ctx context.Context, forRole role.Role) (SearchLimits, error)
	SaveSearchLimits(ctx context.Context, limits SearchLimits) error
}

// Service contains the settings logic over a Store.
type Service struct {
	store Store
	nowFn func() int64
}

// NewService wires a Service.
func NewService(store Store, now func() int64) (*Service, error) {
	if store == nil || now == nil {
		return nil, fmt.Errorf("%w: nil dependency", ErrInvalidServiceConfig)
	}
	return &Service{store: store, nowFn: now}, nil
}

// Global returns the shared cash settings row.
func (service *Service) Global(ctx context.Context) (GlobalSettings, error) {
	return service.store.GetGlobalSettings(ctx)
}

// UpdateGlobal replaces the shared cash settings row. Admin only.
func (service *Service) UpdateGlobal(ctx context.Context, callerRole role.Role, settings GlobalSettings) (GlobalSettings, error) {
	if callerRole != role.Admin {
		return GlobalSettings{}, ErrForbidden
	}
	if strings.TrimSpace(settings.BankName) == "" || strings.TrimSpace(settings.BankAccountNumber) == "" {
		return GlobalSettings{}, fmt.Errorf("%w: bank account is required", ErrInvalidSettings)
	}
	if settings.ChargeBonusPercent < 0 || settings.ChargeBonusPercent > 100 {
		return GlobalSettings{}, fmt.Errorf("%w: bonus percent out of range", ErrInvalidSettings)
	}
	if settings.MinChargeCents < 0 {
		return GlobalSettings{}, fmt.Errorf("%w: negative minimum charge", ErrInvalidSettings)
	}
	settings.UpdatedUnixUTC = service.nowFn()
	if err := service.store.SaveGlobalSettings(ctx, settings); err != nil {
		return GlobalSettings{}, err
	}
	return settings, nil
}

// User returns one user's cash settings; users see only their own row.
func (service *Service) User(ctx context.Context, callerID string, callerRole role.Role, userID string) (UserSettings, error) {
	if callerRole != role.Admin && callerID != userID {
		return UserSettings{}, ErrForbidden
	}
	return service.store.GetUserSettings(ctx, userID)
}

// UpdateUser replaces one user's cash settings.
func (service *Service) UpdateUser(ctx context.Context, callerID string, callerRole role.Role, settings UserSettings) (UserSettings, error) {
	if callerRole != role.Admin && callerID != settings.UserID {
		return UserSettings{}, ErrForbidden
	}
	if settings.UserID == "" {
		return UserSettings{}, fmt.Errorf("%w: user id is required", ErrInvalidSettings)
	}
	if settings.AutoChargeEnabled && settings.AutoChargeAmountCents <= 0 {
		return UserSettings{}, fmt.Errorf("%w: auto charge amount must be positive", ErrInvalidSettings)
	}
	if settings.AutoChargeThresholdCents < 0 || settings.AutoChargeAmountCents < 0 {
		return UserSettings{}, fmt.Errorf("%w: negative auto charge value", ErrInvalidSettings)
	}
	settings.UpdatedUnixUTC = service.nowFn()
	if err := service.store.SaveUserSettings(ctx, settings); err != nil {
		return UserSettings{}, err
	}
	return settings, nil
}

// SearchLimits returns the search caps for one role.
func (service *Service) SearchLimits(ctx context.Context, forRole role.Role) (SearchLimits, error) {
	return service.store.GetSearchLimits(ctx, forRole)
}

// UpdateSearchLimits replaces one role's search caps. Admin only.
func (service *Service) UpdateSearchLimits(ctx context.Context, callerRole role.Role, limits SearchLimits) (SearchLimits, error) {
	if callerRole != role.Admin {
		return SearchLimits{}, ErrForbidden
	}
	if _, err := role.Parse(limits.Role.String()); err != nil {
		return SearchLimits{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if limits.DailyLimit <= 0 || limits.IntervalSeconds < 0 {
		return SearchLimits{}, fmt.Errorf("%w: limits out of range", ErrInvalidSettings)
	}
	limits.UpdatedUnixUTC = service.nowFn()
	if err := service.store.SaveSearchLimits(ctx, limits); err != nil {
		return SearchLimits{}, err
	}
	return limits, nil
}
