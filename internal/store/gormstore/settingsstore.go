package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adforge/slotmarket/internal/role"
	"github.com/adforge/slotmarket/internal/settings"
)

const globalSettingID = "global"

// SettingsStore implements settings.Store.
type SettingsStore struct {
	db *gorm.DB
}

// NewSettingsStore returns a SettingsStore backed by gorm.DB.
func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (store *SettingsStore) GetGlobalSettings(ctx context.Context) (settings.GlobalSettings, error) {
	var row CashGlobalSetting
	err := store.db.WithContext(ctx).
		Where("setting_id = ?", globalSettingID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return settings.GlobalSettings{}, settings.ErrNotFound
	}
	if err != nil {
		return settings.GlobalSettings{}, wrapStoreError(errorSubjectSettings, errorCodeGet, err)
	}
	return settings.GlobalSettings{
		BankName:           row.BankName,
		BankAccountNumber:  row.BankAccountNumber,
		BankAccountHolder:  row.BankAccountHolder,
		ChargeBonusPercent: row.ChargeBonusPercent,
		MinChargeCents:     row.MinChargeCents,
		UpdatedUnixUTC:     row.UpdatedAt.Unix(),
	}, nil
}

func (store *SettingsStore) SaveGlobalSettings(ctx context.Context, row settings.GlobalSettings) error {
	model := CashGlobalSetting{
		SettingID:          globalSettingID,
		BankName:           row.BankName,
		BankAccountNumber:  row.BankAccountNumber,
		BankAccountHolder:  row.BankAccountHolder,
		ChargeBonusPercent: row.ChargeBonusPercent,
		MinChargeCents:     row.MinChargeCents,
		UpdatedAt:          time.Unix(row.UpdatedUnixUTC, 0).UTC(),
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectSettings, errorCodeSave, err)
	}
	return nil
}

func (store *SettingsStore) GetUserSettings(ctx context.Context, userID string) (settings.UserSettings, error) {
	var row CashUserSetting
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return settings.UserSettings{}, settings.ErrNotFound
	}
	if err != nil {
		return settings.UserSettings{}, wrapStoreError(errorSubjectSettings, errorCodeGet, err)
	}
	return settings.UserSettings{
		UserID:                   row.UserID,
		DepositorName:            row.DepositorName,
		TaxInvoiceEmail:          row.TaxInvoiceEmail,
		AutoChargeEnabled:        row.AutoChargeEnabled,
		AutoChargeThresholdCents: row.AutoChargeThresholdCents,
		AutoChargeAmountCents:    row.AutoChargeAmountCents,
		UpdatedUnixUTC:           row.UpdatedAt.Unix(),
	}, nil
}

func (store *SettingsStore) SaveUserSettings(ctx context.Context, row settings.UserSettings) error {
	model := CashUserSetting{
		UserID:                   row.UserID,
		DepositorName:            row.DepositorName,
		TaxInvoiceEmail:          row.TaxInvoiceEmail,
		AutoChargeEnabled:        row.AutoChargeEnabled,
		AutoChargeThresholdCents: row.AutoChargeThresholdCents,
		AutoChargeAmountCents:    row.AutoChargeAmountCents,
		UpdatedAt:                time.Unix(row.UpdatedUnixUTC, 0).UTC(),
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectSettings, errorCodeSave, err)
	}
	return nil
}

func (store *SettingsStore) GetSearchLimits(ctx context.Context, forRole role.Role) (settings.SearchLimits, error) {
	var row SearchLimitsConfig
	err := store.db.WithContext(ctx).
		Where("role = ?", forRole.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return settings.SearchLimits{}, settings.ErrNotFound
	}
	if err != nil {
		return settings.SearchLimits{}, wrapStoreError(errorSubjectSettings, errorCodeGet, err)
	}
	parsedRole, err := role.Parse(row.Role)
	if err != nil {
		return settings.SearchLimits{}, wrapStoreError(errorSubjectSettings, errorCodeInvalid, err)
	}
	return settings.SearchLimits{
		Role:            parsedRole,
		DailyLimit:      row.DailyLimit,
		IntervalSeconds: row.IntervalSeconds,
		UpdatedUnixUTC:  row.UpdatedAt.Unix(),
	}, nil
}

func (store *SettingsStore) SaveSearchLimits(ctx context.Context, row settings.SearchLimits) error {
	model := SearchLimitsConfig{
		Role:            row.Role.String(),
		DailyLimit:      row.DailyLimit,
		IntervalSeconds: row.IntervalSeconds,
		UpdatedAt:       time.Unix(row.UpdatedUnixUTC, 0).UTC(),
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectSettings, errorCodeSave, err)
	}
	return nil
}
