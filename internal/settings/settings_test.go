package settings_test

import (
	"context"
	"errors"
	"testing"

	"github.com/adforge/slotmarket/internal/role"
	"github.com/adforge/slotmarket/internal/settings"
)

type stubStore struct {
	global       settings.GlobalSettings
	hasGlobal    bool
	userRows     map[string]settings.UserSettings
	searchLimits map[role.Role]settings.SearchLimits
}

func newStubStore() *stubStore {
	return &stubStore{
		userRows:     make(map[string]settings.UserSettings),
		searchLimits: make(map[role.Role]settings.SearchLimits),
	}
}

func (store *stubStore) GetGlobalSettings(ctx context.Context) (settings.GlobalSettings, error) {
	if !store.hasGlobal {
		return settings.GlobalSettings{}, settings.ErrNotFound
	}
	return store.global, nil
}

func (store *stubStore) SaveGlobalSettings(ctx context.Context, row settings.GlobalSettings) error {
	store.global = row
	store.hasGlobal = true
	return nil
}

func (store *stubStore) GetUserSettings(ctx context.Context, userID string) (settings.UserSettings, error) {
	row, ok := store.userRows[userID]
	if !ok {
		return settings.UserSettings{}, settings.ErrNotFound
	}
	return row, nil
}

func (store *stubStore) SaveUserSettings(ctx context.Context, row settings.UserSettings) error {
	store.userRows[row.UserID] = row
	return nil
}

func (store *stubStore) GetSearchLimits(ctx context.Context, forRole role.Role) (settings.SearchLimits, error) {
	row, ok := store.searchLimits[forRole]
	if !ok {
		return settings.SearchLimits{}, settings.ErrNotFound
	}
	return row, nil
}

func (store *stubStore) SaveSearchLimits(ctx context.Context, row settings.SearchLimits) error {
	store.searchLimits[row.Role] = row
	return nil
}

func mustNewService(test *testing.T, store settings.Store) *settings.Service {
	test.Helper()
	service, err := settings.NewService(store, func() int64 { return 1000 })
	if err != nil {
		test.Fatalf("NewService: %v", err)
	}
	return service
}

func TestUpdateGlobalIsAdminOnly(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store)
	row := settings.GlobalSettings{
		BankName:           "First Bank",
		BankAccountNumber:  "110-222-333",
		BankAccountHolder:  "AdForge Co",
		ChargeBonusPercent: 10,
		MinChargeCents:     100000,
	}

	if _, err := service.UpdateGlobal(context.Background(), role.Distributor, row); !errors.Is(err, settings.ErrForbidden) {
		test.Fatalf("distributor err = %v, want ErrForbidden", err)
	}

	saved, err := service.UpdateGlobal(context.Background(), role.Admin, row)
	if err != nil {
		test.Fatalf("UpdateGlobal: %v", err)
	}
	if saved.UpdatedUnixUTC != 1000 {
		test.Fatalf("updated at %d, want 1000", saved.UpdatedUnixUTC)
	}
	loaded, err := service.Global(context.Background())
	if err != nil {
		test.Fatalf("Global: %v", err)
	}
	if loaded.BankAccountNumber != "110-222-333" {
		test.Fatalf("loaded %+v, want the saved row", loaded)
	}
}

func TestUpdateGlobalValidation(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore())
	cases := []struct {
		name string
		row  settings.GlobalSettings
	}{
		{name: "missing bank account", row: settings.GlobalSettings{BankName: "First Bank"}},
		{name: "bonus percent over 100", row: settings.GlobalSettings{BankName: "b", BankAccountNumber: "1", ChargeBonusPercent: 101}},
		{name: "negative min charge", row: settings.GlobalSettings{BankName: "b", BankAccountNumber: "1", MinChargeCents: -1}},
	}
	for _, testCase := range cases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			if _, err := service.UpdateGlobal(context.Background(), role.Admin, testCase.row); !errors.Is(err, settings.ErrInvalidSettings) {
				test.Fatalf("err = %v, want ErrInvalidSettings", err)
			}
		})
	}
}

func TestUserSettingsVisibility(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store)
	row := settings.UserSettings{UserID: "user-1", DepositorName: "Hong Gildong"}

	if _, err := service.UpdateUser(context.Background(), "user-2", role.Advertiser, row); !errors.Is(err, settings.ErrForbidden) {
		test.Fatalf("foreign update err = %v, want ErrForbidden", err)
	}
	if _, err := service.UpdateUser(context.Background(), "user-1", role.Advertiser, row); err != nil {
		test.Fatalf("self update: %v", err)
	}
	if _, err := service.User(context.Background(), "user-2", role.Advertiser, "user-1"); !errors.Is(err, settings.ErrForbidden) {
		test.Fatalf("foreign read err = %v, want ErrForbidden", err)
	}
	if _, err := service.User(context.Background(), "admin-1", role.Admin, "user-1"); err != nil {
		test.Fatalf("admin read: %v", err)
	}

	invalid := settings.UserSettings{UserID: "user-1", AutoChargeEnabled: true, AutoChargeAmountCents: 0}
	if _, err := service.UpdateUser(context.Background(), "user-1", role.Advertiser, invalid); !errors.Is(err, settings.ErrInvalidSettings) {
		test.Fatalf("auto charge without amount err = %v, want ErrInvalidSettings", err)
	}
}

func TestSearchLimitsPerRole(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store)

	if _, err := service.UpdateSearchLimits(context.Background(), role.Admin, settings.SearchLimits{Role: "visitor", DailyLimit: 10}); !errors.Is(err, settings.ErrInvalidSettings) {
		test.Fatalf("unknown role err = %v, want ErrInvalidSettings", err)
	}
	if _, err := service.UpdateSearchLimits(context.Background(), role.Admin, settings.SearchLimits{Role: role.Advertiser, DailyLimit: 0}); !errors.Is(err, settings.ErrInvalidSettings) {
		test.Fatalf("zero limit err = %v, want ErrInvalidSettings", err)
	}
	if _, err := service.UpdateSearchLimits(context.Background(), role.Distributor, settings.SearchLimits{Role: role.Advertiser, DailyLimit: 100}); !errors.Is(err, settings.ErrForbidden) {
		test.Fatalf("non-admin err = %v, want ErrForbidden", err)
	}

	if _, err := service.UpdateSearchLimits(context.Background(), role.Admin, settings.SearchLimits{Role: role.Advertiser, DailyLimit: 100, IntervalSeconds: 2}); err != nil {
		test.Fatalf("UpdateSearchLimits: %v", err)
	}
	limits, err := service.SearchLimits(context.Background(), role.Advertiser)
	if err != nil {
		test.Fatalf("SearchLimits: %v", err)
	}
	if limits.DailyLimit != 100 || limits.IntervalSeconds != 2 {
		test.Fatalf("limits = %+v", limits)
	}
	if _, err := service.SearchLimits(context.Background(), role.Distributor); !errors.Is(err, settings.ErrNotFound) {
		test.Fatalf("missing row err = %v, want ErrNotFound", err)
	}
}
