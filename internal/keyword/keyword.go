// Package keyword manages keyword groups and keywords. Every mutation
// verifies that the caller owns the group; an unknown id and a foreign id are
// reported as the same error so existence never leaks.
package keyword

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Domain-level error values returned by the keyword service.
var (
	ErrNotFoundOrForbidden  = errors.New("keyword not found or not owned by caller")
	ErrGroupNotFound        = errors.New("keyword group not found or not owned by caller")
	ErrInvalidKeyword       = errors.New("invalid keyword")
	ErrInvalidGroup         = errors.New("invalid keyword group")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

const maxSubKeywords = 3

// Group is an owner-scoped container of keywords.
type Group struct {
	GroupID        string
	UserID         string
	Name           string
	CreatedUnixUTC int64
	UpdatedUnixUTC int64
}

// Keyword is one advertisable keyword inside a group.
type Keyword struct {
	KeywordID      string
	GroupID        string
	MainKeyword    string
	MID            string
	URL            string
	SubKeywords    []string
	Description    string
	IsActive       bool
	CreatedUnixUTC int64
	UpdatedUnixUTC int64
}

// Input carries the editable keyword fields.
type Input struct {
	MainKeyword string
	MID         string
	URL         string
	SubKeywords []string
	Description string
}

// Store is the persistence contract used by Service.
type Store interface {
	InsertGroup(ctx context.Context, group Group) error
	GetGroupOwner(ctx context.Context, groupID string) (string, error)
	ListGroups(ctx context.Context, userID string) ([]Group, error)
	DeleteGroup(ctx context.Context, groupID string) error
	InsertKeyword(ctx context.Context, keyword Keyword) error
	GetKeyword(ctx context.Context, keywordID string) (Keyword, string, error)
	UpdateKeyword(ctx context.Context, keyword Keyword) error
	SetKeywordActive(ctx context.Context, keywordID string, active bool, updatedUnixUTC int64) error
	DeleteKeyword(ctx context.Context, keywordID string) error
	ListKeywords(ctx context.Context, groupID string) ([]Keyword, error)
}

// Service contains the keyword domain logic over a Store.
type Service struct {
	store Store
	nowFn func() int64
	idFn  func() string
}

// NewService wires a Service. The id function supplies new uuids.
func NewService(store Store, now func() int64, newID func() string) (*Service, error) {
	if store == nil || now == nil || newID == nil {
		return nil, fmt.Errorf("%w: nil dependency", ErrInvalidServiceConfig)
	}
	return &Service{store: store, nowFn: now, idFn: newID}, nil
}

// CreateGroup creates a group owned by userID.
func (service *Service) CreateGroup(ctx context.Context, userID string, name string) (Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, fmt.Errorf("%w: empty name", ErrInvalidGroup)
	}
	now := service.nowFn()
	group := Group{
		GroupID:        service.idFn(),
		UserID:         userID,
		Name:           name,
		CreatedUnixUTC: now,
		UpdatedUnixUTC: now,
	}
	if err := service.store.InsertGroup(ctx, group); err != nil {
		return Group{}, err
	}
	return group, nil
}

// ListGroups lists the caller's groups.
func (service *Service) ListGroups(ctx context.Context, userID string) ([]Group, error) {
	return service.store.ListGroups(ctx, userID)
}

// DeleteGroup hard-deletes a group the caller owns, keywords included.
func (service *Service) DeleteGroup(ctx context.Context, userID string, groupID string) error {
	if err := service.ownGroup(ctx, userID, groupID); err != nil {
		return err
	}
	return service.store.DeleteGroup(ctx, groupID)
}

// Create adds a keyword to a group the caller owns.
func (service *Service) Create(ctx context.Context, userID string, groupID string, input Input) (Keyword, error) {
	if err := validateInput(input); err != nil {
		return Keyword{}, err
	}
	if err := service.ownGroup(ctx, userID, groupID); err != nil {
		return Keyword{}, err
	}
	now := service.nowFn()
	keyword := Keyword{
		KeywordID:      service.idFn(),
		GroupID:        groupID,
		MainKeyword:    strings.TrimSpace(input.MainKeyword),
		MID:            input.MID,
		URL:            input.URL,
		SubKeywords:    trimSubKeywords(input.SubKeywords),
		Description:    input.Description,
		IsActive:       true,
		CreatedUnixUTC: now,
		UpdatedUnixUTC: now,
	}
	if err := service.store.InsertKeyword(ctx, keyword); err != nil {
		return Keyword{}, err
	}
	return keyword, nil
}

// Update edits a keyword the caller owns.
func (service *Service) Update(ctx context.Context, userID string, keywordID string, input Input) (Keyword, error) {
	if err := validateInput(input); err != nil {
		return Keyword{}, err
	}
	keyword, err := service.ownKeyword(ctx, userID, keywordID)
	if err != nil {
		return Keyword{}, err
	}
	keyword.MainKeyword = strings.TrimSpace(input.MainKeyword)
	keyword.MID = input.MID
	keyword.URL = input.URL
	keyword.SubKeywords = trimSubKeywords(input.SubKeywords)
	keyword.Description = input.Description
	keyword.UpdatedUnixUTC = service.nowFn()
	if err := service.store.UpdateKeyword(ctx, keyword); err != nil {
		return Keyword{}, err
	}
	return keyword, nil
}

// SetActive toggles a keyword the caller owns.
func (service *Service) SetActive(ctx context.Context, userID string, keywordID string, active bool) error {
	if _, err := service.ownKeyword(ctx, userID, keywordID); err != nil {
		return err
	}
	return service.store.SetKeywordActive(ctx, keywordID, active, service.nowFn())
}

// Delete hard-deletes a keyword the caller owns.
func (service *Service) Delete(ctx context.Context, userID string, keywordID string) error {
	if _, err := service.ownKeyword(ctx, userID, keywordID); err != nil {
		return err
	}
	return service.store.DeleteKeyword(ctx, keywordID)
}

// List lists keywords of a group the caller owns.
func (service *Service) List(ctx context.Context, userID string, groupID string) ([]Keyword, error) {
	if err := service.ownGroup(ctx, userID, groupID); err != nil {
		return nil, err
	}
	return service.store.ListKeywords(ctx, groupID)
}

func (service *Service) ownGroup(ctx context.Context, userID string, groupID string) error {
	owner, err := service.store.GetGroupOwner(ctx, groupID)
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrGroupNotFound
	}
	return nil
}

func (service *Service) ownKeyword(ctx context.Context, userID string, keywordID string) (Keyword, error) {
	keyword, owner, err := service.store.GetKeyword(ctx, keywordID)
	if err != nil {
		return Keyword{}, err
	}
	if owner != userID {
		return Keyword{}, ErrNotFoundOrForbidden
	}
	return keyword, nil
}

func validateInput(input Input) error {
	if strings.TrimSpace(input.MainKeyword) == "" {
		return fmt.Errorf("%w: empty main keyword", ErrInvalidKeyword)
	}
	if len(input.SubKeywords) > maxSubKeywords {
		return fmt.Errorf("%w: at most %d sub keywords", ErrInvalidKeyword, maxSubKeywords)
	}
	return nil
}

func trimSubKeywords(raw []string) []string {
	trimmed := make([]string, 0, len(raw))
	for _, sub := range raw {
		sub = strings.TrimSpace(sub)
		if sub != "" {
			trimmed = append(trimmed, sub)
		}
	}
	return trimmed
}
