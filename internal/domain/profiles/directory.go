package profiles

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yanqian/sunbalance/internal/infra/transport"
	apperrors "github.com/yanqian/sunbalance/pkg/errors"
)

const (
	userProfilePath = "/profiles/user/"
	itemsPath       = "/profiles/items/"
)

// Directory caches the user profile, the sun profile list and the active selection.
type Directory struct {
	mu        sync.Mutex
	user      *UserProfile
	profiles  []SunProfile
	selected  *int64
	phase     Phase
	lastError string
	client    APIClient
	logger    *slog.Logger
}

// NewDirectory builds an empty directory.
func NewDirectory(client APIClient, logger *slog.Logger) *Directory {
	return &Directory{
		phase:  PhaseIdle,
		client: client,
		logger: logger.With("component", "profiles.directory"),
	}
}

// FetchAll loads the user profile and the profile list concurrently and commits both only
// when both succeed. The selection is kept when it still names a listed profile, otherwise
// it moves to the primary profile, then the first one, then none.
func (d *Directory) FetchAll(ctx context.Context) error {
	d.begin()

	var (
		user  UserProfile
		items []SunProfile
		g     errgroup.Group
	)
	g.Go(func() error {
		resp, err := d.client.Get(ctx, userProfilePath, nil)
		if err != nil {
			return err
		}
		user, err = transport.DecodeJSON[UserProfile](resp)
		return err
	})
	g.Go(func() error {
		resp, err := d.client.Get(ctx, itemsPath, nil)
		if err != nil {
			return err
		}
		items, err = transport.DecodeJSON[[]SunProfile](resp)
		return err
	})
	if err := g.Wait(); err != nil {
		return d.fail(apperrors.Wrap(CodeProfile, "failed to load profiles", err))
	}
	if items == nil {
		items = []SunProfile{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.user = &user
	d.profiles = items
	d.selected = pickSelection(d.selected, items)
	d.phase = PhaseIdle
	d.logger.Debug("profiles loaded", "count", len(items), "selected", derefID(d.selected))
	return nil
}

// SelectProfile sets the active selection. The id is not checked against the list.
func (d *Directory) SelectProfile(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected = &id
}

// CurrentProfile returns the listed profile matching the selection.
func (d *Directory) CurrentProfile() (SunProfile, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selected == nil {
		return SunProfile{}, false
	}
	idx := indexOf(d.profiles, *d.selected)
	if idx < 0 {
		return SunProfile{}, false
	}
	return d.profiles[idx], true
}

// SelectedProfileID returns the active selection, if any.
func (d *Directory) SelectedProfileID() (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selected == nil {
		return 0, false
	}
	return *d.selected, true
}

// Profiles returns a copy of the cached list in server order.
func (d *Directory) Profiles() []SunProfile {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.profiles)
}

// UserProfile returns the cached user profile.
func (d *Directory) UserProfile() (UserProfile, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.user == nil {
		return UserProfile{}, false
	}
	return *d.user, true
}

// State reports the phase and message of the most recent request.
func (d *Directory) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return State{Phase: d.phase, LastError: d.lastError}
}

// CreateProfile adds a profile on the server and appends it locally.
func (d *Directory) CreateProfile(ctx context.Context, in ProfileInput) (SunProfile, error) {
	if err := in.Validate(true); err != nil {
		return SunProfile{}, err
	}
	d.begin()
	resp, err := d.client.Post(ctx, itemsPath, in)
	if err != nil {
		return SunProfile{}, d.fail(apperrors.Wrap(CodeProfile, "failed to create profile", err))
	}
	created, err := transport.DecodeJSON[SunProfile](resp)
	if err != nil {
		return SunProfile{}, d.fail(apperrors.Wrap(CodeProfile, "create profile response malformed", err))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles = append(slices.Clone(d.profiles), created)
	if d.selected == nil {
		d.selected = pickSelection(nil, d.profiles)
	}
	d.phase = PhaseIdle
	return created, nil
}

// UpdateProfile patches a profile and replaces its cached copy.
func (d *Directory) UpdateProfile(ctx context.Context, id int64, in ProfileInput) (SunProfile, error) {
	if err := in.Validate(false); err != nil {
		return SunProfile{}, err
	}
	d.begin()
	resp, err := d.client.Patch(ctx, itemPath(id), in)
	if err != nil {
		return SunProfile{}, d.fail(apperrors.Wrap(CodeProfile, "failed to update profile", err))
	}
	updated, err := transport.DecodeJSON[SunProfile](resp)
	if err != nil {
		return SunProfile{}, d.fail(apperrors.Wrap(CodeProfile, "update profile response malformed", err))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	profiles := slices.Clone(d.profiles)
	if idx := indexOf(profiles, updated.ID); idx >= 0 {
		profiles[idx] = updated
	} else {
		profiles = append(profiles, updated)
	}
	d.profiles = profiles
	d.phase = PhaseIdle
	return updated, nil
}

// DeleteProfile removes a profile. Deleting the selected profile moves the selection as
// FetchAll would. The server refuses to delete the primary profile.
func (d *Directory) DeleteProfile(ctx context.Context, id int64) error {
	d.begin()
	if _, err := d.client.Delete(ctx, itemPath(id)); err != nil {
		return d.fail(apperrors.Wrap(CodeProfile, "failed to delete profile", err))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles = slices.DeleteFunc(slices.Clone(d.profiles), func(p SunProfile) bool { return p.ID == id })
	if d.selected != nil && *d.selected == id {
		d.selected = pickSelection(nil, d.profiles)
	}
	d.phase = PhaseIdle
	return nil
}

// UpdateUserProfile patches the account defaults.
func (d *Directory) UpdateUserProfile(ctx context.Context, in UserProfileInput) (UserProfile, error) {
	if err := in.Validate(); err != nil {
		return UserProfile{}, err
	}
	d.begin()
	resp, err := d.client.Patch(ctx, userProfilePath, in)
	if err != nil {
		return UserProfile{}, d.fail(apperrors.Wrap(CodeProfile, "failed to update user profile", err))
	}
	user, err := transport.DecodeJSON[UserProfile](resp)
	if err != nil {
		return UserProfile{}, d.fail(apperrors.Wrap(CodeProfile, "user profile response malformed", err))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.user = &user
	d.phase = PhaseIdle
	return user, nil
}

func (d *Directory) begin() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.phase = PhaseLoading
	d.lastError = ""
}

func (d *Directory) fail(err error) error {
	msg := transport.ExtractMessage(err)
	d.mu.Lock()
	d.phase = PhaseError
	d.lastError = msg
	d.mu.Unlock()
	d.logger.Warn("profile request failed", "error", msg)
	return err
}

// pickSelection keeps current when it is listed, else falls back to the primary
// profile, else the first one.
func pickSelection(current *int64, list []SunProfile) *int64 {
	if current != nil && indexOf(list, *current) >= 0 {
		return current
	}
	if len(list) == 0 {
		return nil
	}
	chosen := list[0].ID
	for _, p := range list {
		if p.IsPrimary {
			chosen = p.ID
			break
		}
	}
	return &chosen
}

func indexOf(list []SunProfile, id int64) int {
	return slices.IndexFunc(list, func(p SunProfile) bool { return p.ID == id })
}

func itemPath(id int64) string {
	return fmt.Sprintf("%s%d/", itemsPath, id)
}

func derefID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
