package profiles

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/yanqian/sunbalance/internal/infra/transport"
	apperrors "github.com/yanqian/sunbalance/pkg/errors"
)

// Error codes reported through pkg/errors.
const (
	CodeProfile      = "profile_error"
	CodeInvalidInput = "invalid_input"
)

// Phase mirrors the directory's coarse status flag.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseError   Phase = "error"
)

// TimeWindows is the vocabulary the server accepts for preferred_time_windows.
var TimeWindows = []string{"morning", "lunch", "afternoon", "evening"}

const (
	minSPF = 5
	maxSPF = 100
)

// APIClient is the part of the transport client the directory needs.
type APIClient interface {
	Get(ctx context.Context, path string, query url.Values) (*transport.Response, error)
	Post(ctx context.Context, path string, body any) (*transport.Response, error)
	Patch(ctx context.Context, path string, body any) (*transport.Response, error)
	Delete(ctx context.Context, path string) (*transport.Response, error)
}

// SunProfile is one person recommendations are computed for.
type SunProfile struct {
	ID                   int64          `json:"id"`
	Name                 string         `json:"name"`
	Relationship         string         `json:"relationship"`
	AgeGroup             string         `json:"age_group"`
	SkinType             string         `json:"skin_type"`
	PreferredTimeWindows []string       `json:"preferred_time_windows"`
	ClothingPreferences  map[string]any `json:"clothing_preferences"`
	SunscreenSPF         *int           `json:"sunscreen_spf"`
	Hats                 bool           `json:"hats"`
	LocationLatitude     *float64       `json:"location_latitude"`
	LocationLongitude    *float64       `json:"location_longitude"`
	AltitudeM            int            `json:"altitude_m"`
	IsPrimary            bool           `json:"is_primary"`
	CreatedAt            time.Time      `json:"created_at,omitempty"`
	UpdatedAt            time.Time      `json:"updated_at,omitempty"`
}

// UserProfile holds the account wide defaults.
type UserProfile struct {
	ID                   int64    `json:"id"`
	DefaultLatitude      *float64 `json:"default_latitude"`
	DefaultLongitude     *float64 `json:"default_longitude"`
	DefaultAltitudeM     int      `json:"default_altitude_m"`
	DefaultSkinType      string   `json:"default_skin_type"`
	PreferredTimeWindows []string `json:"preferred_time_windows"`
}

// State is a snapshot of the directory for display.
type State struct {
	Phase     Phase  `json:"phase"`
	LastError string `json:"error,omitempty"`
}

// ProfileInput is the writable subset of SunProfile. Nil fields are omitted so that
// updates only touch what the caller set.
type ProfileInput struct {
	Name                 *string        `json:"name,omitempty"`
	Relationship         *string        `json:"relationship,omitempty"`
	AgeGroup             *string        `json:"age_group,omitempty"`
	SkinType             *string        `json:"skin_type,omitempty"`
	PreferredTimeWindows []string       `json:"preferred_time_windows,omitempty"`
	ClothingPreferences  map[string]any `json:"clothing_preferences,omitempty"`
	SunscreenSPF         *int           `json:"sunscreen_spf,omitempty"`
	Hats                 *bool          `json:"hats,omitempty"`
	LocationLatitude     *float64       `json:"location_latitude,omitempty"`
	LocationLongitude    *float64       `json:"location_longitude,omitempty"`
	AltitudeM            *int           `json:"altitude_m,omitempty"`
}

// Validate rejects values the server is known to refuse. creating requires the fields
// a new profile cannot be stored without.
func (in ProfileInput) Validate(creating bool) error {
	if creating {
		required := []struct {
			field string
			value *string
		}{
			{"name", in.Name},
			{"relationship", in.Relationship},
			{"age_group", in.AgeGroup},
			{"skin_type", in.SkinType},
		}
		for _, r := range required {
			if r.value == nil || strings.TrimSpace(*r.value) == "" {
				return apperrors.Wrap(CodeInvalidInput, r.field+" is required", nil)
			}
		}
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return apperrors.Wrap(CodeInvalidInput, "name cannot be empty", nil)
	}
	if in.SunscreenSPF != nil && (*in.SunscreenSPF < minSPF || *in.SunscreenSPF > maxSPF) {
		return apperrors.Wrap(CodeInvalidInput, fmt.Sprintf("sunscreen_spf must be between %d and %d", minSPF, maxSPF), nil)
	}
	return validateWindows(in.PreferredTimeWindows)
}

// UserProfileInput is the writable subset of UserProfile.
type UserProfileInput struct {
	DefaultLatitude      *float64 `json:"default_latitude,omitempty"`
	DefaultLongitude     *float64 `json:"default_longitude,omitempty"`
	DefaultAltitudeM     *int     `json:"default_altitude_m,omitempty"`
	DefaultSkinType      *string  `json:"default_skin_type,omitempty"`
	PreferredTimeWindows []string `json:"preferred_time_windows,omitempty"`
}

// Validate rejects unknown time windows.
func (in UserProfileInput) Validate() error {
	return validateWindows(in.PreferredTimeWindows)
}

func validateWindows(windows []string) error {
	var invalid []string
	for _, w := range windows {
		if !slices.Contains(TimeWindows, w) && !slices.Contains(invalid, w) {
			invalid = append(invalid, w)
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	sort.Strings(invalid)
	return apperrors.Wrap(CodeInvalidInput, "unsupported time windows: "+strings.Join(invalid, ", "), nil)
}
