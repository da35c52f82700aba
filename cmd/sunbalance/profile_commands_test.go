package main

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/sunbalance/internal/domain/profiles"
	"github.com/yanqian/sunbalance/internal/infra/transport"
	apperrors "github.com/yanqian/sunbalance/pkg/errors"
)

func TestProfileFlagsSendOnlyChangedFields(t *testing.T) {
	var flags profileFlags
	cmd := &cobra.Command{Use: "update"}
	flags.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--name", "Kid", "--window", "morning", "--window", "lunch", "--spf", "30", "--hats=false"}))

	in := flags.input(cmd)
	require.Equal(t, "Kid", *in.Name)
	require.Equal(t, []string{"morning", "lunch"}, in.PreferredTimeWindows)
	require.Equal(t, 30, *in.SunscreenSPF)
	require.NotNil(t, in.Hats)
	require.False(t, *in.Hats)
	require.Nil(t, in.Relationship)
	require.Nil(t, in.SkinType)
	require.Nil(t, in.LocationLatitude)
	require.Nil(t, in.AltitudeM)
}

func TestProfileEditingCommands(t *testing.T) {
	ctx := context.Background()
	dir := &stubProfileWriter{}
	var out bytes.Buffer

	name, rel, age, skin := "Kid", "child", "child", "II"
	require.NoError(t, createProfile(ctx, &out, dir, profiles.ProfileInput{Name: &name, Relationship: &rel, AgeGroup: &age, SkinType: &skin}))
	require.Contains(t, out.String(), "created Kid (id 8)")

	out.Reset()
	err := createProfile(ctx, &out, dir, profiles.ProfileInput{Name: &name})
	require.EqualError(t, err, "relationship is required")
	require.Empty(t, out.String())

	renamed := "Junior"
	require.NoError(t, updateProfile(ctx, &out, dir, 8, profiles.ProfileInput{Name: &renamed}))
	require.Contains(t, out.String(), "updated Junior (id 8)")

	out.Reset()
	err = deleteProfile(ctx, &out, dir, 7)
	require.EqualError(t, err, "Primary profile cannot be deleted.")
	require.NoError(t, deleteProfile(ctx, &out, dir, 8))
	require.Equal(t, "deleted profile 8\n", out.String())

	out.Reset()
	skinDefault := "III"
	require.NoError(t, updateSettings(ctx, &out, dir, profiles.UserProfileInput{DefaultSkinType: &skinDefault, PreferredTimeWindows: []string{"morning"}}))
	require.Equal(t, "defaults saved: skin type III, windows morning\n", out.String())

	err = updateSettings(ctx, &out, dir, profiles.UserProfileInput{PreferredTimeWindows: []string{"noon"}})
	require.EqualError(t, err, "unsupported time windows: noon")
}

type stubProfileWriter struct{}

func (stubProfileWriter) CreateProfile(_ context.Context, in profiles.ProfileInput) (profiles.SunProfile, error) {
	if err := in.Validate(true); err != nil {
		return profiles.SunProfile{}, err
	}
	return profiles.SunProfile{ID: 8, Name: *in.Name}, nil
}

func (stubProfileWriter) UpdateProfile(_ context.Context, id int64, in profiles.ProfileInput) (profiles.SunProfile, error) {
	return profiles.SunProfile{ID: id, Name: *in.Name}, nil
}

func (stubProfileWriter) DeleteProfile(_ context.Context, id int64) error {
	if id == 7 {
		return apperrors.Wrap(profiles.CodeProfile, "failed to delete profile", &transport.Error{Status: http.StatusBadRequest, Detail: "Primary profile cannot be deleted."})
	}
	return nil
}

func (stubProfileWriter) UpdateUserProfile(_ context.Context, in profiles.UserProfileInput) (profiles.UserProfile, error) {
	if err := in.Validate(); err != nil {
		return profiles.UserProfile{}, err
	}
	return profiles.UserProfile{DefaultSkinType: *in.DefaultSkinType, PreferredTimeWindows: in.PreferredTimeWindows}, nil
}

var _ profileWriter = (*profiles.Directory)(nil)
