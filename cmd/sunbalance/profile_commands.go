package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yanqian/sunbalance/internal/bootstrap"
	"github.com/yanqian/sunbalance/internal/domain/profiles"
)

// profileWriter is the part of the profile directory the editing commands drive.
type profileWriter interface {
	CreateProfile(ctx context.Context, in profiles.ProfileInput) (profiles.SunProfile, error)
	UpdateProfile(ctx context.Context, id int64, in profiles.ProfileInput) (profiles.SunProfile, error)
	DeleteProfile(ctx context.Context, id int64) error
	UpdateUserProfile(ctx context.Context, in profiles.UserProfileInput) (profiles.UserProfile, error)
}

// profileFlags collects the editable profile fields. Only flags set on the command line end
// up in the request.
type profileFlags struct {
	name         string
	relationship string
	ageGroup     string
	skinType     string
	windows      []string
	spf          int
	hats         bool
	latitude     float64
	longitude    float64
	altitude     int
}

func (f *profileFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.name, "name", "", "Display name")
	flags.StringVar(&f.relationship, "relationship", "", "Relationship to the account holder (self, child, partner, ...)")
	flags.StringVar(&f.ageGroup, "age-group", "", "Age group (infant, child, teen, adult, senior)")
	flags.StringVar(&f.skinType, "skin-type", "", "Fitzpatrick skin type (I-VI)")
	flags.StringSliceVar(&f.windows, "window", nil, "Preferred time window, repeatable ("+strings.Join(profiles.TimeWindows, ", ")+")")
	flags.IntVar(&f.spf, "spf", 0, "Usual sunscreen SPF")
	flags.BoolVar(&f.hats, "hats", false, "Usually wears a hat")
	flags.Float64Var(&f.latitude, "lat", 0, "Location latitude")
	flags.Float64Var(&f.longitude, "lon", 0, "Location longitude")
	flags.IntVar(&f.altitude, "altitude", 0, "Altitude in metres")
}

func (f *profileFlags) input(cmd *cobra.Command) profiles.ProfileInput {
	changed := cmd.Flags().Changed
	var in profiles.ProfileInput
	if changed("name") {
		in.Name = &f.name
	}
	if changed("relationship") {
		in.Relationship = &f.relationship
	}
	if changed("age-group") {
		in.AgeGroup = &f.ageGroup
	}
	if changed("skin-type") {
		in.SkinType = &f.skinType
	}
	if changed("window") {
		in.PreferredTimeWindows = f.windows
	}
	if changed("spf") {
		in.SunscreenSPF = &f.spf
	}
	if changed("hats") {
		in.Hats = &f.hats
	}
	if changed("lat") {
		in.LocationLatitude = &f.latitude
	}
	if changed("lon") {
		in.LocationLongitude = &f.longitude
	}
	if changed("altitude") {
		in.AltitudeM = &f.altitude
	}
	return in
}

func newProfilesCreateCommand() *cobra.Command {
	var flags profileFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a sun profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := flags.input(cmd)
			return withRuntime(cmd, true, func(ctx context.Context, rt *bootstrap.Runtime) error {
				if err := requireSession(rt); err != nil {
					return err
				}
				return createProfile(ctx, cmd.OutOrStdout(), rt.Profiles, in)
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newProfilesUpdateCommand() *cobra.Command {
	var flags profileFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change the given fields of a sun profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProfileID(args[0])
			if err != nil {
				return err
			}
			in := flags.input(cmd)
			return withRuntime(cmd, true, func(ctx context.Context, rt *bootstrap.Runtime) error {
				if err := requireSession(rt); err != nil {
					return err
				}
				return updateProfile(ctx, cmd.OutOrStdout(), rt.Profiles, id, in)
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newProfilesDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a sun profile (the primary profile cannot be removed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProfileID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, true, func(ctx context.Context, rt *bootstrap.Runtime) error {
				if err := requireSession(rt); err != nil {
					return err
				}
				return deleteProfile(ctx, cmd.OutOrStdout(), rt.Profiles, id)
			})
		},
	}
}

func newSettingsCommand() *cobra.Command {
	var (
		latitude  float64
		longitude float64
		altitude  int
		skinType  string
		windows   []string
	)

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Change the account defaults used for new profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed
			var in profiles.UserProfileInput
			if changed("lat") {
				in.DefaultLatitude = &latitude
			}
			if changed("lon") {
				in.DefaultLongitude = &longitude
			}
			if changed("altitude") {
				in.DefaultAltitudeM = &altitude
			}
			if changed("skin-type") {
				in.DefaultSkinType = &skinType
			}
			if changed("window") {
				in.PreferredTimeWindows = windows
			}
			return withRuntime(cmd, true, func(ctx context.Context, rt *bootstrap.Runtime) error {
				if err := requireSession(rt); err != nil {
					return err
				}
				return updateSettings(ctx, cmd.OutOrStdout(), rt.Profiles, in)
			})
		},
	}

	cmd.Flags().Float64Var(&latitude, "lat", 0, "Default latitude")
	cmd.Flags().Float64Var(&longitude, "lon", 0, "Default longitude")
	cmd.Flags().IntVar(&altitude, "altitude", 0, "Default altitude in metres")
	cmd.Flags().StringVar(&skinType, "skin-type", "", "Default Fitzpatrick skin type (I-VI)")
	cmd.Flags().StringSliceVar(&windows, "window", nil, "Preferred time window, repeatable")
	return cmd
}

func createProfile(ctx context.Context, w io.Writer, dir profileWriter, in profiles.ProfileInput) error {
	created, err := dir.CreateProfile(ctx, in)
	if err != nil {
		return userError(err)
	}
	fmt.Fprint(w, "created ")
	writeProfile(w, created)
	return nil
}

func updateProfile(ctx context.Context, w io.Writer, dir profileWriter, id int64, in profiles.ProfileInput) error {
	updated, err := dir.UpdateProfile(ctx, id, in)
	if err != nil {
		return userError(err)
	}
	fmt.Fprint(w, "updated ")
	writeProfile(w, updated)
	return nil
}

func deleteProfile(ctx context.Context, w io.Writer, dir profileWriter, id int64) error {
	if err := dir.DeleteProfile(ctx, id); err != nil {
		return userError(err)
	}
	fmt.Fprintf(w, "deleted profile %d\n", id)
	return nil
}

func updateSettings(ctx context.Context, w io.Writer, dir profileWriter, in profiles.UserProfileInput) error {
	user, err := dir.UpdateUserProfile(ctx, in)
	if err != nil {
		return userError(err)
	}
	fmt.Fprintf(w, "defaults saved: skin type %s", valueOr(user.DefaultSkinType, "unset"))
	if len(user.PreferredTimeWindows) > 0 {
		fmt.Fprintf(w, ", windows %s", strings.Join(user.PreferredTimeWindows, ", "))
	}
	fmt.Fprintln(w)
	return nil
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
