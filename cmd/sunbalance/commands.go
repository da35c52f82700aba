package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yanqian/sunbalance/internal/bootstrap"
	"github.com/yanqian/sunbalance/internal/domain/profiles"
	"github.com/yanqian/sunbalance/internal/domain/recommendation"
	"github.com/yanqian/sunbalance/internal/domain/session"
	"github.com/yanqian/sunbalance/internal/infra/transport"
)

// withRuntime wires the stores for one command and releases them afterwards. When fresh is
// set an access token close to expiry is refreshed before run starts.
func withRuntime(cmd *cobra.Command, fresh bool, run func(ctx context.Context, rt *bootstrap.Runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := initializeRuntime(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.Close(closeCtx); err != nil {
			rt.Logger.Warn("runtime close failed", "error", err)
		}
	}()

	if fresh {
		if err := rt.Session.RefreshIfExpiring(ctx, rt.Config.Session.RefreshWindow); err != nil {
			return userError(err)
		}
	}
	return run(ctx, rt)
}

// userError replaces the wrapped error chain with the message a person should read.
func userError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(transport.ExtractMessage(err))
}

func requireSession(rt *bootstrap.Runtime) error {
	if !rt.Session.IsAuthenticated() {
		return errors.New("not logged in, run `sunbalance login` first")
	}
	return nil
}

func newLoginCommand() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange username and password for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("SUNBALANCE_PASSWORD")
			}
			return withRuntime(cmd, false, func(ctx context.Context, rt *bootstrap.Runtime) error {
				if err := rt.Session.Login(ctx, username, password); err != nil {
					return userError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", username)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (defaults to $SUNBALANCE_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, false, func(ctx context.Context, rt *bootstrap.Runtime) error {
				rt.Session.Logout(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "logged out")
				return nil
			})
		},
	}
}

func newRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, false, func(ctx context.Context, rt *bootstrap.Runtime) error {
				if err := requireSession(rt); err != nil {
					return err
				}
				if err := rt.Session.Refresh(ctx); err != nil {
					return userError(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "session refreshed")
				return nil
			})
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, false, func(ctx context.Context, rt *bootstrap.Runtime) error {
				writeStatus(cmd.OutOrStdout(), rt.Session)
				return nil
			})
		},
	}
}

func writeStatus(w io.Writer, sess *session.Manager) {
	if !sess.IsAuthenticated() {
		fmt.Fprintln(w, "logged out")
		return
	}
	if exp, ok := sess.AccessExpiry(); ok {
		fmt.Fprintf(w, "logged in, access token expires %s\n", exp.Local().Format(time.RFC1123))
		return
	}
	fmt.Fprintln(w, "logged in")
}

func newRegisterCommand() *cobra.Command {
	var req session.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a SunBalance account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = os.Getenv("SUNBALANCE_PASSWORD")
			}
			return withRuntime(cmd, false, func(ctx context.Context, rt *bootstrap.Runtime) error {
				account, err := rt.Session.Register(ctx, req)
				if err != nil {
					return userError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered %s (id %d), now run `sunbalance login -u %s`\n", account.Username, account.ID, account.Username)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&req.Username, "username", "u", "", "Account username")
	cmd.Flags().StringVar(&req.Email, "email", "", "Contact email")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "Account password (defaults to $SUNBALANCE_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newProfilesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List, inspect and edit sun profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newProfilesListCommand())
	cmd.AddCommand(newProfilesShowCommand())
	cmd.AddCommand(newProfilesCreateCommand())
	cmd.AddCommand(newProfilesUpdateCommand())
	cmd.AddCommand(newProfilesDeleteCommand())
	return cmd
}

func newProfilesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the profiles of the logged in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, true, func(ctx context.Context, rt *bootstrap.Runtime) error {
				if err := requireSession(rt); err != nil {
					return err
				}
				if err := rt.Profiles.FetchAll(ctx); err != nil {
					return userError(err)
				}
				selected, _ := rt.Profiles.SelectedProfileID()
				writeProfiles(cmd.OutOrStdout(), rt.Profiles.Profiles(), selected)
				return nil
			})
		},
	}
}

func newProfilesShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [ID]",
		Short: "Show one profile, the default selection when no ID is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, true, func(ctx context.Context, rt *bootstrap.Runtime) error {
				if err := requireSession(rt); err != nil {
					return err
				}
				if err := rt.Profiles.FetchAll(ctx); err != nil {
					return userError(err)
				}
				if len(args) == 1 {
					id, err := parseProfileID(args[0])
					if err != nil {
						return err
					}
					rt.Profiles.SelectProfile(id)
				}
				current, ok := rt.Profiles.CurrentProfile()
				if !ok {
					return errors.New("no such profile")
				}
				writeProfile(cmd.OutOrStdout(), current)
				return nil
			})
		},
	}
}

func writeProfiles(w io.Writer, list []profiles.SunProfile, selected int64) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no profiles yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tRELATIONSHIP\tSKIN\tPRIMARY")
	for _, p := range list {
		marker := ""
		if p.ID == selected {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%t\n", marker, p.ID, p.Name, p.Relationship, p.SkinType, p.IsPrimary)
	}
	_ = tw.Flush()
}

func writeProfile(w io.Writer, p profiles.SunProfile) {
	fmt.Fprintf(w, "%s (id %d)\n", p.Name, p.ID)
	fmt.Fprintf(w, "  relationship: %s, age group: %s, skin type: %s\n", p.Relationship, p.AgeGroup, p.SkinType)
	if len(p.PreferredTimeWindows) > 0 {
		fmt.Fprintf(w, "  preferred windows: %s\n", strings.Join(p.PreferredTimeWindows, ", "))
	}
	if p.SunscreenSPF != nil {
		fmt.Fprintf(w, "  sunscreen: SPF %d\n", *p.SunscreenSPF)
	}
}

func newTodayCommand() *cobra.Command {
	var profileID int64

	cmd := &cobra.Command{
		Use:   "today",
		Short: "Print today's recommendation for a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, true, func(ctx context.Context, rt *bootstrap.Runtime) error {
				if err := requireSession(rt); err != nil {
					return err
				}
				id := profileID
				if id == 0 {
					if err := rt.Profiles.FetchAll(ctx); err != nil {
						return userError(err)
					}
					selected, ok := rt.Profiles.SelectedProfileID()
					if !ok {
						return errors.New("no profiles yet")
					}
					id = selected
				}
				if err := rt.Recommendations.FetchForProfile(ctx, id); err != nil {
					return userError(err)
				}
				snap, _ := rt.Recommendations.Snapshot(id)
				writeRecommendation(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&profileID, "profile", 0, "Profile ID (defaults to the primary profile)")
	return cmd
}

func writeRecommendation(w io.Writer, s recommendation.Snapshot) {
	name := s.ProfileName
	if name == "" {
		name = "profile " + strconv.FormatInt(s.ProfileID, 10)
	}
	fmt.Fprintf(w, "%s: %s\n", name, s.Status)
	fmt.Fprintf(w, "  sun time: %d-%d minutes\n", s.RecommendedMinutesMin, s.RecommendedMinutesMax)
	fmt.Fprintf(w, "  UV now: %.1f (%s)\n", s.UVIndexNow, s.Category())
	if peak, ok := s.Peak(); ok {
		fmt.Fprintf(w, "  UV peak: %.1f at %s\n", peak.UVIndex, peak.Time)
	}
	if len(s.SuggestedWindows) > 0 {
		fmt.Fprintf(w, "  best windows: %s\n", strings.Join(s.SuggestedWindows, ", "))
	}
	for _, warning := range s.Warnings {
		fmt.Fprintf(w, "  ! %s\n", warning)
	}
	if s.UVMessage != "" {
		fmt.Fprintf(w, "  note: %s\n", s.UVMessage)
	}
	if s.Disclaimer != "" {
		fmt.Fprintf(w, "\n%s\n", s.Disclaimer)
	}
}

func parseProfileID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("profile id must be an integer: %q", raw)
	}
	return id, nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local JSON facade over the session, profile and recommendation stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			app, err := initializeApp(ctx)
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			return app.Run(ctx)
		},
	}
}
