package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/baechuer/meeting-machine/internal/domain"
	"github.com/baechuer/meeting-machine/internal/infrastructure/crm"
	"github.com/baechuer/meeting-machine/internal/transport/http/dto"
)

type diagnostics interface {
	TestConnection(ctx context.Context) crm.ConnectionReport
	CreateTestContact(ctx context.Context) domain.SyncResult
	FindContactByEmail(ctx context.Context, email, locationID string) domain.SyncResult
	UpdateContact(ctx context.Context, contactID string, fields map[string]any) domain.SyncResult
}

type clientFactory func(baseURL string) (diagnostics, error)

func newRootCmd(newClient clientFactory, out io.Writer) *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
	)

	root := &cobra.Command{
		Use:           "crmcheck",
		Short:         "Probe the GoHighLevel integration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&baseURL, "base-url", "", "override GHL_API_BASE_URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline")

	run := func(fn func(ctx context.Context, c diagnostics) (any, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(baseURL)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			v, runErr := fn(ctx, c)
			if v != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(v); err != nil {
					return err
				}
			}
			return runErr
		}
	}

	root.AddCommand(&cobra.Command{
		Use:   "connection",
		Short: "Check API key and contact permissions",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, c diagnostics) (any, error) {
			rep := c.TestConnection(ctx)
			if !rep.Success {
				return rep, errors.New("connection test failed")
			}
			return rep, nil
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "test-contact",
		Short: "Create a tagged test contact",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, c diagnostics) (any, error) {
			return contactOutcome(c.CreateTestContact(ctx))
		}),
	})

	var email, location string
	find := &cobra.Command{
		Use:   "find",
		Short: "Look up a contact by email",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, c diagnostics) (any, error) {
			return contactOutcome(c.FindContactByEmail(ctx, email, location))
		}),
	}
	find.Flags().StringVar(&email, "email", "", "contact email")
	find.Flags().StringVar(&location, "location", "", "location id (defaults to GHL_LOCATION_ID)")
	_ = find.MarkFlagRequired("email")
	root.AddCommand(find)

	var fields map[string]string
	update := &cobra.Command{
		Use:   "update CONTACT_ID",
		Short: "Update fields on an existing contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(fields) == 0 {
				return errors.New("at least one --set key=value is required")
			}
			body := make(map[string]any, len(fields))
			for k, v := range fields {
				body[k] = v
			}
			return run(func(ctx context.Context, c diagnostics) (any, error) {
				return contactOutcome(c.UpdateContact(ctx, args[0], body))
			})(cmd, args)
		},
	}
	update.Flags().StringToStringVar(&fields, "set", nil, "field to update, repeatable")
	root.AddCommand(update)

	return root
}

func contactOutcome(r domain.SyncResult) (any, error) {
	resp := dto.NewContactResponse(r)
	if !r.OK() {
		return resp, fmt.Errorf("crm %s: %s", r.Status, r.Message())
	}
	return resp, nil
}
