package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jrsteele09/go-session-gate/internal/config"
	"github.com/jrsteele09/go-session-gate/token"
	"github.com/spf13/cobra"
)

func inspectCmd() *cobra.Command {
	var within time.Duration

	cmd := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Decode an access token and report its expiry",
		Long: `Decodes a JWT access token without verifying its signature and reports
the claims the gate reads and whether the token counts as expired.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := token.NewExpiryPolicy(token.WithBuffer(config.New().GetExpiryBuffer()))
			return inspect(cmd.OutOrStdout(), args[0], policy, within)
		},
	}
	cmd.Flags().DurationVar(&within, "within", 0, "also report whether the token expires within this window")
	return cmd
}

func inspect(out io.Writer, raw string, policy *token.ExpiryPolicy, within time.Duration) error {
	payload := token.Decode(raw)
	if payload == nil {
		return fmt.Errorf("token could not be decoded")
	}

	fmt.Fprintf(out, "subject:  %s\n", payload.SubjectID)
	fmt.Fprintf(out, "role:     %s\n", valueOr(string(payload.Role), "(unknown)"))
	fmt.Fprintf(out, "email:    %s\n", payload.Email)
	fmt.Fprintf(out, "name:     %s\n", payload.Name)
	if payload.HasExpiry() {
		fmt.Fprintf(out, "expires:  %s (in %s)\n", time.Unix(payload.ExpiresAt, 0).UTC().Format(time.RFC3339), policy.TimeLeft(raw).Round(time.Second))
	} else {
		fmt.Fprintln(out, "expires:  (no exp claim)")
	}
	fmt.Fprintf(out, "expired:  %t (buffer %s)\n", policy.IsExpired(raw), policy.Buffer())
	if within > 0 {
		fmt.Fprintf(out, "within %s: %t\n", within, policy.ExpiresWithin(raw, within))
	}

	keys := make([]string, 0, len(payload.Claims))
	for k := range payload.Claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(out, "claims:")
	for _, k := range keys {
		fmt.Fprintf(out, "  %s: %v\n", k, payload.Claims[k])
	}
	return nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
