package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuitang/notes-backend/internal/auth"
)

var checkTokenCmd = &cobra.Command{
	Use:   "check-token <token>",
	Short: "Verify an identity token and print its owner id or failure reason",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckToken,
}

func init() {
	rootCmd.AddCommand(checkTokenCmd)
}

func runCheckToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	verifier, err := buildVerifier(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	token, err := auth.ExtractBearerToken("Bearer " + strings.TrimPrefix(args[0], "Bearer "))
	if err != nil {
		return err
	}
	return checkToken(cmd, verifier, token)
}

// expectingVerifier is a verifier that can report what it accepts.
type expectingVerifier interface {
	auth.TokenVerifier
	Issuer() string
	Audience() string
}

func checkToken(cmd *cobra.Command, verifier expectingVerifier, token string) error {
	out := cmd.OutOrStdout()
	owner, err := verifier.Verify(cmd.Context(), token)
	if err == nil {
		fmt.Fprintf(out, "ok uid=%s\n", owner)
		return nil
	}

	fmt.Fprintf(out, "rejected reason=%s\n", auth.HTTPReason(auth.ReasonOf(err)))
	fmt.Fprintf(out, "  detail: %v\n", err)
	if details, ok := auth.InspectUnverified(token); ok {
		fmt.Fprintf(out, "  token:  iss=%q aud=%q kid=%q alg=%q\n",
			details.Issuer, strings.Join(details.Audience, ","), details.KeyID, details.Alg)
		fmt.Fprintf(out, "  expect: iss=%q aud=%q\n", verifier.Issuer(), verifier.Audience())
	}
	return fmt.Errorf("token rejected")
}
