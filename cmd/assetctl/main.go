package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/sagarc03/assetgate/clientcli"
	"github.com/spf13/cobra"
)

var (
	version = "dev"

	cfgFile     string
	profileName string
	endpoint    string
	jsonOutput  bool
	quiet       bool
)

var rootCmd = &cobra.Command{
	Use:     "assetctl",
	Version: version,
	Short:   "Client for the asset gateway",
	Long: `assetctl - Client for the asset gateway

The gateway hands out short-lived presigned URLs; assetctl uses them to move
bytes directly between your machine and the object store.

  - upload:   request an upload URL, send the file, mark it uploaded
  - status:   record a status against an asset
  - download: fetch an asset that has been marked uploaded
  - url:      print a download URL without fetching the content
  - inspect:  show when a presigned URL was issued and when it expires`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.assetgate/config.yaml, env: ASSETCTL_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "profile to use (env: ASSETCTL_PROFILE)")
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "", "gateway URL (default: http://localhost:8080, env: ASSETCTL_ENDPOINT)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(urlCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(configureCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		_ = getFormatter().FormatError(os.Stderr, err)
		os.Exit(1)
	}
}

// getConfigPath resolves the config file path from the flag, the
// environment, then the default location.
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if fromEnv := clientcli.ConfigPathFromEnv(); fromEnv != "" {
		return fromEnv
	}
	return clientcli.DefaultConfigPath()
}

// buildConfig merges config from the selected profile, env vars, and flags
// (flags take precedence).
func buildConfig() (*clientcli.Config, error) {
	var configs []*clientcli.Config

	// 1. Profile from the config file
	explicitPath := cfgFile != "" || clientcli.ConfigPathFromEnv() != ""
	name := profileName
	if name == "" {
		name = clientcli.ProfileFromEnv()
	}

	file, err := clientcli.LoadConfigFile(getConfigPath())
	switch {
	case err == nil:
		profile, profileErr := file.GetProfile(name)
		if profileErr != nil && (name != "" || !errors.Is(profileErr, clientcli.ErrNoProfiles)) {
			return nil, profileErr
		}
		if profile != nil {
			configs = append(configs, clientcli.ConfigFromProfile(profile))
		}
	case explicitPath || name != "":
		// A missing default file is fine unless the user asked for it
		return nil, err
	}

	// 2. Environment variables
	configs = append(configs, clientcli.ConfigFromEnv())

	// 3. Flags
	configs = append(configs, &clientcli.Config{Endpoint: endpoint})

	return clientcli.MergeConfig(configs...), nil
}

// getFormatter returns the appropriate formatter based on flags.
func getFormatter() clientcli.Formatter {
	return clientcli.NewFormatter(jsonOutput, quiet)
}

// getClient creates and returns a configured client.
func getClient() (*clientcli.Client, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}

	return clientcli.New(cfg)
}

// handleError prints err with a hint for the common gateway refusals and
// returns an exitError so main does not print it twice.
func handleError(err error) error {
	formatter := getFormatter()
	_ = formatter.FormatError(os.Stderr, err)

	if !jsonOutput && !quiet {
		switch {
		case errors.Is(err, clientcli.ErrNotUploaded):
			_, _ = fmt.Fprintln(os.Stderr, "Hint: the asset has not been marked uploaded; run 'assetctl status <id> uploaded'")
		case errors.Is(err, clientcli.ErrStoreRejected):
			_, _ = fmt.Fprintln(os.Stderr, "Hint: the store refused the request; check the asset id")
		case errors.Is(err, clientcli.ErrForbidden):
			_, _ = fmt.Fprintln(os.Stderr, "Hint: the presigned URL was rejected; it may have expired")
		}
	}

	return &exitError{code: 1}
}

// exitError is returned when we want to exit with a specific code
// but don't want the error printed again.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
