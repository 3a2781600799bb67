package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/sagarc03/assetgate"
	"github.com/sagarc03/assetgate/clientcli"
	"github.com/spf13/cobra"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Manage gateway profiles",
	Long: `Manage gateway profiles in the configuration file.

Profiles allow you to save connection settings for multiple gateways
and easily switch between them using --profile or ASSETCTL_PROFILE.

Configuration is stored in ~/.assetgate/config.yaml`,
}

var configureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured profiles",
	Long: `List all profiles configured in the config file.

The default profile is marked with an asterisk (*).`,
	RunE: runConfigureList,
}

var configureAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a profile",
	Long: `Add a profile interactively, or update it if it already exists.

You will be prompted for:
  - Gateway endpoint URL
  - Download URL validity in seconds (blank leaves it to the gateway)
  - Whether to set as default

The gateway health endpoint is checked before saving.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigureAdd,
}

var configureRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a profile",
	Args:    cobra.ExactArgs(1),
	RunE:    runConfigureRemove,
}

var configureSetDefaultCmd = &cobra.Command{
	Use:   "set-default <name>",
	Short: "Set the default profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigureSetDefault,
}

var configureShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show profile details",
	Long: `Show details for a profile.

If no name is provided, shows the default profile.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigureShow,
}

func init() {
	configureCmd.AddCommand(configureListCmd)
	configureCmd.AddCommand(configureAddCmd)
	configureCmd.AddCommand(configureRemoveCmd)
	configureCmd.AddCommand(configureSetDefaultCmd)
	configureCmd.AddCommand(configureShowCmd)
}

func runConfigureList(_ *cobra.Command, _ []string) error {
	cfg, err := clientcli.LoadConfigFile(getConfigPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg == nil || len(cfg.Profiles) == 0 {
		fmt.Println("No profiles configured.")
		fmt.Println("Run 'assetctl configure add <name>' to create one.")
		return nil
	}

	defaultProfile, err := cfg.GetDefaultProfile()
	if err != nil {
		return err
	}

	return getFormatter().FormatProfileList(os.Stdout, cfg.Profiles, defaultProfile.Name)
}

func runConfigureAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	configPath := getConfigPath()

	cfg, err := clientcli.LoadConfigFile(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = &clientcli.ConfigFile{}
	}

	existingProfile, _ := cfg.GetProfile(name)
	if existingProfile != nil {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Profile '%s' already exists. Update it", name),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			fmt.Println("Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	endpointDefault := clientcli.DefaultEndpoint
	timeoutDefault := ""
	if existingProfile != nil {
		endpointDefault = existingProfile.Endpoint
		if existingProfile.DownloadTimeout > 0 {
			timeoutDefault = strconv.Itoa(existingProfile.DownloadTimeout)
		}
	}

	endpointPrompt := promptui.Prompt{
		Label:    "Endpoint URL",
		Default:  endpointDefault,
		Validate: validateEndpoint,
	}
	endpointURL, err := endpointPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}

	timeoutPrompt := promptui.Prompt{
		Label:    "Download timeout in seconds (blank for server default)",
		Default:  timeoutDefault,
		Validate: validateTimeout,
	}
	timeoutVal, err := timeoutPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}
	downloadTimeout, _ := parseTimeout(timeoutVal)

	setAsDefault := false
	if len(cfg.Profiles) == 0 || (existingProfile != nil && existingProfile.Default) {
		setAsDefault = true
	} else {
		defaultPrompt := promptui.Prompt{
			Label:     "Set as default profile",
			IsConfirm: true,
		}
		if _, promptErr := defaultPrompt.Run(); promptErr == nil {
			setAsDefault = true
		}
	}

	fmt.Print("Checking gateway health... ")
	if connErr := checkGateway(cmd.Context(), endpointURL); connErr != nil {
		fmt.Println("FAILED")
		fmt.Printf("Warning: %v\n", connErr)

		continuePrompt := promptui.Prompt{
			Label:     "Save profile anyway",
			IsConfirm: true,
		}
		if _, promptErr := continuePrompt.Run(); promptErr != nil {
			fmt.Println("Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	} else {
		fmt.Println("OK")
	}

	profile := clientcli.Profile{
		Name:            name,
		Endpoint:        strings.TrimSuffix(endpointURL, "/"),
		DownloadTimeout: downloadTimeout,
	}

	if existingProfile != nil {
		err = cfg.UpdateProfile(profile)
	} else {
		err = cfg.AddProfile(profile)
	}
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	if setAsDefault {
		if err := cfg.SetDefault(name); err != nil {
			return err
		}
	}

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if existingProfile != nil {
		fmt.Printf("Profile '%s' updated.\n", name)
	} else {
		fmt.Printf("Profile '%s' added.\n", name)
	}

	if setAsDefault {
		fmt.Printf("Set as default profile.\n")
	}

	return nil
}

func runConfigureRemove(_ *cobra.Command, args []string) error {
	name := args[0]
	configPath := getConfigPath()

	cfg, err := clientcli.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err = cfg.GetProfile(name); err != nil {
		return err
	}

	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Remove profile '%s'", name),
		IsConfirm: true,
	}
	if _, promptErr := prompt.Run(); promptErr != nil {
		fmt.Println("Cancelled.")
		return nil //nolint:nilerr // User cancelled, not an error
	}

	if err := cfg.RemoveProfile(name); err != nil {
		return fmt.Errorf("remove profile: %w", err)
	}

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Profile '%s' removed.\n", name)
	return nil
}

func runConfigureSetDefault(_ *cobra.Command, args []string) error {
	name := args[0]
	configPath := getConfigPath()

	cfg, err := clientcli.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.SetDefault(name); err != nil {
		return err
	}

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Default profile set to '%s'.\n", name)
	return nil
}

func runConfigureShow(_ *cobra.Command, args []string) error {
	cfg, err := clientcli.LoadConfigFile(getConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	p, err := cfg.GetProfile(name)
	if err != nil {
		return err
	}

	defaultProfile, err := cfg.GetDefaultProfile()
	if err != nil {
		return err
	}

	return getFormatter().FormatProfileShow(os.Stdout, *p, p.Name == defaultProfile.Name)
}

// validateEndpoint accepts absolute http and https URLs.
func validateEndpoint(input string) error {
	if input == "" {
		return errors.New("endpoint URL is required")
	}
	return (&clientcli.Config{Endpoint: input}).Validate()
}

// validateTimeout accepts a blank value or a whole number of seconds within
// the presigned URL limit.
func validateTimeout(input string) error {
	_, err := parseTimeout(input)
	return err
}

func parseTimeout(input string) (int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}
	seconds, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("timeout must be a whole number of seconds: %w", err)
	}
	if seconds < 1 || seconds > assetgate.MaxDownloadTimeout {
		return 0, fmt.Errorf("timeout must be between 1 and %d seconds", assetgate.MaxDownloadTimeout)
	}
	return seconds, nil
}

// checkGateway calls GET /health on the endpoint. Only a connection failure
// or a non-2xx response counts as an error.
func checkGateway(ctx context.Context, endpointURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	target := strings.TrimSuffix(endpointURL, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway reported %s", resp.Status)
	}
	return nil
}

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
