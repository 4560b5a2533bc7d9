package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"
	"github.com/raine/ai-design-team/config"
	"github.com/raine/ai-design-team/internal/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

const geminiModelsURL = "https://generativelanguage.googleapis.com/v1beta/models"

// envFileOrder is the order variables are written to config.env.
var envFileOrder = []string{"GEMINI_API_KEY", "SESSION_SECRET"}

// isInteractiveTerminal returns true if both stdin and stdout are TTYs.
// This is used to determine if we can run the interactive setup wizard.
func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// runSetupWizard asks for an optional operator Gemini key, generates the
// session secret and saves both to config.env.
// Returns true if setup was successful and the server should continue starting.
func runSetupWizard() bool {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	fmt.Println()
	fmt.Println(titleStyle.Render("🎨 AI Design Team - First-time Setup"))
	fmt.Println()

	var geminiKey string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Gemini API Key (optional)").
				Description("Leave empty to let each user enter their own. Get one at https://aistudio.google.com/apikey").
				EchoMode(huh.EchoModePassword).
				Value(&geminiKey).
				Validate(func(s string) error {
					s = strings.TrimSpace(s)
					if s == "" {
						return nil
					}
					return validateGeminiKey(s)
				}),
		),
	).WithTheme(huh.ThemeBase16())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("\nSetup cancelled.")
			return false
		}
		fmt.Printf("\nError: %v\n", err)
		return false
	}

	secret, err := session.GenerateSecret()
	if err != nil {
		fmt.Printf("\nError generating session secret: %v\n", err)
		return false
	}

	values := map[string]string{"SESSION_SECRET": secret}
	if key := strings.TrimSpace(geminiKey); key != "" {
		values["GEMINI_API_KEY"] = key
	}

	configPath, err := writeEnvFile(values)
	if err != nil {
		fmt.Printf("\nError saving configuration: %v\n", err)
		waitOnWindows()
		return false
	}

	for k, v := range values {
		os.Setenv(k, v)
	}

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	pathStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Configuration saved"))
	fmt.Println(pathStyle.Render("  " + configPath))
	fmt.Println()
	fmt.Println("Starting server...")
	fmt.Println()

	return true
}

// validateGeminiKey checks a key against the models list endpoint, which is
// lightweight and needs no billing.
func validateGeminiKey(key string) error {
	return checkGeminiKey(context.Background(), resty.New().SetTimeout(10*time.Second), geminiModelsURL, key)
}

func checkGeminiKey(ctx context.Context, client *resty.Client, endpoint, key string) error {
	res, err := client.R().
		SetContext(ctx).
		SetQueryParam("key", key).
		Get(endpoint)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.New("connection timed out - check your internet")
		}
		return errors.New("connection failed - check your internet")
	}

	switch res.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		var result struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(res.Body(), &result); err == nil && result.Error.Message != "" {
			return errors.New(result.Error.Message)
		}
		return fmt.Errorf("API key rejected (HTTP %d)", res.StatusCode())
	default:
		return fmt.Errorf("unexpected response (HTTP %d)", res.StatusCode())
	}
}

// writeEnvFile writes the configuration to the config file.
// Uses restrictive permissions (0600) since the file contains secrets.
// Returns the path where the config was written.
func writeEnvFile(values map[string]string) (string, error) {
	configPath, err := config.FilePath()
	if err != nil {
		return "", err
	}
	if err := writeEnvValues(configPath, values); err != nil {
		return "", err
	}
	return configPath, nil
}

func writeEnvValues(path string, values map[string]string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	// Quote values to handle special characters
	for _, key := range envFileOrder {
		if val, ok := values[key]; ok {
			if _, err := fmt.Fprintf(f, "%s=%q\n", key, val); err != nil {
				return fmt.Errorf("failed to write %s: %w", key, err)
			}
		}
	}
	return nil
}

// waitOnWindows pauses execution on Windows so users can see error messages
// before the console window closes.
func waitOnWindows() {
	if runtime.GOOS == "windows" {
		fmt.Println()
		fmt.Println("Press Enter to exit...")
		fmt.Scanln()
	}
}

// fatalWithWait logs a fatal error and waits on Windows before exiting.
func fatalWithWait(format string, args ...any) {
	log.Error().Msg(fmt.Sprintf(format, args...))
	waitOnWindows()
	os.Exit(1)
}
