package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/designforge/mimicry/internal/config"
	"github.com/designforge/mimicry/internal/registry"
	"github.com/designforge/mimicry/internal/server"
	"github.com/designforge/mimicry/internal/version"
)

// HealthStatus represents the health check result.
type HealthStatus struct {
	Status    string           `json:"status" yaml:"status"`
	Timestamp time.Time        `json:"timestamp" yaml:"timestamp"`
	Checks    map[string]Check `json:"checks" yaml:"checks"`
	Overall   bool             `json:"overall" yaml:"overall"`
}

// Check represents an individual health check result.
type Check struct {
	Status  string `json:"status" yaml:"status"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Healthy bool   `json:"healthy" yaml:"healthy"`
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the mimicry server and registry",
	Long: `Performs health checks on a running mimicry server and on the local
registry:
- HTTP server responsiveness (GET /health)
- Registry readability
- Components directory access

This command is used by container health checks and readiness probes.`,
	Args: cobra.NoArgs,
	RunE: runHealthCheck,
}

var (
	healthTimeout time.Duration
	healthVerbose bool
	healthURL     string
)

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().DurationVarP(&healthTimeout, "timeout", "t", 3*time.Second, "Timeout for health checks")
	healthCmd.Flags().BoolVarP(&healthVerbose, "verbose", "v", false, "Verbose health check output")
	healthCmd.Flags().StringVar(&healthURL, "url", "", "Server base URL (default http://<server.host>:<server.port>)")
}

func runHealthCheck(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	base := healthURL
	if base == "" {
		base = "http://" + a.cfg.Address()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
	defer cancel()

	status := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]Check),
		Overall:   true,
	}

	checkHTTPServer(ctx, status, base)
	checkRegistry(ctx, status, a.store)
	checkComponentsDir(status, a.cfg)

	if !status.Overall {
		status.Status = "unhealthy"
	}

	out := cmd.OutOrStdout()
	if healthVerbose {
		if err := outputResults(out, FormatJSON, status); err != nil {
			return err
		}
	} else if status.Overall {
		fmt.Fprintln(out, "All health checks passed")
	} else {
		fmt.Fprintln(out, "Health checks failed")
		for name, check := range status.Checks {
			if !check.Healthy {
				fmt.Fprintf(out, "  - %s: %s\n", name, check.Message)
			}
		}
	}

	if !status.Overall {
		return errors.New("health checks failed")
	}
	return nil
}

func (s *HealthStatus) record(name string, healthy bool, state, message string) {
	s.Checks[name] = Check{Status: state, Message: message, Healthy: healthy}
	if !healthy {
		s.Overall = false
	}
}

// checkHTTPServer verifies the server answers /health with a healthy body.
func checkHTTPServer(ctx context.Context, status *HealthStatus, base string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		status.record("http_server", false, "unhealthy", err.Error())
		return
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		status.record("http_server", false, "unhealthy", fmt.Sprintf("Failed to connect to server: %v", err))
		return
	}
	defer resp.Body.Close()

	var body server.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		status.record("http_server", false, "unhealthy", fmt.Sprintf("Invalid health response: %v", err))
		return
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("Server returned status %d", resp.StatusCode)
		if body.Error != "" {
			msg += ": " + body.Error
		}
		status.record("http_server", false, "unhealthy", msg)
		return
	}

	status.record("http_server", true, "healthy",
		fmt.Sprintf("Server %s responding, %d components, %d clients", body.Version, body.Components, body.Clients))
}

// checkRegistry verifies the local registry can be loaded.
func checkRegistry(ctx context.Context, status *HealthStatus, store registry.Store) {
	reg, err := store.Load(ctx)
	if err != nil {
		status.record("registry", false, "unhealthy", fmt.Sprintf("Cannot load registry: %v", err))
		return
	}
	status.record("registry", true, "healthy", fmt.Sprintf("%d components registered", len(reg.Components)))
}

// checkComponentsDir verifies the components directory accepts writes.
func checkComponentsDir(status *HealthStatus, cfg *config.Config) {
	tmpFile, err := os.CreateTemp(cfg.Registry.Dir, ".mimicry-health-*")
	if err != nil {
		status.record("components_dir", false, "unhealthy", fmt.Sprintf("Cannot write to %s: %v", cfg.Registry.Dir, err))
		return
	}
	_ = tmpFile.Close()
	_ = os.Remove(tmpFile.Name())

	status.record("components_dir", true, "healthy", "Components directory writable")
}
