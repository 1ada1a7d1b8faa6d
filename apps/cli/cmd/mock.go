package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/logging"
	"github.com/abdul-hamid-achik/hitchain/packages/mock"
	"github.com/spf13/cobra"
)

var (
	mockPortFlag      int
	mockDelayFlag     string
	mockVerboseFlag   bool
	mockResourceFlags []string
	mockUserFlags     []string
	mockIDFieldFlag   string
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Start the in-memory demo API",
	Long: `Start an in-memory REST API for trying suites locally.

Every --resource is served as a collection with create, list, read, update
and delete endpoints. When at least one --user is given, POST /auth/login
issues bearer tokens and every collection endpoint requires one.

Examples:
  hitchain mock --resource datasets
  hitchain mock --resource users --resource orders --port 8080
  hitchain mock --resource datasets --user admin:secret --id-field pid
  hitchain mock --resource datasets --delay 100ms --verbose`,
	Args: cobra.NoArgs,
	RunE: mockCommand,
}

func init() {
	mockCmd.Flags().IntVarP(&mockPortFlag, "port", "p", 3000, "Port to run the mock server on")
	mockCmd.Flags().StringVarP(&mockDelayFlag, "delay", "d", "0", "Delay to add to all responses (e.g., 100ms, 1s)")
	mockCmd.Flags().BoolVarP(&mockVerboseFlag, "verbose", "v", false, "Log every request")
	mockCmd.Flags().StringArrayVarP(&mockResourceFlags, "resource", "r", nil, "Collection to serve (repeatable)")
	mockCmd.Flags().StringArrayVarP(&mockUserFlags, "user", "u", nil, "Login credentials as name:password (repeatable)")
	mockCmd.Flags().StringVar(&mockIDFieldFlag, "id-field", mock.DefaultIDField, "Field holding the generated document id")
}

func mockOptions() ([]mock.Option, error) {
	var delay time.Duration
	if mockDelayFlag != "0" {
		var err error
		delay, err = time.ParseDuration(mockDelayFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid delay value %q: %w", mockDelayFlag, err)
		}
	}
	if len(mockResourceFlags) == 0 {
		return nil, fmt.Errorf("at least one --resource is required")
	}

	opts := []mock.Option{
		mock.WithPort(mockPortFlag),
		mock.WithDelay(delay),
		mock.WithIDField(mockIDFieldFlag),
	}
	for _, name := range mockResourceFlags {
		opts = append(opts, mock.WithResource(name))
	}
	for _, cred := range mockUserFlags {
		name, password, ok := strings.Cut(cred, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --user %q (want name:password)", cred)
		}
		opts = append(opts, mock.WithUser(name, password))
	}
	return opts, nil
}

func mockCommand(cmd *cobra.Command, args []string) error {
	opts, err := mockOptions()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	level := logging.LevelInfo
	if mockVerboseFlag {
		level = logging.LevelDebug
	}
	server := mock.NewServer(append(opts, mock.WithLogger(logging.NewStderr(level)))...)

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d routes\n", len(server.Routes()))

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return server.StartWithContext(ctx)
}
