package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewCommand returns the "setup" command of the standalone MCP server.
// Confirmations are read from the command's input stream.
func NewCommand() *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:          "setup",
		Short:        "Register the server with a desktop MCP client",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "client config file (default: desktop client location)")
	cmd.PersistentFlags().StringVar(&opts.BinaryPath, "binary", "", "server binary path (default: this executable)")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "data directory passed to the server")
	cmd.PersistentFlags().BoolVar(&opts.AutoConfirm, "yes", false, "do not ask for confirmation")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "client",
			Short: "Register the server with the desktop MCP client",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return configureClient(cmd.InOrStdin(), cmd.OutOrStdout(), opts)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current registration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return showStatus(cmd.OutOrStdout(), opts.ConfigPath)
			},
		},
	)

	return cmd
}

func configureClient(in io.Reader, out io.Writer, opts Options) error {
	if opts.BinaryPath == "" {
		if execPath, err := os.Executable(); err == nil {
			opts.BinaryPath = execPath
		}
	}

	configPath, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return err
	}
	opts.ConfigPath = configPath

	fmt.Fprintf(out, "Config file: %s\n", configPath)
	fmt.Fprintf(out, "Server binary: %s\n", opts.BinaryPath)
	if opts.DataDir != "" {
		fmt.Fprintf(out, "Data directory: %s\n", opts.DataDir)
	}

	if !opts.AutoConfirm && !confirm(in, out, "Proceed with configuration? [Y/n]: ") {
		fmt.Fprintln(out, "Configuration cancelled.")
		return nil
	}

	if _, err := Configure(opts); err != nil {
		return fmt.Errorf("failed to configure client: %w", err)
	}

	fmt.Fprintln(out, "Client configured. Restart it to load the biomarker advisor tools.")
	return nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "" || response == "y" || response == "yes"
}

func showStatus(out io.Writer, configPath string) error {
	status, err := GetStatus(configPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Config path: %s\n", status.ConfigPath)
	if status.Configured {
		fmt.Fprintf(out, "Registered: yes (%s)\n", status.ServerPath)
	} else {
		fmt.Fprintln(out, "Registered: no")
	}
	fmt.Fprintf(out, "Data directory: %s\n", status.DataDir)
	for _, issue := range status.Issues {
		fmt.Fprintf(out, "  ! %s\n", issue)
	}
	return nil
}
