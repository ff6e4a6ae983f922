package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/yuya-takeyama/ssh-deploy/internal/logging"
	"github.com/yuya-takeyama/ssh-deploy/pkg/config"
	"github.com/yuya-takeyama/ssh-deploy/pkg/logger"
	"github.com/yuya-takeyama/ssh-deploy/pkg/pipeline"
	"github.com/yuya-takeyama/ssh-deploy/pkg/remote"
	"golang.org/x/term"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

var (
	copyFlag       bool
	noCopy         bool
	runFlag        bool
	copyBack       bool
	usePassword    bool
	configFile     string
	verbose        bool
	acceptHost     bool
	resultJSONFile string
)

// DeployResult is written to --result-json-file after a successful run
type DeployResult struct {
	Copied  int            `json:"copied"`
	Command *CommandResult `json:"command,omitempty"`
	Fetched []string       `json:"fetched"`
}

type CommandResult struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitStatus int    `json:"exit_status"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "ssh-deploy --config FILE",
		Short: "Deploy local directories to a server over SSH",
		Long: `ssh-deploy copies local directory trees to a remote host over SFTP,
optionally runs a command there and copies result files back.`,
		Version:      fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}

	registerFlags(rootCmd.Flags())
	_ = rootCmd.MarkFlagRequired("config")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func registerFlags(flags *pflag.FlagSet) {
	flags.BoolVar(&copyFlag, "copy", true, "Copy files to server")
	flags.BoolVar(&noCopy, "no-copy", false, "Skip copying files to server")
	flags.BoolVar(&runFlag, "run", false, "Run remote command")
	flags.BoolVar(&copyBack, "copyback", false, "Copy result files from remote to local after run")
	flags.BoolVar(&usePassword, "usepw", false, "Ask for password instead of using keys")
	flags.StringVar(&configFile, "config", "", "The config file (TOML, YAML or JSON)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	flags.BoolVar(&acceptHost, "accept-host", false, "Add unknown host keys to known_hosts")
	flags.StringVar(&resultJSONFile, "result-json-file", "", "Path to output result as JSON file")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	phases := pipeline.Phases{
		Copy:     copyFlag && !noCopy,
		Run:      runFlag,
		CopyBack: copyBack,
	}

	if err := cfg.Validate(config.Phases{Run: phases.Run, CopyBack: phases.CopyBack}); err != nil {
		return err
	}

	log := logging.New(verbose, os.Stderr)

	timeout, err := cfg.Server.DialTimeout()
	if err != nil {
		return err
	}

	opts := remote.Options{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		User:              cfg.Server.Username,
		KeyFile:           cfg.Server.KeyFile,
		KnownHostsFile:    cfg.Server.KnownHosts,
		AcceptUnknownHost: acceptHost,
		Timeout:           timeout,
		Logger:            log,
	}

	if usePassword {
		opts.Password, err = readPassword()
		if err != nil {
			return err
		}
	}

	dial := interruptibleDial(func(ctx context.Context) (remote.Session, error) {
		client, err := remote.Dial(ctx, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	})

	events := logger.NewSyncLogger(log, cmd.OutOrStdout())
	p := pipeline.New(cfg, dial, afero.NewOsFs(), events, log, cmd.OutOrStdout())

	report, err := p.Execute(context.Background(), phases)
	if err != nil {
		return err
	}

	if resultJSONFile != "" {
		if err := writeDeployResult(resultJSONFile, report); err != nil {
			return fmt.Errorf("failed to write result JSON: %w", err)
		}
	}

	return nil
}

// interruptibleDial lets an interrupt cancel the dial. Once the dial returns
// an interrupt terminates the process again.
func interruptibleDial(dial pipeline.Dialer) pipeline.Dialer {
	return func(ctx context.Context) (remote.Session, error) {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		return dial(ctx)
	}
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--usepw needs a terminal to read the password from")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

func newDeployResult(report *pipeline.Report) DeployResult {
	result := DeployResult{
		Copied:  report.Files,
		Fetched: []string{},
	}
	if report.Output != nil {
		result.Command = &CommandResult{
			Stdout:     report.Output.Stdout,
			Stderr:     report.Output.Stderr,
			ExitStatus: report.Output.ExitStatus,
		}
	}
	result.Fetched = append(result.Fetched, report.Fetched...)
	return result
}

func writeDeployResult(path string, report *pipeline.Report) error {
	data, err := json.MarshalIndent(newDeployResult(report), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
