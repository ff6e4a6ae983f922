// Package pipeline runs the deploy phases over a single remote session.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/yuya-takeyama/ssh-deploy/pkg/config"
	"github.com/yuya-takeyama/ssh-deploy/pkg/deploy"
	"github.com/yuya-takeyama/ssh-deploy/pkg/exclude"
	"github.com/yuya-takeyama/ssh-deploy/pkg/logger"
	"github.com/yuya-takeyama/ssh-deploy/pkg/remote"
)

// Dialer opens the session shared by all phases.
type Dialer func(ctx context.Context) (remote.Session, error)

type Phases struct {
	Copy     bool
	Run      bool
	CopyBack bool
}

// Report is what a finished pipeline did.
type Report struct {
	// Files counts uploads across all source directories.
	Files int
	// Output is nil unless the run phase ran.
	Output *remote.Output
	// Fetched lists the local paths written by the copy-back phase.
	Fetched []string
}

type Pipeline struct {
	cfg    *config.Config
	dial   Dialer
	fs     afero.Fs
	events logger.Logger
	log    logrus.FieldLogger
	out    io.Writer
}

func New(cfg *config.Config, dial Dialer, fsys afero.Fs, events logger.Logger, log logrus.FieldLogger, out io.Writer) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		dial:   dial,
		fs:     fsys,
		events: events,
		log:    log,
		out:    out,
	}
}

// Execute dials once, runs the enabled phases in order and stops at the first
// error. The session is closed before the command output is printed.
func (p *Pipeline) Execute(ctx context.Context, phases Phases) (*Report, error) {
	matcher, err := exclude.New(p.cfg.Deploy.Exclusions(), p.cfg.Deploy.PathExclusions())
	if err != nil {
		return nil, &config.Error{Path: p.cfg.Path(), Err: err}
	}

	report, err := p.execute(ctx, phases, matcher)
	if err != nil {
		return nil, err
	}

	if report.Output != nil {
		p.printOutput(report.Output)
	}
	return report, nil
}

func (p *Pipeline) execute(ctx context.Context, phases Phases, matcher *exclude.Matcher) (*Report, error) {
	session, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			p.log.WithError(err).Warn("Failed to close session.")
		}
	}()

	report := &Report{}

	if phases.Copy {
		if err := p.copy(session, matcher, report); err != nil {
			return nil, err
		}
	}

	if phases.Run {
		if err := p.run(session, report); err != nil {
			return nil, err
		}
	}

	if phases.CopyBack {
		if err := p.copyBack(session, report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

func (p *Pipeline) copy(session remote.Session, matcher *exclude.Matcher, report *Report) error {
	fmt.Fprintln(p.out, "Deploy ...")

	for _, dir := range p.cfg.Deploy.SourceDirs() {
		p.log.Infof("Deploy %s ...", dir)

		result, err := p.syncDir(session, deploy.Job{
			LocalRoot:  dir,
			RemoteBase: p.cfg.Deploy.DestDir,
			Exclusions: matcher,
		})
		if err != nil {
			return err
		}
		report.Files += result.Files
	}
	return nil
}

// syncDir uses a fresh file channel for each source directory.
func (p *Pipeline) syncDir(session remote.Session, job deploy.Job) (deploy.Result, error) {
	channel, err := session.OpenFileChannel()
	if err != nil {
		return deploy.Result{}, err
	}
	defer channel.Close()

	return deploy.NewSynchronizer(p.fs, channel, p.events).Sync(job)
}

// Command prefixes commands with a cd into destDir/runDir and joins them into
// one shell line.
func Command(destDir, runDir string, commands []string) string {
	parts := append([]string{"cd " + destDir + "/" + runDir}, commands...)
	return strings.Join(parts, ";")
}

func (p *Pipeline) run(session remote.Session, report *Report) error {
	fmt.Fprintln(p.out, "Run remote command ...")

	command := Command(p.cfg.Deploy.DestDir, p.cfg.Run.Dir, p.cfg.Run.CommandList())
	p.events.Command(command)

	output, err := remote.Run(session, command)
	if err != nil {
		return fmt.Errorf("run remote command: %w", err)
	}
	if output.ExitStatus != 0 {
		p.log.WithField("status", output.ExitStatus).Warn("Remote command exited with non-zero status.")
	}

	report.Output = output
	return nil
}

// RemoteResultPath resolves a copy-back entry against the deploy directory.
// Absolute entries are used as they are.
func RemoteResultPath(destDir, file string) string {
	if path.IsAbs(file) {
		return file
	}
	return path.Join(destDir, file)
}

func (p *Pipeline) copyBack(session remote.Session, report *Report) error {
	fmt.Fprintln(p.out, "Copy back ...")

	channel, err := session.OpenFileChannel()
	if err != nil {
		return err
	}
	defer channel.Close()

	collector := deploy.NewCollector(p.fs, channel, p.events)
	for _, file := range p.cfg.CopyBack.FileList() {
		local, err := collector.Fetch(RemoteResultPath(p.cfg.Deploy.DestDir, file), p.cfg.CopyBack.DestDirLocal)
		if err != nil {
			return err
		}
		report.Fetched = append(report.Fetched, local)
	}
	return nil
}

func (p *Pipeline) printOutput(output *remote.Output) {
	header := color.New(color.Bold)

	header.Fprintln(p.out, "STDOUT")
	fmt.Fprintln(p.out, output.Stdout)
	header.Fprintln(p.out, "STDERR")
	fmt.Fprintln(p.out, output.Stderr)
}
