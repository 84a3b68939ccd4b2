package extension

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"pm/config"
)

// Job describes one piece of work to run, either locally or as a cluster
// batch job.
type Job struct {
	Name    string
	Command []string
	// WorkDir is the working directory of the job; empty means inherit
	WorkDir string
	// Partition/Account/Time override the configured defaults when set
	Partition string
	Account   string
	Time      string
}

// Runner executes a prepared command line. Tests swap it out.
type Runner func(ctx context.Context, workDir string, argv []string) error

// Distributed submits jobs through the cluster scheduler when enabled, and
// runs them in-process otherwise.
type Distributed struct {
	logger  *zap.SugaredLogger
	cfg     *config.Config
	run     Runner
	dryRun  bool
	isSetup bool
}

// NewDistributed creates the distributed execution extension.
func NewDistributed() *Distributed {
	return &Distributed{run: execRunner}
}

func execRunner(ctx context.Context, workDir string, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Name implements Extension.
func (d *Distributed) Name() string { return "distributed" }

// Setup implements Extension.
func (d *Distributed) Setup(_ context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	d.cfg = cfg
	d.logger = logger
	d.isSetup = true
	return nil
}

// Close implements Extension.
func (d *Distributed) Close(context.Context) error { return nil }

// SetRunner replaces the command runner, for tests.
func (d *Distributed) SetRunner(r Runner) { d.run = r }

// SetDryRun makes Submit log the command line instead of executing it.
func (d *Distributed) SetDryRun(v bool) { d.dryRun = v }

// BuildArgv assembles the full command line Submit would run for the job.
func (d *Distributed) BuildArgv(job Job) ([]string, error) {
	if len(job.Command) == 0 {
		return nil, fmt.Errorf("job %q has no command", job.Name)
	}
	if !d.cfg.Distributed.Enabled {
		return job.Command, nil
	}

	partition := job.Partition
	if partition == "" {
		partition = d.cfg.Distributed.Partition
	}
	timeLimit := job.Time
	if timeLimit == "" {
		timeLimit = d.cfg.Distributed.Time
	}
	account := job.Account
	if account == "" {
		account = d.cfg.Distributed.Account
	}

	argv := []string{"sbatch",
		"--job-name", job.Name,
		"--partition", partition,
		"--time", timeLimit,
		"--output", job.Name + "-%j.out",
	}
	if account != "" {
		argv = append(argv, "--account", account)
	}
	argv = append(argv, d.cfg.Distributed.Extra...)
	argv = append(argv, "--wrap", shellJoin(job.Command))
	return argv, nil
}

// Submit runs the job, wrapping it in an sbatch submission when distributed
// execution is enabled.
func (d *Distributed) Submit(ctx context.Context, job Job) error {
	if !d.isSetup {
		return fmt.Errorf("distributed extension is not set up")
	}

	argv, err := d.BuildArgv(job)
	if err != nil {
		return err
	}

	if d.dryRun {
		d.logger.Infow("dry run, not executing", "job", job.Name, "argv", argv)
		return nil
	}

	d.logger.Debugw("running job", "job", job.Name, "argv", argv, "distributed", d.cfg.Distributed.Enabled)
	if err := d.run(ctx, job.WorkDir, argv); err != nil {
		return fmt.Errorf("job %q failed: %w", job.Name, err)
	}
	return nil
}

// shellJoin quotes the command for sbatch --wrap.
func shellJoin(argv []string) string {
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		if needsQuoting(a) {
			out += "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		} else {
			out += a
		}
	}
	return out
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == '/' || r == '=' || r == ':' || r == ',':
		default:
			return true
		}
	}
	return false
}
