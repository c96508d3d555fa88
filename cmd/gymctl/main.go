// Command gymctl administers the gym membership ledger one subcommand at a
// time. Settings come from GYMLEDGER_* environment variables, optionally
// loaded from a .env file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"gymledger/internal/blob"
	"gymledger/internal/config"
	"gymledger/internal/core"
	"gymledger/internal/logging"
	"gymledger/internal/report"
	"gymledger/pkg/calendar"
	"gymledger/pkg/domain"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

var exitFunc = os.Exit

const usageText = `usage: gymctl [-env file] [-today YYYY-MM-DD] <command> [args]

commands:
  list                          list every member
  show <id>                     show one member
  search <keyword>              list members whose name contains keyword
  add -name N -gender G -age A -phone P -plan PLAN
  phone <id> <phone>            replace a phone number
  renew <id> <plan>             extend (same plan) or repurchase a membership
  deactivate <id>               mark a member inactive
  delete <id>                   remove an inactive member
  expiring                      active members close to expiry
  stats                         totals and plan shares
  sync                          deactivate lapsed members and save
  save                          write the store again (retry after a failed save)
  seed                          fill an empty store with demonstration members
  backup                        write a snapshot to the backup store
  backups                       list snapshots in the backup store
`

// usageError marks argument problems, reported with exit status 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gymctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = io.WriteString(stderr, usageText) }
	envFile := fs.String("env", ".env", "dotenv file to load before reading the environment")
	todayFlag := fs.String("today", "", "evaluate statuses as of this date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return exitUsage
	}
	if rest[0] == "help" {
		_, _ = io.WriteString(stdout, usageText)
		return exitOK
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n%s", rest[0], usageText)
		return exitUsage
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		_, _ = fmt.Fprintf(stderr, "load %s: %v\n", *envFile, err)
		return exitFail
	}
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "configuration: %v\n", err)
		return exitFail
	}
	var clock core.Clock = core.ClockFunc(nil)
	if *todayFlag != "" {
		d, err := calendar.Parse(*todayFlag)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "-today: %v\n", err)
			return exitUsage
		}
		clock = fixedDay(d)
	}

	ctx := context.Background()
	env, err := bootstrap(ctx, cfg, clock, stdout, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "gymctl: %v\n", err)
		return exitFail
	}
	runErr := cmd(ctx, env, rest[1:])
	if closeErr := env.close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}
	return exitCode(stderr, runErr)
}

// exitCode reports err on stderr and maps it to the process status.
func exitCode(stderr io.Writer, err error) int {
	if err == nil {
		return exitOK
	}
	var ue usageError
	if errors.As(err, &ue) {
		_, _ = fmt.Fprintln(stderr, ue.msg)
		return exitUsage
	}
	_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	return exitFail
}

// fixedDay pins the clock to noon of d.
func fixedDay(d calendar.Date) core.ClockFunc {
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 12, 0, 0, 0, time.Local)
	return func() time.Time { return t }
}

type env struct {
	svc     *core.Service
	loaded  core.LoadReport
	cfg     config.Config
	stdout  io.Writer
	stderr  io.Writer
	closers []func() error
}

func (e *env) close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func bootstrap(ctx context.Context, cfg config.Config, clock core.Clock, stdout, stderr io.Writer) (*env, error) {
	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, stdout: stdout, stderr: stderr}
	opts := []core.ServiceOption{
		core.WithClock(clock),
		core.WithLogger(logger),
		core.WithNearExpiryWindow(cfg.NearExpiryDays),
	}

	if cfg.TraceFile != "" {
		f, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		e.closers = append(e.closers, f.Close)
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}
	if cfg.MetricsFile != "" {
		reg := prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			_ = e.close()
			return nil, err
		}
		opts = append(opts, core.WithMetricsRecorder(rec))
		path := cfg.MetricsFile
		e.closers = append(e.closers, func() error { return prometheus.WriteToTextfile(path, reg) })
	}

	backups, err := blob.Open(ctx, blob.Config{
		Driver: blob.Driver(cfg.Backup.Driver),
		FSRoot: cfg.Backup.FSRoot,
		S3: blob.S3Config{
			Region:    cfg.Backup.S3.Region,
			Bucket:    cfg.Backup.S3.Bucket,
			Endpoint:  cfg.Backup.S3.Endpoint,
			PathStyle: cfg.Backup.S3.PathStyle,
		},
	})
	if err != nil {
		_ = e.close()
		return nil, fmt.Errorf("backup store: %w", err)
	}
	if backups != nil {
		opts = append(opts, core.WithBackupStore(backups))
	}

	persister, err := core.OpenPersister(ctx, core.StorageConfig{
		Driver:      core.StorageDriver(cfg.Storage.Driver),
		DataFile:    cfg.Storage.DataFile,
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	})
	if err != nil {
		_ = e.close()
		return nil, err
	}
	svc, rep, err := core.Open(ctx, persister, cfg.Capacity, opts...)
	if err != nil {
		if c, ok := persister.(io.Closer); ok {
			_ = c.Close()
		}
		_ = e.close()
		return nil, err
	}
	e.svc = svc
	e.loaded = rep
	e.closers = append([]func() error{svc.Close}, e.closers...)
	if rep.Skipped > 0 || rep.Rejected > 0 {
		_, _ = fmt.Fprintf(stderr, "warning: %d unreadable and %d rejected records in %s were ignored\n", rep.Skipped, rep.Rejected, rep.Source)
	}
	return e, nil
}

type command func(ctx context.Context, e *env, args []string) error

var commands = map[string]command{
	"list":       cmdList,
	"show":       cmdShow,
	"search":     cmdSearch,
	"add":        cmdAdd,
	"phone":      cmdPhone,
	"renew":      cmdRenew,
	"deactivate": cmdDeactivate,
	"delete":     cmdDelete,
	"expiring":   cmdExpiring,
	"stats":      cmdStats,
	"sync":       cmdSync,
	"save":       cmdSave,
	"seed":       cmdSeed,
	"backup":     cmdBackup,
	"backups":    cmdBackups,
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, usagef("invalid member id %q", s)
	}
	return id, nil
}

func wantArgs(args []string, n int, shape string) error {
	if len(args) != n {
		return usagef("usage: gymctl %s", shape)
	}
	return nil
}

func cmdList(ctx context.Context, e *env, args []string) error {
	if err := wantArgs(args, 0, "list"); err != nil {
		return err
	}
	members, err := e.svc.List(ctx)
	if err != nil {
		return err
	}
	return report.Members(e.stdout, members, e.svc.Today())
}

func cmdShow(ctx context.Context, e *env, args []string) error {
	if err := wantArgs(args, 1, "show <id>"); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	m, err := e.svc.Get(ctx, id)
	if err != nil {
		return err
	}
	return report.Member(e.stdout, m, e.svc.Today())
}

func cmdSearch(ctx context.Context, e *env, args []string) error {
	if err := wantArgs(args, 1, "search <keyword>"); err != nil {
		return err
	}
	members, err := e.svc.SearchByName(ctx, args[0])
	if err != nil {
		return err
	}
	return report.Members(e.stdout, members, e.svc.Today())
}

func cmdAdd(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	var in domain.NewMember
	fs.StringVar(&in.Name, "name", "", "member name (no whitespace)")
	fs.StringVar(&in.Gender, "gender", "", "male or female")
	fs.IntVar(&in.Age, "age", 0, "age, 18-80")
	fs.StringVar(&in.Phone, "phone", "", "11 digit phone number")
	fs.StringVar(&in.Plan, "plan", "", "monthly, quarterly or yearly")
	if err := fs.Parse(args); err != nil {
		return usagef("add: %v", err)
	}
	if fs.NArg() != 0 {
		return usagef("add: unexpected arguments %v", fs.Args())
	}
	m, err := e.svc.Add(ctx, in)
	if m.ID != 0 {
		_, _ = fmt.Fprintf(e.stdout, "added member %d (%s), expires %s\n", m.ID, m.Name, m.ExpiryDate())
	}
	return err
}

func cmdPhone(ctx context.Context, e *env, args []string) error {
	if err := wantArgs(args, 2, "phone <id> <phone>"); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	m, err := e.svc.UpdatePhone(ctx, id, args[1])
	if m.ID != 0 {
		_, _ = fmt.Fprintf(e.stdout, "member %d phone set to %s\n", m.ID, m.Phone)
	}
	return err
}

func cmdRenew(ctx context.Context, e *env, args []string) error {
	if err := wantArgs(args, 2, "renew <id> <plan>"); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	r, err := e.svc.Renew(ctx, id, args[1])
	if r.Member.ID != 0 {
		verb := "extended by"
		if r.Kind == core.RenewalFreshPurchase {
			verb = "repurchased for"
		}
		_, _ = fmt.Fprintf(e.stdout, "member %d %s %d days (%s), expires %s\n",
			r.Member.ID, verb, r.AddedDays, r.Member.Plan, r.Expiry)
	}
	return err
}

func cmdDeactivate(ctx context.Context, e *env, args []string) error {
	if err := wantArgs(args, 1, "deactivate <id>"); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	m, changed, err := e.svc.Deactivate(ctx, id)
	switch {
	case m.ID == 0:
	case changed:
		_, _ = fmt.Fprintf(e.stdout, "member %d deactivated\n", m.ID)
	default:
		_, _ = fmt.Fprintf(e.stdout, "member %d is already inactive\n", m.ID)
	}
	return err
}

func cmdDelete(ctx context.Context, e *env, args []string) error {
	if err := wantArgs(args, 1, "delete <id>"); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	m, err := e.svc.Delete(ctx, id)
	if m.ID != 0 {
		_, _ = fmt.Fprintf(e.stdout, "member %d (%s) deleted\n", m.ID, m.Name)
	}
	return err
}

func cmdExpiring(ctx context.Context, e *env, args []string) error {
	if err := wantArgs(args, 0, "expiring"); err != nil {
		return err
	}
	list, err := e.svc.NearExpiry(ctx)
	if err != nil {
		return err
	}
	return report.NearExpiry(e.stdout, list, e.cfg.NearExpiryDays)
}

func cmdStats(ctx context.Context, e *env, args []string) error {
	if err := wantArgs(args, 0, "stats"); err != nil {
		return err
	}
	st, err := e.svc.Statistics(ctx)
	if err != nil {
		return err
	}
	return report.Statistics(e.stdout, st)
}

func cmdSync(ctx context.Context, e *env, args []string) error {
	if err := wantArgs(args, 0, "sync"); err != nil {
		return err
	}
	n, err := e.svc.Sync(ctx)
	if err != nil {
		return err
	}
	if err := e.svc.Save(ctx); err != nil {
		return err
	}
	// Open already syncs once after loading.
	_, _ = fmt.Fprintf(e.stdout, "%d memberships expired\n", e.loaded.Expired+n)
	return nil
}

func cmdSave(ctx context.Context, e *env, args []string) error {
	if err := wantArgs(args, 0, "save"); err != nil {
		return err
	}
	if err := e.svc.Save(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(e.stdout, "saved to %s\n", e.svc.Persister().Describe())
	return nil
}

func cmdSeed(ctx context.Context, e *env, args []string) error {
	if err := wantArgs(args, 0, "seed"); err != nil {
		return err
	}
	members, err := e.svc.SeedDemo(ctx)
	if err != nil {
		return err
	}
	return report.Members(e.stdout, members, e.svc.Today())
}

func cmdBackup(ctx context.Context, e *env, args []string) error {
	if err := wantArgs(args, 0, "backup"); err != nil {
		return err
	}
	info, err := e.svc.Backup(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(e.stdout, "backup written to %s (%d bytes)\n", info.Key, info.Size)
	return nil
}

func cmdBackups(ctx context.Context, e *env, args []string) error {
	if err := wantArgs(args, 0, "backups"); err != nil {
		return err
	}
	infos, err := e.svc.ListBackups(ctx)
	if err != nil {
		return err
	}
	t := report.NewTable("Key", "Records", "Size", "Stored")
	for _, info := range infos {
		t.Append(info.Key, info.Metadata["records"], strconv.FormatInt(info.Size, 10), info.LastModified.UTC().Format(time.RFC3339))
	}
	if t.Len() == 0 {
		_, err := fmt.Fprintln(e.stdout, "no backups")
		return err
	}
	return t.Render(e.stdout)
}
