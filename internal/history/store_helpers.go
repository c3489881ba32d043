package history

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"onnxbench/internal/runner"
)

const runColumns = "id, started_at, finished_at, exit_code, failed_step, workdir, config_path, hostname, cpu_brand, cpu_cores, cpu_threads, cpu_features"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id          string
		startedRaw  string
		finishedRaw string
		exitCode    int
		failedStep  sql.NullString
		workDir     sql.NullString
		configPath  sql.NullString
		hostname    sql.NullString
		cpuBrand    sql.NullString
		cpuCores    sql.NullInt64
		cpuThreads  sql.NullInt64
		cpuFeatures sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&startedRaw,
		&finishedRaw,
		&exitCode,
		&failedStep,
		&workDir,
		&configPath,
		&hostname,
		&cpuBrand,
		&cpuCores,
		&cpuThreads,
		&cpuFeatures,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:         id,
		ExitCode:   exitCode,
		FailedStep: failedStep.String,
		WorkDir:    workDir.String,
		ConfigPath: configPath.String,
		Hostname:   hostname.String,
		CPUBrand:   cpuBrand.String,
		CPUCores:   int(cpuCores.Int64),
		CPUThreads: int(cpuThreads.Int64),
	}
	if features := strings.Fields(cpuFeatures.String); len(features) > 0 {
		run.CPUFeatures = features
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finished, err := parseTimeString(finishedRaw); err == nil {
		run.FinishedAt = finished
	}
	return run, nil
}

func runnerStatus(value string) runner.Status {
	switch runner.Status(value) {
	case runner.StatusSucceeded, runner.StatusFailed, runner.StatusSkipped, runner.StatusPlanned:
		return runner.Status(value)
	default:
		return runner.StatusFailed
	}
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return formatTime(value)
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(value)
}
