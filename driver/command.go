package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/KaiJun-SIT/Big-Data-amazon/engine"
	"github.com/KaiJun-SIT/Big-Data-amazon/engine/shuffle"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/config"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/counters"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/health_server"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/logger"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

const (
	driverComponent = "Driver"
	usageLine       = "Usage: reviewclean <input path> <output path> [duplicates file]"

	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

var errUsage = xerrors.New("wrong number of arguments")

// execute runs the CLI with args and returns the process exit code.
func execute(ctx context.Context, args []string, stderr io.Writer) int {
	if args == nil {
		args = []string{}
	}
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetErr(stderr)
	cmd.SetOut(stderr)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitSuccess
	case xerrors.Is(err, errUsage):
		fmt.Fprintln(stderr, usageLine)
		return exitUsage
	default:
		logger.LogError(driverComponent, "Job failed: %v", err)
		return exitFailure
	}
}

func newRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "reviewclean <input path> <output path> [duplicates file]",
		Short:         "Clean JSON review records by product, dropping duplicate products and unknown values",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 2 || len(args) > 3 {
				return xerrors.Errorf("%w: got %d", errUsage, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logger.SetLogLevelFromString(cfg.LogLevel)

			job := engine.Job{
				InputPath:  args[0],
				OutputPath: args[1],
				Conf:       engine.Conf{},
			}
			if len(args) == 3 {
				job.Conf.Set(engine.DuplicatesFileKey, args[2])
			}
			return runJob(cmd.Context(), cfg, job)
		},
	}
}

func runJob(ctx context.Context, cfg *config.Config, job engine.Job) error {
	logger.LogInfo(driverComponent, "Input path: %s", job.InputPath)
	logger.LogInfo(driverComponent, "Output path: %s", job.OutputPath)
	if dups := job.Conf.Get(engine.DuplicatesFileKey); dups != "" {
		logger.LogInfo(driverComponent, "Duplicates file: %s", dups)
	} else {
		logger.LogInfo(driverComponent, "No duplicates file provided")
	}

	reg := prometheus.NewRegistry()
	c, err := counters.NewRegistry(reg)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		hs := health_server.NewHealthServer(cfg.MetricsAddr, reg)
		if err := hs.Start(); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = hs.Stop(stopCtx)
		}()
	}

	fs := storage.Resolver{Local: storage.LocalFileSystem{}}
	if cfg.S3.Endpoint != "" {
		s3fs, err := storage.NewS3FileSystem(cfg.S3)
		if err != nil {
			return err
		}
		fs.S3 = s3fs
	}

	var newTransport engine.TransportFactory
	if cfg.ShuffleTransport == config.TransportRabbitMQ {
		rabbit := cfg.RabbitMQ
		newTransport = func(ctx context.Context, jobID string, numPartitions int) (shuffle.Transport, error) {
			return shuffle.NewRabbitTransport(ctx, &rabbit, jobID, numPartitions)
		}
	}

	return engine.New(cfg, fs, c, newTransport).Run(ctx, job)
}
