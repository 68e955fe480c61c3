// docsink-tail follows a log file and ships every line through the sink,
// one event per line. Intended for feeding plain-text logs into the same
// collections the daemon writes to.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/hpcloud/tail"
	"github.com/rs/zerolog"

	"github.com/harborlog/docsink/internal/database"
	"github.com/harborlog/docsink/internal/docstore/postgres"
	"github.com/harborlog/docsink/internal/sink"
)

var args struct {
	File        string        `arg:"positional,required" help:"log file to follow"`
	DatabaseURL string        `arg:"env:DOCSINK_DATABASE_URL,required" help:"postgres connection string"`
	Database    string        `arg:"env:DOCSINK_TAIL_DATABASE" default:"logs"`
	Collection  string        `arg:"env:DOCSINK_TAIL_COLLECTION" default:"entries"`
	Level       string        `arg:"env:DOCSINK_TAIL_LEVEL" default:"info"`
	BatchSize   int           `arg:"env:DOCSINK_TAIL_BATCH_SIZE" default:"50"`
	QueueLimit  int           `arg:"env:DOCSINK_TAIL_QUEUE_LIMIT" default:"10000"`
	Period      time.Duration `arg:"env:DOCSINK_TAIL_PERIOD" default:"5s"`
	TTL         time.Duration `arg:"env:DOCSINK_TAIL_TTL" help:"per-document time-to-live, 0 disables"`
	FromStart   bool          `help:"read the file from the beginning instead of the end"`
}

func main() {
	arg.MustParse(&args)
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.RunMigrations(ctx, args.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("migrations")
	}
	pool, err := database.NewPool(ctx, args.DatabaseURL, logger, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("database pool")
	}
	defer pool.Close()

	opts := sink.DefaultOptions()
	opts.Endpoint = args.DatabaseURL
	opts.Database = args.Database
	opts.Collection = args.Collection
	opts.BatchPostingLimit = args.BatchSize
	opts.QueueLimit = args.QueueLimit
	opts.Period = args.Period
	opts.UTC = true
	opts.Diagnostics = sink.NewZerologDiagnostics(logger)
	if args.TTL > 0 {
		ttl := args.TTL
		opts.TimeToLive = &ttl
	}

	snk, err := sink.New(ctx, postgres.New(pool, logger), opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("sink")
	}

	tailCfg := tail.Config{Follow: true, ReOpen: true}
	if !args.FromStart {
		tailCfg.Location = &tail.SeekInfo{Whence: io.SeekEnd}
	}
	t, err := tail.TailFile(args.File, tailCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("tail")
	}

	logger.Info().Str("file", args.File).Msg("shipping lines")
	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			snk.Close()
			return
		case line, ok := <-t.Lines:
			if !ok {
				snk.Close()
				return
			}
			if line.Err != nil {
				logger.Warn().Err(line.Err).Msg("tail line")
				continue
			}
			snk.Emit(&sink.LogEvent{
				Timestamp:  line.Time,
				Level:      args.Level,
				Message:    line.Text,
				Properties: map[string]any{"file": args.File},
			})
		}
	}
}
