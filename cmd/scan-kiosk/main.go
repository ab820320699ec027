// Command scan-kiosk runs a single check-in station against the configured database. It
// reads codes from a keyboard wedge scanner on stdin and shows each outcome in the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"ms-invites/internal/checkin"
	"ms-invites/internal/config"
	"ms-invites/internal/database"
	"ms-invites/internal/kafka"
	"ms-invites/internal/logger"
	"ms-invites/internal/store"
)

// station is the check-in engine of one kiosk and the connections it owns.
type station struct {
	engine   *checkin.Engine
	redis    *redis.Client
	producer *kafka.Producer
}

func newStation(ctx context.Context, cfg *config.Config, bunDB *bun.DB, log *logger.Logger) (*station, error) {
	st := &station{}
	opts := []checkin.Option{checkin.WithLogger(log)}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		st.redis = client
		opts = append(opts, checkin.WithLocker(checkin.NewRedisLocker(client, cfg.Redis.LockTTL)))
	}

	// kiosk check-ins reach the service's live feed through the check-in topic
	if cfg.Kafka.Enabled {
		st.producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.CheckIns, log)
		opts = append(opts, checkin.WithNotifier(st.producer))
	}

	st.engine = checkin.NewEngine(store.New(bunDB), opts...)
	return st, nil
}

func (st *station) close() {
	if st.producer != nil {
		st.producer.Close()
	}
	if st.redis != nil {
		st.redis.Close()
	}
}

func run(ctx context.Context, scanner checkin.Scanner, out io.Writer, resolver checkin.Resolver, hold time.Duration) (checkin.SessionView, error) {
	session := checkin.NewSession(resolver)
	display := &terminalDisplay{w: out, hold: hold}
	err := session.Run(ctx, scanner, display)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return session.View(), err
}

func main() {
	os.Exit(runKiosk(os.Args[1:]))
}

func runKiosk(args []string) int {
	fs := flag.NewFlagSet("scan-kiosk", flag.ContinueOnError)
	hold := fs.Duration("hold", 2*time.Second, "how long each outcome stays on screen")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Error("DATABASE", err.Error())
		return 1
	}
	defer bunDB.Close()

	st, err := newStation(ctx, cfg, bunDB, log)
	if err != nil {
		log.Error("KIOSK", err.Error())
		return 1
	}
	defer st.close()

	log.Info("KIOSK", "Ready for scans")
	view, err := run(ctx, checkin.NewLineScanner(os.Stdin), os.Stdout, st.engine, *hold)
	log.Info("KIOSK", fmt.Sprintf("Station closed: %v", view.Counts))
	if err != nil {
		log.Error("KIOSK", err.Error())
		return 1
	}
	return 0
}
