// Command authsvc starts the identity/session/upload core's HTTP server,
// grounded on the teacher's plain main.go + flag.String("f", ...) + conf.MustLoad
// startup shape used throughout services/gateway and services/microservices.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest"

	"github.com/pixles/authcore/internal/config"
	"github.com/pixles/authcore/internal/handler"
	"github.com/pixles/authcore/internal/sessionstore"
	"github.com/pixles/authcore/internal/svc"
)

var (
	configFile  = flag.String("f", "etc/authsvc.yaml", "the config file")
	healthcheck = flag.Bool("healthcheck", false, "ping the database and KV store and exit 0/1")
)

func main() {
	flag.Parse()

	var c config.Config
	conf.MustLoad(*configFile, &c)

	if *healthcheck {
		os.Exit(runHealthcheck(c))
	}

	ctx, err := svc.NewServiceContext(c)
	if err != nil {
		logx.Errorf("authsvc: failed to build service context: %v", err)
		os.Exit(1)
	}

	server := rest.MustNewServer(c.RestConf)
	defer server.Stop()

	handler.RegisterHandlers(server, ctx)

	fmt.Printf("Starting authsvc at %s:%d...\n", c.Host, c.Port)
	server.Start()
}

// runHealthcheck implements the ambient ops surface recovered from
// pixles-cli/src/status.rs: ping the DB and KV and report success via exit
// code, without introducing a CLI framework dependency.
func runHealthcheck(c config.Config) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dbh, err := sqlx.Open("postgres", c.Database.DataSource)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authsvc: healthcheck: open database: %v\n", err)
		return 1
	}
	defer dbh.Close()
	if err := dbh.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "authsvc: healthcheck: ping database: %v\n", err)
		return 1
	}

	store, err := sessionstore.NewRedisFromURL(ctx, c.KVURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authsvc: healthcheck: connect kv: %v\n", err)
		return 1
	}
	defer store.Close()
	if _, err := store.GetSession(ctx, "healthcheck-probe"); err != nil {
		fmt.Fprintf(os.Stderr, "authsvc: healthcheck: probe kv: %v\n", err)
		return 1
	}

	fmt.Println("ok")
	return 0
}
