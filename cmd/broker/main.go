// Package main provides the main entry point for the claim broker server.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/beaconmq/broker/internal/claim"
	"github.com/beaconmq/broker/internal/httpapi"
	"github.com/beaconmq/broker/internal/message"
	"github.com/beaconmq/broker/internal/store"
	"github.com/beaconmq/broker/pkg/servers/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	port := 8080
	if portEnv, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
		port = portEnv
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisDB := 0
	if dbEnv, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		redisDB = dbEnv
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	})
	st := store.NewRedisStore(rdb)

	claims := claim.NewController(st)
	mutator := message.NewMutator()
	apiController := httpapi.NewController(claims, st, mutator)
	adapter := httpapi.NewGinAdapter(apiController)

	addr := fmt.Sprintf(":%d", port)
	webServer := web.NewServer(addr, adapter, promhttp.Handler())

	klog.Infof("Starting broker server on %s (redis=%s/%d)", addr, redisAddr, redisDB)
	if err := webServer.Run(); err != nil && err != http.ErrServerClosed {
		klog.Fatalf("Failed to start web server: %v", err)
	}
}
