package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/rs/cors"
	"github.com/spf13/viper"

	"github.com/adtech/rtb-adapter/config"
	"github.com/adtech/rtb-adapter/endpoints"
	"github.com/adtech/rtb-adapter/metrics"
	"github.com/adtech/rtb-adapter/transport"
	"github.com/adtech/rtb-adapter/usersync"
)

const configFileName = "rtbadapter"

func main() {
	flag.Parse() // required for glog flags and testing package flags

	cfg, err := loadConfig()
	if err != nil {
		glog.Exitf("Configuration could not be loaded or did not pass validation: %v", err)
	}

	if err := serve(cfg); err != nil {
		glog.Exitf("rtb-adapter failed: %v", err)
	}
}

func loadConfig() (*config.Configuration, error) {
	v := viper.New()
	config.SetupViper(v, configFileName)
	return config.New(v)
}

func serve(cfg *config.Configuration) error {
	sender := transport.NewHTTPSender(&transport.Config{
		MaxConns:        cfg.HTTP.MaxConns,
		MaxConnsPerHost: cfg.HTTP.MaxConnsPerHost,
		IdleConnTimeout: cfg.IdleConnTimeout(),
	})

	registry := gometrics.NewPrefixedRegistry("rtbadapter.")
	adapterMetrics := metrics.NewAdapterMetrics(registry, cfg.Metrics.Prefix, cfg.BidderCode)

	sink := &usersync.HTTPSink{}
	settings := config.NewBidderSettings()

	router := httprouter.New()
	router.POST("/auction", endpoints.Auction(cfg, sender, sink, settings, adapterMetrics))
	router.GET("/status", endpoints.Status)

	handler := supportCORS(gziphandler.GzipHandler(router))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	glog.Infof("rtb-adapter listening on %s for bidder %q", server.Addr, cfg.BidderCode)
	return server.ListenAndServe()
}

func supportCORS(handler http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowCredentials: true,
		AllowOriginFunc: func(string) bool {
			return true
		},
		AllowedHeaders: []string{"Origin", "X-Requested-With", "Content-Type", "Accept"}})
	return c.Handler(handler)
}
