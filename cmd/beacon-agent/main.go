// README: Entry point; loads config, wires the tracking pipeline, starts the control API.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"beacon/internal/config"
	"beacon/internal/dispatch"
	httptransport "beacon/internal/http"
	"beacon/internal/infra"
	"beacon/internal/logger"
	"beacon/internal/maps"
	"beacon/internal/modules/profile"
	"beacon/internal/modules/tracking"
	"beacon/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logg := logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("BEACON_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firebase init: %v", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	redisClient := infra.NewRedis(cfg.Redis.Addr)

	// Transmitters: the dispatch HTTP endpoint always, the Firebase
	// realtime mirror when configured.
	var transmitter tracking.Transmitter = dispatch.NewHTTPTransmitter(cfg.Dispatch.URL, cfg.Dispatch.Token)
	rtdb, err := infra.NewRTDB(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		logg.Warn("firebase rtdb unavailable, dispatch HTTP only", "err", err)
	} else {
		transmitter = dispatch.NewMulti(transmitter, dispatch.NewRTDBTransmitter(rtdb))
	}

	trackingStore := tracking.NewStore(dbPool, redisClient)
	deviceSource := source.NewDeviceSource(cfg.Device.URL)

	pipeline := tracking.NewPipeline(deviceSource, trackingStore, transmitter, cfg.Tracking, logg)
	pipeline.SetSnapshotSink(trackingStore)
	if cfg.Maps.APIKey != "" {
		snapper, err := maps.NewRoadSnapService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
		pipeline.SetRoadSnapper(snapper)
	}

	profileStore := profile.NewStore(dbPool)
	profileSvc := profile.NewService(profileStore)

	watch := source.NewPollingWatch(deviceSource, cfg.Tracking, logg)
	scheduler := source.NewTickerScheduler()
	controller := tracking.NewController(pipeline, watch, scheduler, profileSvc, cfg.Tracking, logg)
	coordinator := tracking.NewCoordinator(pipeline, trackingStore, transmitter, controller, cfg.Tracking, logg)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Control:   controller,
		Immediate: coordinator,
		Modes:     profileSvc,
		LastKnown: trackingStore,
		Profiles:  profileSvc,
		Changer:   controller,
		Verifier:  verifier,
		Log:       logg,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	go func() {
		<-ctx.Done()
		controller.Stop()
		_ = server.Shutdown(context.Background())
	}()

	logg.Info("beacon agent listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
