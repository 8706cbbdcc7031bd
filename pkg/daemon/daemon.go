package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/classicvalues/nanotune/pkg/config"
	"github.com/classicvalues/nanotune/pkg/device"
	"github.com/classicvalues/nanotune/pkg/events"
	"github.com/classicvalues/nanotune/pkg/stage"
	"github.com/classicvalues/nanotune/pkg/tuner"
)

var (
	conf   config.Config
	dev    *device.Device
	ctrl   *device.Controller
	tn     *tuner.Tuner
	sseHub *events.Hub
	sched  *Scheduler
)

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/device", getDevice)
	router.GET("/normalization", getNormalization)
	router.POST("/calibrate", postCalibrate)
	router.POST("/characterize", postCharacterize)
	router.POST("/range", postRange)
	router.POST("/signal", postSignal)
	router.GET("/results", getResults)
	router.GET("/config", getConfig)
	router.PUT("/calibration-cron", setCalibrationCron)
	router.GET("/events", getEvents)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/version", getVersion)

	return router
}

// Run starts the tuning daemon: it builds the device from the configured
// layout, wires the tuner and serves the HTTP API on a unix socket until
// SIGINT/SIGTERM.
func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	router := setupRoutes()

	var err error
	conf, err = config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.(*config.File).LogrusFields()).Infof("config loaded")

	layout := conf.DeviceLayout()
	if len(layout.Gates) == 0 {
		logrus.Fatalf("config %s has no device layout", configPath)
	}

	// TODO: add a Conn implementation backed by the real instrument stack;
	// until then the daemon drives a simulated connection.
	conn := device.MockConnForLayout(layout)
	if err := conn.Open(); err != nil {
		logrus.Fatal(err)
	}

	dev, err = device.FromLayout(layout, conn)
	if err != nil {
		logrus.Fatal(err)
	}
	ctrl = device.NewController(conn)

	tn = tuner.New("nanotune", ctrl, instrumentedStage{inner: &stage.SimStage{Ctrl: ctrl, Dev: dev}}, tuner.Options{
		DataSettings:     stage.DataSettings{DBName: conf.DBName()},
		SetpointSettings: stage.SetpointSettings{VoltagePrecision: conf.VoltagePrecision()},
	})
	tn.RegisterClassifier(tuner.ClassifierPinchoff, stage.ThresholdClassifier{Threshold: 0.5})

	sseHub = events.NewHub()

	sched = NewScheduler(runScheduledCalibration)
	if expr := conf.CalibrationCron(); expr != "" {
		if err := sched.Schedule(expr); err != nil {
			logrus.WithError(err).Errorf("invalid calibration cron %q in config", expr)
		} else {
			sched.Start()
		}
	}

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			if err := conf.Load(); err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			logrus.Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler: router,
	}

	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		if err := os.Chmod(unixSocketPath, 0777); err != nil {
			logrus.Fatal(err)
		}
	}

	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping calibration scheduler")
	sched.Stop()

	// Park the device at its highest safety extreme before letting go of it.
	if err := ctrl.AllToHighest(dev); err != nil {
		logrus.Errorf("failed to park gates before exiting: %v", err)
	}

	logrus.Info("closing device connection")
	if err := conn.Close(); err != nil {
		logrus.Errorf("failed to close device connection: %v", err)
	}

	logrus.Info("exiting")
	return nil
}

func runScheduledCalibration() error {
	consts, err := tn.UpdateNormalizationConstants(dev)
	if err != nil {
		sseHub.Publish(events.TuningError, events.TuningEvent{
			Device:  dev.Name(),
			Message: err.Error(),
			Ts:      time.Now().Unix(),
		})
		return err
	}

	calibrationsTotal.Inc()
	sseHub.Publish(events.CalibrationFinished, events.CalibrationEvent{
		Device:   dev.Name(),
		Channels: len(consts),
		Ts:       time.Now().Unix(),
	})
	return nil
}
