package daemon

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/classicvalues/nanotune/pkg/apis"
	"github.com/classicvalues/nanotune/pkg/config"
	"github.com/classicvalues/nanotune/pkg/device"
	"github.com/classicvalues/nanotune/pkg/events"
	"github.com/classicvalues/nanotune/pkg/tuner"
	"github.com/classicvalues/nanotune/pkg/version"
)

func getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

func getDevice(c *gin.Context) {
	status, err := dev.Status(ctrl)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, apis.DeviceStatus{
		Name:          dev.Name(),
		Gates:         status,
		Normalization: dev.NormalizationConstants(),
	})
}

func getNormalization(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, dev.NormalizationConstants())
}

func postCalibrate(c *gin.Context) {
	consts, err := tn.UpdateNormalizationConstants(dev)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	calibrationsTotal.Inc()
	sseHub.Publish(events.CalibrationFinished, events.CalibrationEvent{
		Device:   dev.Name(),
		Channels: len(consts),
		Ts:       time.Now().Unix(),
	})

	c.IndentedJSON(http.StatusCreated, consts)
}

func postCharacterize(c *gin.Context) {
	var req apis.CharacterizeRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	gates, err := resolveGates(req.Gates)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	sseHub.Publish(events.CharacterizationStarted, events.TuningEvent{
		Device: dev.Name(),
		Gates:  fmt.Sprintf("%v", req.Gates),
		Ts:     time.Now().Unix(),
	})

	result, err := tn.CharacterizeGates(dev, gates, req.UseSafetyRanges, req.Comment)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, tuner.ErrNoClassifier) {
			status = http.StatusPreconditionFailed
		}
		c.IndentedJSON(status, err.Error())
		_ = c.AbortWithError(status, err)
		return
	}

	sseHub.Publish(events.CharacterizationDone, events.TuningEvent{
		Device:  dev.Name(),
		Gates:   fmt.Sprintf("%v", req.Gates),
		Entries: result.Len(),
		Ts:      time.Now().Unix(),
	})

	c.IndentedJSON(http.StatusCreated, result.ToExport())
}

func postRange(c *gin.Context) {
	var req apis.RangeRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	gateToSet, ok := dev.Gate(req.GateToSet)
	if !ok {
		err := fmt.Errorf("unknown gate %q", req.GateToSet)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	gatesToSweep, err := resolveGates(req.GatesToSweep)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	voltageStep := req.VoltageStep
	if voltageStep == 0 {
		voltageStep = conf.VoltageStep()
	}

	sseHub.Publish(events.RangeDiscoveryStarted, events.TuningEvent{
		Device: dev.Name(),
		Gates:  req.GateToSet,
		Ts:     time.Now().Unix(),
	})

	discovered, result, err := tn.MeasureInitialRanges(dev, gateToSet, gatesToSweep, voltageStep)
	if err != nil {
		sseHub.Publish(events.TuningError, events.TuningEvent{
			Device:  dev.Name(),
			Gates:   req.GateToSet,
			Message: err.Error(),
			Ts:      time.Now().Unix(),
		})

		var exhausted *tuner.RangeExhaustedError
		if errors.As(err, &exhausted) {
			// The partial result is still useful to the caller.
			c.IndentedJSON(http.StatusConflict, apis.RangeResponse{Result: exhausted.Result.ToExport()})
			_ = c.AbortWithError(http.StatusConflict, err)
			return
		}
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	sseHub.Publish(events.RangeDiscovered, events.TuningEvent{
		Device: dev.Name(),
		Gates:  req.GateToSet,
		Low:    discovered.Min,
		High:   discovered.Max,
		Ts:     time.Now().Unix(),
	})

	logrus.WithFields(logrus.Fields{
		"gate": req.GateToSet,
		"low":  discovered.Min,
		"high": discovered.Max,
	}).Infof("range discovery finished")

	c.IndentedJSON(http.StatusCreated, apis.RangeResponse{
		Low:    discovered.Min,
		High:   discovered.Max,
		Result: result.ToExport(),
	})
}

func postSignal(c *gin.Context) {
	var req apis.SignalRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	thresholds := req.Thresholds
	if thresholds == nil {
		thresholds = conf.SignalThresholds()
	}

	have, err := tn.HasSignal(dev, thresholds, req.Channels)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, tuner.ErrDegenerateCalibration) || errors.Is(err, tuner.ErrNotCalibrated) {
			status = http.StatusPreconditionFailed
		}
		c.IndentedJSON(status, err.Error())
		_ = c.AbortWithError(status, err)
		return
	}

	c.IndentedJSON(http.StatusOK, have)
}

func getResults(c *gin.Context) {
	history := tn.Results(dev.Name())
	exports := make([]tuner.Export, 0, len(history))
	for _, r := range history {
		exports = append(exports, r.ToExport())
	}
	c.IndentedJSON(http.StatusOK, exports)
}

func setCalibrationCron(c *gin.Context) {
	b, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	expr := string(b)

	if expr == "" {
		sched.Stop()
		conf.SetCalibrationCron("")
		if err := conf.Save(); err != nil {
			c.IndentedJSON(http.StatusInternalServerError, err.Error())
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.IndentedJSON(http.StatusOK, "calibration schedule disabled")
		return
	}

	if err := sched.Schedule(expr); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	sched.Start()

	conf.SetCalibrationCron(expr)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	next, _ := sched.Status()
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("calibration scheduled, next run %s", next.Format(time.RFC3339)))
}

func getEvents(c *gin.Context) {
	ch := sseHub.Subscribe()
	defer sseHub.Unsubscribe(ch)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(_ io.Writer) bool {
		select {
		case e, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(e.Name, string(e.Data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func resolveGates(names []string) ([]*device.Gate, error) {
	if len(names) == 0 {
		return dev.Gates(), nil
	}

	gates := make([]*device.Gate, 0, len(names))
	for _, name := range names {
		g, ok := dev.Gate(name)
		if !ok {
			return nil, fmt.Errorf("unknown gate %q", name)
		}
		gates = append(gates, g)
	}
	return gates, nil
}
