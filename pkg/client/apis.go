package client

import (
	"encoding/json"
	"fmt"

	"github.com/classicvalues/nanotune/pkg/apis"
	"github.com/classicvalues/nanotune/pkg/config"
	"github.com/classicvalues/nanotune/pkg/device"
	"github.com/classicvalues/nanotune/pkg/tuner"
)

// GetConfig returns the daemon's current configuration.
func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	body, err := c.Get("/config")
	if err != nil {
		return nil, err
	}
	var raw config.RawFileConfig
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &raw, nil
}

// GetDevice returns the daemon's view of the device.
func (c *Client) GetDevice() (apis.DeviceStatus, error) {
	var status apis.DeviceStatus
	body, err := c.Get("/device")
	if err != nil {
		return status, err
	}
	if err := json.Unmarshal([]byte(body), &status); err != nil {
		return status, fmt.Errorf("failed to decode device status: %w", err)
	}
	return status, nil
}

// GetNormalization returns the current normalization constants.
func (c *Client) GetNormalization() (map[string]device.Range, error) {
	body, err := c.Get("/normalization")
	if err != nil {
		return nil, err
	}
	var consts map[string]device.Range
	if err := json.Unmarshal([]byte(body), &consts); err != nil {
		return nil, fmt.Errorf("failed to decode normalization constants: %w", err)
	}
	return consts, nil
}

// Calibrate runs a normalization calibration and returns the new constants.
func (c *Client) Calibrate() (map[string]device.Range, error) {
	body, err := c.Post("/calibrate", "")
	if err != nil {
		return nil, err
	}
	var consts map[string]device.Range
	if err := json.Unmarshal([]byte(body), &consts); err != nil {
		return nil, fmt.Errorf("failed to decode normalization constants: %w", err)
	}
	return consts, nil
}

// Characterize runs a gate characterization and returns the exported result.
func (c *Client) Characterize(req apis.CharacterizeRequest) (tuner.Export, error) {
	var export tuner.Export
	data, err := json.Marshal(req)
	if err != nil {
		return export, err
	}
	body, err := c.Post("/characterize", string(data))
	if err != nil {
		return export, err
	}
	if err := json.Unmarshal([]byte(body), &export); err != nil {
		return export, fmt.Errorf("failed to decode characterization result: %w", err)
	}
	return export, nil
}

// DiscoverRange measures the operating window of a gate.
func (c *Client) DiscoverRange(req apis.RangeRequest) (apis.RangeResponse, error) {
	var resp apis.RangeResponse
	data, err := json.Marshal(req)
	if err != nil {
		return resp, err
	}
	body, err := c.Post("/range", string(data))
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return resp, fmt.Errorf("failed to decode range response: %w", err)
	}
	return resp, nil
}

// Signal asks whether the device currently shows signal.
func (c *Client) Signal(req apis.SignalRequest) (bool, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return false, err
	}
	body, err := c.Post("/signal", string(data))
	if err != nil {
		return false, err
	}
	var have bool
	if err := json.Unmarshal([]byte(body), &have); err != nil {
		return false, fmt.Errorf("failed to decode signal response: %w", err)
	}
	return have, nil
}

// GetResults returns the tuning history of the device.
func (c *Client) GetResults() ([]tuner.Export, error) {
	body, err := c.Get("/results")
	if err != nil {
		return nil, err
	}
	var exports []tuner.Export
	if err := json.Unmarshal([]byte(body), &exports); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	return exports, nil
}

// SetCalibrationCron installs (or with an empty expression, disables) the
// periodic calibration schedule.
func (c *Client) SetCalibrationCron(expr string) (string, error) {
	return c.Put("/calibration-cron", expr)
}

// GetVersion returns the daemon version.
func (c *Client) GetVersion() (string, error) {
	body, err := c.Get("/version")
	if err != nil {
		return "", err
	}
	var v string
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return "", fmt.Errorf("failed to decode version: %w", err)
	}
	return v, nil
}
