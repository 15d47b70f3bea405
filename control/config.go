package control

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/pidloop/message"
	"go.viam.com/pidloop/pubsub"
)

// Config is the fully resolved configuration of one controller instance.
type Config struct {
	Kp  float64 `json:"kp"`
	Ki  float64 `json:"ki"`
	Kd  float64 `json:"kd"`
	Tau float64 `json:"tau"`

	OutputMin float64 `json:"output_min"`
	OutputMax float64 `json:"output_max"`

	SetpointChannel string `json:"setpoint_channel"`
	SetpointType    string `json:"setpoint_type"`
	SetpointPath    string `json:"setpoint_path"`

	MeasurementChannel string `json:"measurement_channel"`
	MeasurementType    string `json:"measurement_type"`
	MeasurementPath    string `json:"measurement_path"`

	OutputChannel string `json:"output_channel"`
	OutputType    string `json:"output_type"`
	OutputField   string `json:"output_field"`
	OutputFrame   string `json:"output_frame_identity"`

	// Rate is the cycle rate in computations per second.
	Rate int `json:"rate"`
}

// ParseConfig decodes a raw attribute map into a Config, applying defaults
// for the optional options first.
func ParseConfig(attributes map[string]interface{}) (Config, error) {
	if _, ok := attributes["kp"]; !ok {
		return Config{}, utils.NewConfigValidationFieldRequiredError("", "kp")
	}
	cfg := Config{
		Tau:       1.0,
		OutputMin: -1.0,
		OutputMax: 1.0,
		Rate:      100,
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return Config{}, errors.Wrap(err, "cannot decode controller attributes")
	}
	return cfg, nil
}

// Period returns the cycle duration, 1/Rate.
func (cfg Config) Period() time.Duration {
	return time.Duration(float64(time.Second) / float64(cfg.Rate))
}

// Gains returns the PID coefficients from the config.
func (cfg Config) Gains() Gains {
	return Gains{Kp: cfg.Kp, Ki: cfg.Ki, Kd: cfg.Kd, Tau: cfg.Tau}
}

// Bounds returns the output clamp interval from the config.
func (cfg Config) Bounds() Bounds {
	return Bounds{Min: cfg.OutputMin, Max: cfg.OutputMax}
}

// DuplicateSourceError means the setpoint and measurement sources share a
// channel and type, making inbound messages impossible to route.
type DuplicateSourceError struct {
	Channel string
	Type    string
}

func (e *DuplicateSourceError) Error() string {
	return fmt.Sprintf("setpoint and measurement share source %q with type %q; they cannot be told apart", e.Channel, e.Type)
}

// EmptyPathError means one of the extraction paths has no steps. Which is
// "setpoint" or "measurement".
type EmptyPathError struct {
	Which string
}

func (e *EmptyPathError) Error() string {
	return fmt.Sprintf("%s path must have at least one step", e.Which)
}

// OutputFieldReason distinguishes why an output field is unusable.
type OutputFieldReason int

const (
	// OutputFieldNotFound means the output type declares no such field.
	OutputFieldNotFound OutputFieldReason = iota
	// OutputFieldNotNumeric means the field exists with a non-numeric type.
	OutputFieldNotNumeric
)

// InvalidOutputFieldError means the configured output field cannot carry the
// control output.
type InvalidOutputFieldError struct {
	Type   string
	Field  string
	Reason OutputFieldReason
}

func (e *InvalidOutputFieldError) Error() string {
	if e.Reason == OutputFieldNotFound {
		return fmt.Sprintf("message type %q has no field %q", e.Type, e.Field)
	}
	return fmt.Sprintf("field %q of message type %q is not numeric", e.Field, e.Type)
}

// Validate checks the config before a controller may start. Checks run in a
// fixed order and the first failure is returned; a misconfigured controller
// must never start.
func (cfg Config) Validate(path string, schemas message.Lookup) error {
	for _, required := range []struct {
		field string
		value string
	}{
		{"setpoint_channel", cfg.SetpointChannel},
		{"setpoint_type", cfg.SetpointType},
		{"measurement_channel", cfg.MeasurementChannel},
		{"measurement_type", cfg.MeasurementType},
		{"output_channel", cfg.OutputChannel},
		{"output_type", cfg.OutputType},
		{"output_field", cfg.OutputField},
	} {
		if required.value == "" {
			return utils.NewConfigValidationFieldRequiredError(path, required.field)
		}
	}
	if cfg.Tau < 0 || cfg.Tau > 1 {
		return utils.NewConfigValidationError(path, errors.Errorf("tau must be within [0, 1], got %v", cfg.Tau))
	}
	if cfg.OutputMin > cfg.OutputMax {
		return utils.NewConfigValidationError(path, errors.Errorf("output_min %v exceeds output_max %v", cfg.OutputMin, cfg.OutputMax))
	}
	if cfg.Rate <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("rate must be a positive integer, got %d", cfg.Rate))
	}
	if cfg.SetpointChannel == cfg.MeasurementChannel && cfg.SetpointType == cfg.MeasurementType {
		return utils.NewConfigValidationError(path, &DuplicateSourceError{
			Channel: cfg.SetpointChannel,
			Type:    cfg.SetpointType,
		})
	}
	if strings.TrimSpace(cfg.SetpointPath) == "" {
		return utils.NewConfigValidationError(path, &EmptyPathError{Which: "setpoint"})
	}
	if strings.TrimSpace(cfg.MeasurementPath) == "" {
		return utils.NewConfigValidationError(path, &EmptyPathError{Which: "measurement"})
	}
	schema, ok := schemas.Lookup(cfg.OutputType)
	if !ok {
		return utils.NewConfigValidationError(path, errors.Wrapf(message.ErrUnknownType, "output type %q", cfg.OutputType))
	}
	kind, ok := schema.Fields[cfg.OutputField]
	if !ok {
		return utils.NewConfigValidationError(path, &InvalidOutputFieldError{
			Type:   cfg.OutputType,
			Field:  cfg.OutputField,
			Reason: OutputFieldNotFound,
		})
	}
	if !kind.Numeric() {
		return utils.NewConfigValidationError(path, &InvalidOutputFieldError{
			Type:   cfg.OutputType,
			Field:  cfg.OutputField,
			Reason: OutputFieldNotNumeric,
		})
	}
	return nil
}

// Source identifies where one controller input comes from and how the scalar
// is extracted from matching payloads.
type Source struct {
	Address pubsub.Address
	Type    string
	Path    message.Path
}

// Matches reports whether an inbound envelope belongs to this source. The
// extraction path plays no part; routing is by channel and type only.
func (s Source) Matches(env pubsub.Envelope) bool {
	return env.Message.Type == s.Type && env.Address.Equal(s.Address)
}

// Sink identifies where and how the control output is published.
type Sink struct {
	Address pubsub.Address
	Type    string
	Field   string
	Frame   string
}

// resolve turns the validated textual config into addresses and paths.
func (cfg Config) resolve() (setpoint, measurement Source, sink Sink, err error) {
	spAddr, err := pubsub.ParseAddress(cfg.SetpointChannel)
	if err != nil {
		return Source{}, Source{}, Sink{}, errors.Wrap(err, "setpoint_channel")
	}
	spPath, err := message.ParsePath(cfg.SetpointPath)
	if err != nil {
		return Source{}, Source{}, Sink{}, errors.Wrap(err, "setpoint_path")
	}
	measAddr, err := pubsub.ParseAddress(cfg.MeasurementChannel)
	if err != nil {
		return Source{}, Source{}, Sink{}, errors.Wrap(err, "measurement_channel")
	}
	measPath, err := message.ParsePath(cfg.MeasurementPath)
	if err != nil {
		return Source{}, Source{}, Sink{}, errors.Wrap(err, "measurement_path")
	}
	outAddr, err := pubsub.ParseAddress(cfg.OutputChannel)
	if err != nil {
		return Source{}, Source{}, Sink{}, errors.Wrap(err, "output_channel")
	}
	setpoint = Source{Address: spAddr, Type: cfg.SetpointType, Path: spPath}
	measurement = Source{Address: measAddr, Type: cfg.MeasurementType, Path: measPath}
	sink = Sink{Address: outAddr, Type: cfg.OutputType, Field: cfg.OutputField, Frame: cfg.OutputFrame}
	return setpoint, measurement, sink, nil
}
