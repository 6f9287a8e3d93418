package config

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// Option is one config value, settable from the command line, the
// environment and the config file.
type Option struct {
	// Name is the command line flag name. Empty options have no flag.
	Name string
	// EnvVar is the environment variable name. Empty options are not read
	// from the environment.
	EnvVar string
	// TomlKey overrides the config file key, which defaults to EnvVar. "-"
	// keeps the option out of the file.
	TomlKey      string
	Usage        string
	DefaultValue interface{}
	// ConfigKey points at the Config field the option sets.
	ConfigKey interface{}

	CustomSetValue func(option *Option, i interface{}) error
	MarshalTOML    func(option *Option) (interface{}, error)
	Validate       func(option *Option) error
}

func (o *Option) getTomlKey() (string, bool) {
	if o.TomlKey == "-" {
		return "", false
	}
	if o.TomlKey != "" {
		return o.TomlKey, true
	}
	if o.EnvVar != "" {
		return o.EnvVar, true
	}
	return "", false
}

func (o *Option) setValue(i interface{}) error {
	if o.CustomSetValue != nil {
		return o.CustomSetValue(o, i)
	}
	var err error
	switch target := o.ConfigKey.(type) {
	case *bool:
		*target, err = parseBool(i)
	case *string:
		*target, err = parseString(i)
	case *uint:
		var v uint64
		v, err = parseUint(i)
		*target = uint(v)
	case *time.Duration:
		*target, err = parseDuration(i)
	case *logrus.Level:
		var s string
		if s, err = parseString(i); err == nil {
			*target, err = logrus.ParseLevel(s)
		}
	case *LogFormat:
		var s string
		if s, err = parseString(i); err == nil {
			err = target.UnmarshalText([]byte(s))
		}
	default:
		return fmt.Errorf("option %s has unsupported type %T", o.displayName(), o.ConfigKey)
	}
	if err != nil {
		return fmt.Errorf("could not parse %s: %w", o.displayName(), err)
	}
	return nil
}

func (o *Option) marshalTOML() (interface{}, error) {
	if o.MarshalTOML != nil {
		return o.MarshalTOML(o)
	}
	switch v := o.ConfigKey.(type) {
	case *bool:
		return *v, nil
	case *string:
		return *v, nil
	case *uint:
		return int64(*v), nil
	case *time.Duration:
		return v.String(), nil
	case *logrus.Level:
		return v.String(), nil
	case *LogFormat:
		return v.String(), nil
	default:
		return nil, fmt.Errorf("option %s has unsupported type %T", o.displayName(), o.ConfigKey)
	}
}

func (o *Option) addFlag(flags *pflag.FlagSet) error {
	if o.Name == "" {
		return nil
	}
	switch v := o.ConfigKey.(type) {
	case *bool:
		def, _ := o.DefaultValue.(bool)
		flags.Bool(o.Name, def, o.Usage)
	case *uint:
		def, _ := o.DefaultValue.(uint)
		flags.Uint(o.Name, def, o.Usage)
	case *time.Duration:
		def, _ := o.DefaultValue.(time.Duration)
		flags.Duration(o.Name, def, o.Usage)
	case *string, *logrus.Level, *LogFormat:
		flags.String(o.Name, fmt.Sprint(defaultOrEmpty(o.DefaultValue)), o.Usage)
	default:
		return fmt.Errorf("cannot add flag for option %s of type %T", o.Name, v)
	}
	return nil
}

// flagValue reads the parsed value of the option's flag.
func (o *Option) flagValue(flags *pflag.FlagSet) (interface{}, error) {
	switch o.ConfigKey.(type) {
	case *bool:
		return flags.GetBool(o.Name)
	case *uint:
		v, err := flags.GetUint(o.Name)
		return uint64(v), err
	case *time.Duration:
		return flags.GetDuration(o.Name)
	default:
		return flags.GetString(o.Name)
	}
}

func (o *Option) displayName() string {
	if o.Name != "" {
		return o.Name
	}
	return o.EnvVar
}

func defaultOrEmpty(v interface{}) interface{} {
	if v == nil {
		return ""
	}
	return v
}

func parseBool(i interface{}) (bool, error) {
	switch v := i.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("%v is not a boolean", i)
	}
}

func parseString(i interface{}) (string, error) {
	switch v := i.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("%v is not a string", i)
	}
}

func parseUint(i interface{}) (uint64, error) {
	switch v := i.(type) {
	case string:
		return strconv.ParseUint(v, 10, 64)
	case uint:
		return uint64(v), nil
	case uint64:
		return v, nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("%d is negative", v)
		}
		return uint64(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("%d is negative", v)
		}
		return uint64(v), nil
	case float64:
		if v < 0 || v > math.MaxInt64 || v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not an unsigned integer", v)
		}
		return uint64(v), nil
	default:
		return 0, fmt.Errorf("%v is not an unsigned integer", i)
	}
}

func parseDuration(i interface{}) (time.Duration, error) {
	switch v := i.(type) {
	case time.Duration:
		return v, nil
	case string:
		return time.ParseDuration(v)
	case int64:
		// bare numbers are seconds
		return time.Duration(v) * time.Second, nil
	default:
		return 0, fmt.Errorf("%v is not a duration", i)
	}
}

var errNotPointer = errors.New("config key is not a pointer")

// zeroValue resets the field behind option.
func (o *Option) zeroValue() error {
	v := reflect.ValueOf(o.ConfigKey)
	if v.Kind() != reflect.Ptr {
		return errNotPointer
	}
	v.Elem().Set(reflect.Zero(v.Elem().Type()))
	return nil
}
