// Package config implements the Config Store: a single consolidated JSON
// document parsed into four sections (GeneralSettings, PhoneClient,
// PCClient, TransformationEngine), plus a file watcher that re-parses on
// change and announces ConfigChanged over the event bus while retaining the
// last-good parsed view on a malformed document.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/kestrel-labs/facebridge/internal/desktopclient"
	"github.com/kestrel-labs/facebridge/internal/engine"
	"github.com/kestrel-labs/facebridge/internal/mobileclient"
)

// Document is the top-level shape of the config file, exactly spec.md §6's
// four top-level keys.
type Document struct {
	GeneralSettings      GeneralSettings      `mapstructure:"GeneralSettings"`
	PhoneClient          PhoneClient          `mapstructure:"PhoneClient"`
	PCClient             PCClient             `mapstructure:"PCClient"`
	TransformationEngine TransformationEngine `mapstructure:"TransformationEngine"`
}

// GeneralSettings holds settings not owned by any single component.
type GeneralSettings struct {
	LogLevel  string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warning error"`
	RulesFile string `mapstructure:"rules_file" validate:"required"`
}

// PhoneClient mirrors mobileclient.Config's tunables in their config-file
// names, per spec.md §4.C.
type PhoneClient struct {
	LocalPort              int     `mapstructure:"local_port" validate:"required,min=1,max=65535"`
	ReceiveTimeoutMs       int     `mapstructure:"receive_timeout_ms" validate:"required,min=1"`
	IPhoneIP               string  `mapstructure:"iphone_ip" validate:"required,ip"`
	IPhonePort             int     `mapstructure:"iphone_port" validate:"required,min=1,max=65535"`
	RequestIntervalSeconds float64 `mapstructure:"request_interval_seconds" validate:"gt=0"`
	SendForSeconds         float64 `mapstructure:"send_for_seconds" validate:"gt=0"`
}

// PCClient mirrors desktopclient.Config's tunables, per spec.md §4.D.
type PCClient struct {
	Host                string `mapstructure:"host" validate:"required"`
	Port                int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	ConnectionTimeoutMs int    `mapstructure:"connection_timeout_ms" validate:"required,min=1"`
	PluginName          string `mapstructure:"plugin_name" validate:"required"`
	PluginDeveloper     string `mapstructure:"plugin_developer" validate:"required"`
	TokenFilePath       string `mapstructure:"token_file_path" validate:"required"`
	DiscoveryPort       int    `mapstructure:"discovery_port" validate:"required,min=1,max=65535"`
	ProductMarker       string `mapstructure:"product_marker" validate:"required"`
}

// TransformationEngine mirrors engine.Config's tunables, per spec.md §4.B.
type TransformationEngine struct {
	MaxEvaluationIterations int `mapstructure:"max_evaluation_iterations" validate:"gt=0"`
	LUTCacheSize            int `mapstructure:"lut_cache_size" validate:"gt=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GeneralSettings.log_level", "info")
	v.SetDefault("GeneralSettings.rules_file", "rules.json")

	v.SetDefault("PhoneClient.local_port", 21412)
	v.SetDefault("PhoneClient.receive_timeout_ms", 500)
	v.SetDefault("PhoneClient.iphone_port", 21412)
	v.SetDefault("PhoneClient.request_interval_seconds", 5.0)
	v.SetDefault("PhoneClient.send_for_seconds", 10.0)

	v.SetDefault("PCClient.host", "127.0.0.1")
	v.SetDefault("PCClient.connection_timeout_ms", 3000)
	v.SetDefault("PCClient.discovery_port", 47779)
	v.SetDefault("PCClient.product_marker", "VTubeStudio")

	v.SetDefault("TransformationEngine.max_evaluation_iterations", 8)
	v.SetDefault("TransformationEngine.lut_cache_size", 64)
}

// Load reads the config document from path (JSON, per spec.md §6),
// layering defaults and unmarshaling into a Document, then validates it.
// Grounded on the teacher's LoadConfig/setDefaults idiom in spec and shape,
// retargeted at this system's four sections and JSON (not YAML) wire
// format.
func Load(path string) (*Document, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var doc Document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(&doc); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &doc, nil
}

var validate = validator.New()

// Validate runs struct-tag validation over every section.
func Validate(doc *Document) error {
	if err := validate.Struct(doc); err != nil {
		return err
	}
	return nil
}

// MobileClientConfig projects the PhoneClient section into
// mobileclient.Config.
func (d *Document) MobileClientConfig() mobileclient.Config {
	p := d.PhoneClient
	return mobileclient.Config{
		LocalPort:              p.LocalPort,
		ReceiveTimeoutMs:       p.ReceiveTimeoutMs,
		IPhoneIP:               p.IPhoneIP,
		IPhonePort:             p.IPhonePort,
		RequestIntervalSeconds: p.RequestIntervalSeconds,
		SendForSeconds:         p.SendForSeconds,
	}
}

// DesktopClientConfig projects the PCClient section into
// desktopclient.Config.
func (d *Document) DesktopClientConfig() desktopclient.Config {
	p := d.PCClient
	return desktopclient.Config{
		PluginName:      p.PluginName,
		PluginDeveloper: p.PluginDeveloper,
		Host:            p.Host,
		Port:            p.Port,
		DiscoveryPort:   p.DiscoveryPort,
		DiscoveryMarker: p.ProductMarker,
		DiscoveryWait:   time.Duration(p.ConnectionTimeoutMs) * time.Millisecond,
		TokenFilePath:   p.TokenFilePath,
	}
}

// EngineConfig projects the TransformationEngine section into
// engine.Config.
func (d *Document) EngineConfig() engine.Config {
	t := d.TransformationEngine
	return engine.Config{
		MaxEvaluationIterations: t.MaxEvaluationIterations,
		LUTCacheSize:            t.LUTCacheSize,
	}
}
