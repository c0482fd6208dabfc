package main

import (
	"fmt"
	"strings"
	"time"

	"set_and_wait/internal/models"
	"set_and_wait/internal/printer"
	"set_and_wait/internal/service"

	"github.com/spf13/viper"
)

const envPrefix = "SAW"

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	setDefaults(viper.GetViper())

	// SAW_PRINTER_PORT overrides printer.port, and so on
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	return viper.ReadInConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db.path", "set_and_wait.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("printer.baud", 115200)
	v.SetDefault("printer.tools", 1)
	v.SetDefault("printer.chamber", false)
	v.SetDefault("printer.ack_timeout", 10*time.Second)
	v.SetDefault("printer.sim_tick", time.Second)
	v.SetDefault("wait.poll_interval", time.Second)
}

// printerConfig reads the printer.* keys.
func printerConfig(v *viper.Viper) printer.Config {
	return printer.Config{
		Port:               v.GetString("printer.port"),
		Baud:               v.GetInt("printer.baud"),
		Tools:              v.GetInt("printer.tools"),
		Chamber:            v.GetBool("printer.chamber"),
		AckTimeout:         v.GetDuration("printer.ack_timeout"),
		AutoReportInterval: v.GetInt("printer.auto_report"),
	}
}

// heaterProfiles builds the profile registry from heaters.<class>.{residency,window,hysteresis}.
func heaterProfiles(v *viper.Viper) (*service.ProfileRegistry, error) {
	overrides := make(map[models.HeaterClass]service.ProfileOverride)
	for _, class := range models.HeaterClasses {
		prefix := "heaters." + class.String() + "."
		var o service.ProfileOverride
		if key := prefix + "residency"; v.IsSet(key) {
			d := v.GetDuration(key)
			o.Residency = &d
		}
		if key := prefix + "window"; v.IsSet(key) {
			w := v.GetFloat64(key)
			o.Window = &w
		}
		if key := prefix + "hysteresis"; v.IsSet(key) {
			h := v.GetFloat64(key)
			o.Hysteresis = &h
		}
		overrides[class] = o
	}
	profiles, err := service.NewProfileRegistry(overrides)
	if err != nil {
		return nil, fmt.Errorf("heaters config: %w", err)
	}
	return profiles, nil
}
