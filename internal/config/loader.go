package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
// Without any campaigns from the file or --path, the built-in campaign set is used.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(rest, " "))
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	file, err := newFileSettings("", settings)
	if err != nil {
		return nil, err
	}
	resolveCampaigns(cfg, file.has("count") || flagSet.Changed("count"))

	return cfg, nil
}

// resolveCampaigns fills inherited campaign values from the global settings.
// The built-in campaigns keep their own counts unless a global count was
// given explicitly.
func resolveCampaigns(cfg *Config, countExplicit bool) {
	if len(cfg.Campaigns) == 0 && !cfg.Discover {
		cfg.Campaigns = DefaultCampaigns(cfg.Concurrency)
		if countExplicit {
			for i := range cfg.Campaigns {
				cfg.Campaigns[i].Count = cfg.Count
			}
		}
		return
	}
	for i := range cfg.Campaigns {
		c := &cfg.Campaigns[i]
		if !c.countSet {
			c.Count = cfg.Count
		}
		if !c.concurrencySet {
			c.Concurrency = cfg.Concurrency
		}
	}
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}
	file, err := newFileSettings("", settings)
	if err != nil {
		return err
	}

	if err := file.text("base_url", &cfg.BaseURL); err != nil {
		return err
	}
	for key, dst := range map[string]*int{
		"count":       &cfg.Count,
		"concurrency": &cfg.Concurrency,
		"rate":        &cfg.Rate,
	} {
		if _, err := file.whole(key, dst); err != nil {
			return err
		}
	}
	if err := file.duration("timeout", &cfg.Timeout); err != nil {
		return err
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"json_output", &cfg.JSONOutput},
		{"yaml_output", &cfg.YAMLOutput},
		{"no_color", &cfg.NoColor},
		{"log_errors", &cfg.LogErrors},
		{"progress", &cfg.Progress},
		{"dashboard", &cfg.Dashboard},
		{"discover", &cfg.Discover},
	}
	for _, b := range bools {
		if err := file.flag(b.key, b.dst); err != nil {
			return err
		}
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"html_output", &cfg.HTMLOutput},
		{"output_file", &cfg.OutputFile},
		{"history_db", &cfg.HistoryDB},
	}
	for _, s := range strs {
		if err := file.text(s.key, s.dst); err != nil {
			return err
		}
	}

	if err := file.list("thresholds", &cfg.Thresholds); err != nil {
		return err
	}

	entries, ok, err := file.entries("campaigns")
	if err != nil {
		return err
	}
	if ok {
		cfg.Campaigns = make([]Campaign, 0, len(entries))
		for _, entry := range entries {
			campaign, err := buildCampaign(entry)
			if err != nil {
				return err
			}
			cfg.Campaigns = append(cfg.Campaigns, campaign)
		}
	}

	tracing, ok, err := file.section("tracing")
	if err != nil {
		return err
	}
	if ok {
		tc, err := parseTracing(tracing, cfg.Tracing)
		if err != nil {
			return err
		}
		cfg.Tracing = tc
	}

	return nil
}

// buildCampaign reads one campaigns entry. Count and concurrency remember
// whether they were given so that only missing values inherit the globals.
func buildCampaign(entry fileSettings) (Campaign, error) {
	var campaign Campaign
	if err := entry.text("name", &campaign.Name); err != nil {
		return Campaign{}, err
	}
	if err := entry.text("path", &campaign.Path); err != nil {
		return Campaign{}, err
	}
	set, err := entry.whole("count", &campaign.Count)
	if err != nil {
		return Campaign{}, err
	}
	campaign.countSet = set
	if set, err = entry.whole("concurrency", &campaign.Concurrency); err != nil {
		return Campaign{}, err
	}
	campaign.concurrencySet = set
	return campaign, nil
}

func parseTracing(section fileSettings, base TracingConfig) (TracingConfig, error) {
	tc := base
	for key, dst := range map[string]*string{
		"endpoint":     &tc.Endpoint,
		"protocol":     &tc.Protocol,
		"service_name": &tc.ServiceName,
	} {
		if err := section.text(key, dst); err != nil {
			return TracingConfig{}, err
		}
	}
	if err := section.ratio("sample_rate", &tc.SampleRate); err != nil {
		return TracingConfig{}, err
	}
	if err := section.flag("insecure", &tc.Insecure); err != nil {
		return TracingConfig{}, err
	}
	return tc, nil
}
