package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MRC-CBU/BIDS-conversion/internal/trigger"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateMetadata(); err != nil {
		return err
	}
	if err := c.validateMEG(); err != nil {
		return err
	}
	if err := c.validateAnat(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ProjectDir) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/megbids/config.toml"
		}
		return fmt.Errorf("paths.project_dir is required. Set MEGBIDS_PROJECT_DIR env var or edit %s (create with 'megbids config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateMetadata() error {
	if strings.TrimSpace(c.Metadata.EventsFile) == "" {
		return errors.New("metadata.events_file must be set")
	}
	if strings.TrimSpace(c.Metadata.SubjectsFile) == "" {
		return errors.New("metadata.subjects_file must be set")
	}
	return nil
}

func (c *Config) validateMEG() error {
	switch c.MEG.System {
	case SystemTriux, SystemVectorview:
	default:
		return fmt.Errorf("meg.system must be %q or %q, got %q", SystemTriux, SystemVectorview, c.MEG.System)
	}

	if len(c.MEG.StimChannels) == 0 {
		return errors.New("meg.stim_channels must include at least one channel")
	}
	if err := validateChannelNames("meg.stim_channels", c.MEG.StimChannels); err != nil {
		return err
	}
	if err := validateChannelNames("meg.response_channels", c.MEG.ResponseChannels); err != nil {
		return err
	}

	if len(c.MEG.ResponseChannels) > 0 {
		for _, list := range []struct {
			name     string
			channels []string
		}{
			{"meg.stim_channels", c.MEG.StimChannels},
			{"meg.response_channels", c.MEG.ResponseChannels},
		} {
			for _, ch := range list.channels {
				if ch == trigger.CombinedChannel {
					return fmt.Errorf("%s must not include the reserved combined channel %s when response channels are configured", list.name, trigger.CombinedChannel)
				}
			}
		}
		stim := make(map[string]struct{}, len(c.MEG.StimChannels))
		for _, ch := range c.MEG.StimChannels {
			stim[ch] = struct{}{}
		}
		for _, ch := range c.MEG.ResponseChannels {
			if _, dup := stim[ch]; dup {
				return fmt.Errorf("channel %s appears in both meg.stim_channels and meg.response_channels", ch)
			}
		}
	} else if len(c.MEG.StimChannels) > 1 {
		for _, ch := range c.MEG.StimChannels {
			if ch == trigger.CombinedChannel {
				return fmt.Errorf("meg.stim_channels: %s must be the only configured channel when used", trigger.CombinedChannel)
			}
		}
	}

	if c.MEG.AudioLatencySec < 0 {
		return errors.New("meg.audio_latency_sec must be >= 0")
	}
	if c.MEG.VisualLatencySec < 0 {
		return errors.New("meg.visual_latency_sec must be >= 0")
	}
	if c.MEG.LineFreq <= 0 {
		return errors.New("meg.line_freq must be positive")
	}
	return nil
}

func validateChannelNames(field string, channels []string) error {
	for _, ch := range channels {
		if !trigger.IsValidChannelName(ch) {
			return fmt.Errorf("%s: invalid channel name %q (expected STI001..STI016 or %s)", field, ch, trigger.CombinedChannel)
		}
	}
	return nil
}

func (c *Config) validateAnat() error {
	if !c.Anat.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Anat.DicomRoot) == "" {
		return errors.New("anat.dicom_root must be set when anat.enabled is true (or set MEGBIDS_DICOM_ROOT)")
	}
	return nil
}
