// Package engine implements the connection state machine that drives the
// dual-mode HTTP/1.x and HTTP/2 protocol engine: mode negotiation, frame
// dispatch, the write-side API, and the observer callback surface.
package engine

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/net/http2"

	"github.com/mardukas/h2engine/pkg/constants"
	"github.com/mardukas/h2engine/pkg/frame"
)

// Settings is the six-field HTTP/2 SETTINGS record, positionally mapped to
// setting identifiers 1..6.
type Settings struct {
	HeaderTableSize      uint32
	EnablePush           uint32 // 0 or 1
	MaxConcurrentStreams uint32 // Unlimited sentinel means "no cap"
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32 // Unlimited sentinel means "no cap"
}

// Unlimited is the sentinel used for settings fields with no protocol-level
// cap (max_concurrent_streams, max_header_list_size).
const Unlimited = 0xFFFFFFFF

// StandardSettings is the HTTP/2 protocol default vector.
func StandardSettings() Settings {
	return Settings{
		HeaderTableSize:      constants.DefaultHeaderTableSize,
		EnablePush:           1,
		MaxConcurrentStreams: Unlimited,
		InitialWindowSize:    constants.DefaultInitialWindowSize,
		MaxFrameSize:         constants.DefaultMaxFrameSize,
		MaxHeaderListSize:    Unlimited,
	}
}

// ConservativeSettings is what an endpoint assumes about its peer before
// that peer's first SETTINGS frame arrives.
func ConservativeSettings() Settings {
	s := StandardSettings()
	s.MaxConcurrentStreams = 100
	return s
}

// InitialSettings is what this endpoint advertises to the peer on
// connection start, absent any user override via set_config.
func InitialSettings() Settings {
	s := StandardSettings()
	s.MaxConcurrentStreams = 1024
	return s
}

// Validate checks a Settings record against RFC 7540 §6.5.2, collecting
// every violation rather than stopping at the first.
func (s Settings) Validate() error {
	var result *multierror.Error
	if s.EnablePush != 0 && s.EnablePush != 1 {
		result = multierror.Append(result, fmt.Errorf("enable_push must be 0 or 1, got %d", s.EnablePush))
	}
	if s.MaxFrameSize < constants.MinMaxFrameSize || s.MaxFrameSize > constants.MaxMaxFrameSize {
		result = multierror.Append(result, fmt.Errorf("max_frame_size must be between %d and %d, got %d",
			constants.MinMaxFrameSize, constants.MaxMaxFrameSize, s.MaxFrameSize))
	}
	if s.InitialWindowSize > constants.MaxWindowSize {
		result = multierror.Append(result, fmt.Errorf("initial_window_size must not exceed %d, got %d",
			constants.MaxWindowSize, s.InitialWindowSize))
	}
	if result != nil {
		return result.ErrorOrNil()
	}
	return nil
}

// fields returns all six of s's values in ascending SETTINGS-identifier
// order (index i holds the value for identifier i+1).
func (s Settings) fields() [6]uint32 {
	return [6]uint32{
		s.HeaderTableSize,
		s.EnablePush,
		s.MaxConcurrentStreams,
		s.InitialWindowSize,
		s.MaxFrameSize,
		s.MaxHeaderListSize,
	}
}

// Delta returns the subset of ids (1..6) whose value differs between prev
// and s, for set_config's "only changed fields" SETTINGS emission.
func (s Settings) Delta(prev Settings) []uint16 {
	a, b := prev.fields(), s.fields()
	var ids []uint16
	for i := 0; i < 6; i++ {
		if a[i] != b[i] {
			ids = append(ids, uint16(i+1))
		}
	}
	return ids
}

// entries returns every field of s as wire SettingEntry pairs, for an
// initial full SETTINGS frame.
func (s Settings) entries() []frame.SettingEntry {
	f := s.fields()
	out := make([]frame.SettingEntry, 6)
	for i := range f {
		out[i] = frame.SettingEntry{ID: http2.SettingID(i + 1), Value: f[i]}
	}
	return out
}

// deltaEntries returns only the fields that differ between prev and s, for
// a set_config-triggered SETTINGS frame that signals just the changes.
func (s Settings) deltaEntries(prev Settings) []frame.SettingEntry {
	ids := s.Delta(prev)
	f := s.fields()
	out := make([]frame.SettingEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, frame.SettingEntry{ID: http2.SettingID(id), Value: f[id-1]})
	}
	return out
}

// applyEntry applies one decoded SETTINGS entry to s, ignoring unknown ids.
func (s *Settings) applyEntry(e frame.SettingEntry) {
	switch e.ID {
	case http2.SettingHeaderTableSize:
		s.HeaderTableSize = e.Value
	case http2.SettingEnablePush:
		s.EnablePush = e.Value
	case http2.SettingMaxConcurrentStreams:
		s.MaxConcurrentStreams = e.Value
	case http2.SettingInitialWindowSize:
		s.InitialWindowSize = e.Value
	case http2.SettingMaxFrameSize:
		s.MaxFrameSize = e.Value
	case http2.SettingMaxHeaderListSize:
		s.MaxHeaderListSize = e.Value
	}
}
