// Package endpoints loads the URL templates for every upstream operation.
package endpoints

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppIDPlaceholder is substituted with an item id by Expand.
const AppIDPlaceholder = "{appid}"

// SteamEndpoints covers the primary catalog API.
type SteamEndpoints struct {
	AppList                string `yaml:"app_list"`
	AppDetails             string `yaml:"app_details"`
	Reviews                string `yaml:"reviews"`
	AchievementSchema      string `yaml:"achievement_schema"`
	AchievementPercentages string `yaml:"achievement_percentages"`
}

// SteamSpyEndpoints covers the secondary aggregator API.
type SteamSpyEndpoints struct {
	AppDetails string `yaml:"app_details"`
}

// TwitchEndpoints covers the token exchange for IGDB.
type TwitchEndpoints struct {
	Token string `yaml:"token"`
}

// IGDBEndpoints covers the time-to-complete API.
type IGDBEndpoints struct {
	Games      string `yaml:"games"`
	TimeToBeat string `yaml:"time_to_beat"`
}

// Registry maps {provider}.{operation} to URL templates.
type Registry struct {
	Steam    SteamEndpoints    `yaml:"steam"`
	SteamSpy SteamSpyEndpoints `yaml:"steamspy"`
	Twitch   TwitchEndpoints   `yaml:"twitch"`
	IGDB     IGDBEndpoints     `yaml:"igdb"`
}

// Load reads and validates the registry file at path.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("endpoints file path is required")
	}
	raw, err := os.ReadFile(path) // #nosec G304 -- operator supplied path.
	if err != nil {
		return nil, fmt.Errorf("read endpoints file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a registry document. Unknown keys are rejected.
func Parse(raw []byte) (*Registry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var reg Registry
	if err := dec.Decode(&reg); err != nil {
		return nil, fmt.Errorf("parse endpoints file: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *Registry) entries() []struct{ key, value string } {
	return []struct{ key, value string }{
		{"steam.app_list", r.Steam.AppList},
		{"steam.app_details", r.Steam.AppDetails},
		{"steam.reviews", r.Steam.Reviews},
		{"steam.achievement_schema", r.Steam.AchievementSchema},
		{"steam.achievement_percentages", r.Steam.AchievementPercentages},
		{"steamspy.app_details", r.SteamSpy.AppDetails},
		{"twitch.token", r.Twitch.Token},
		{"igdb.games", r.IGDB.Games},
		{"igdb.time_to_beat", r.IGDB.TimeToBeat},
	}
}

// Validate requires every entry to expand into an absolute http(s) URL.
func (r *Registry) Validate() error {
	for _, e := range r.entries() {
		if strings.TrimSpace(e.value) == "" {
			return fmt.Errorf("endpoint %s is required", e.key)
		}
		u, err := url.Parse(Expand(e.value, 0))
		if err != nil {
			return fmt.Errorf("endpoint %s: %w", e.key, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("endpoint %s must be an absolute http(s) url, got %q", e.key, e.value)
		}
	}
	return nil
}

// Lookup returns the template for a dotted {provider}.{operation} key.
func (r *Registry) Lookup(key string) (string, bool) {
	for _, e := range r.entries() {
		if e.key == key {
			return e.value, true
		}
	}
	return "", false
}

// Expand substitutes the item id into a template.
func Expand(template string, id int64) string {
	return strings.ReplaceAll(template, AppIDPlaceholder, strconv.FormatInt(id, 10))
}
