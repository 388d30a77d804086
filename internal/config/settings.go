package config

import (
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

var secretKeys = map[string]struct{}{
	"api.key":    {},
	"jwt.secret": {},
}

// Settings is a read-only section/key view over the loaded configuration.
type Settings struct {
	v *viper.Viper
}

// NewSettings wraps a viper instance.
func NewSettings(v *viper.Viper) *Settings {
	return &Settings{v: v}
}

// GetString returns the value of section.key or def when unset or empty.
func (s *Settings) GetString(section, key, def string) string {
	value, ok := s.Lookup(settingKey(section, key))
	if !ok || strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

// GetFloat returns section.key parsed as a float, or def when unset or malformed.
func (s *Settings) GetFloat(section, key string, def float64) float64 {
	value, ok := s.Lookup(settingKey(section, key))
	if !ok {
		return def
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return def
	}
	return parsed
}

// GetInt returns section.key parsed as an int, or def when unset or malformed.
func (s *Settings) GetInt(section, key string, def int) int {
	value, ok := s.Lookup(settingKey(section, key))
	if !ok {
		return def
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}

// Lookup resolves a dotted key such as "api.temperature".
func (s *Settings) Lookup(key string) (string, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	if s == nil || s.v == nil || key == "" || !s.v.IsSet(key) {
		return "", false
	}
	return s.v.GetString(key), true
}

// Keys lists every known dotted key in sorted order.
func (s *Settings) Keys() []string {
	if s == nil || s.v == nil {
		return nil
	}
	keys := s.v.AllKeys()
	sort.Strings(keys)
	return keys
}

// Display returns the value of key for printing, masking credentials.
func (s *Settings) Display(key string) string {
	value, _ := s.Lookup(key)
	if _, secret := secretKeys[strings.ToLower(key)]; secret && value != "" {
		if len(value) <= 4 {
			return "****"
		}
		return "****" + value[len(value)-4:]
	}
	return value
}

func settingKey(section, key string) string {
	return strings.ToLower(strings.TrimSpace(section)) + "." + strings.ToLower(strings.TrimSpace(key))
}
