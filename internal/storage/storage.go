// Package storage persists per-guild voice settings so that self-deaf,
// self-mute and bitrate choices survive restarts.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/keshon/datastore"
)

type Storage struct {
	ds *datastore.DataStore
}

// VoiceSettings are the durable per-guild voice preferences. Bitrate 0
// means "automatic".
type VoiceSettings struct {
	SelfDeaf bool   `json:"self_deaf"`
	SelfMute bool   `json:"self_mute"`
	Bitrate  uint32 `json:"bitrate"`
}

// Record is everything stored per guild.
type Record struct {
	Voice VoiceSettings `json:"voice"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// Helper function to get or create a Record for a guild
func (s *Storage) getOrCreateGuildRecord(guildID string) (*Record, error) {
	data, exists := s.ds.Get(guildID)
	if !exists {
		newRecord := &Record{}
		s.ds.Add(guildID, newRecord)
		return newRecord, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling data: %w", err)
	}

	var record Record
	err = json.Unmarshal(jsonData, &record)
	if err != nil {
		return nil, fmt.Errorf("error unmarshalling to *Record: %w", err)
	}

	return &record, nil
}

// SetVoiceSettings stores the guild's voice preferences.
func (s *Storage) SetVoiceSettings(guildID string, settings VoiceSettings) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	record.Voice = settings
	s.ds.Add(guildID, record)
	return nil
}

// GetVoiceSettings fetches the guild's voice preferences, zero-valued
// when none were ever stored.
func (s *Storage) GetVoiceSettings(guildID string) (VoiceSettings, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return VoiceSettings{}, err
	}
	return record.Voice, nil
}
