package sectional

import (
	"encoding/json"
	"fmt"

	"github.com/soundsmith/sectional/pkg/sectional/storage"
)

// sqliteStorage adapts the gorm-backed cache to the Storage interface.
type sqliteStorage struct {
	client *storage.DBClient
}

// NewSQLiteStorage opens (or creates) a sqlite-backed result cache at dbPath.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	client, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &sqliteStorage{client: client}, nil
}

func (s *sqliteStorage) GetResult(contentHash string) (*DetectionResult, error) {
	rec, err := s.client.GetAnalysisByHash(contentHash)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	var result DetectionResult
	if err := json.Unmarshal(rec.Payload, &result); err != nil {
		return nil, fmt.Errorf("decoding cached result: %w", err)
	}
	return &result, nil
}

func (s *sqliteStorage) PutResult(contentHash string, result *DetectionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return s.client.SaveAnalysis(
		contentHash,
		result.Meta.DurationSec,
		result.Meta.TempoBPM,
		result.Meta.Preset.Genre,
		len(result.Sections),
		payload,
	)
}

func (s *sqliteStorage) Close() error {
	return s.client.Close()
}
