package ingest

import (
	"encoding/json"
	"os"

	"threadmail/models"
	"threadmail/utils"
)

// LoadBatchFile reads pre-extracted message records from a JSON file. This
// is the handoff format of an external header extractor: an array of record
// objects with message_id, in_reply_to, references, subject_raw, timestamp
// and source_locator fields, any of which may be missing.
func LoadBatchFile(path string) ([]*models.MessageRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.IngestError("cannot read batch file", err).WithContext("path", path)
	}

	var records []*models.MessageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, utils.IngestError("cannot parse batch file", err).WithContext("path", path)
	}

	return records, nil
}
