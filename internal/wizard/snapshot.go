package wizard

import (
	"encoding/json"

	"github.com/evermore-app/evermore/internal/model"
	"github.com/evermore-app/evermore/internal/util"
)

// saveSnapshot is the serialized form compared across persistence
// attempts to detect no-op saves. It covers content and progress:
// moving between steps changes the snapshot even when no field did.
type saveSnapshot struct {
	Content  model.Content  `json:"content"`
	Progress model.Progress `json:"progress"`
}

// snapshotHash returns the content hash of the canonical snapshot
// serialization. Step sets marshal as sorted arrays, so equal states
// always hash equal.
func snapshotHash(content model.Content, progress model.Progress) string {
	raw, err := json.Marshal(saveSnapshot{Content: content, Progress: progress})
	if err != nil {
		// Draft content is plain data; this only fires on a programming error.
		wizardLogger.Error().Err(err).Msg("Error serializing draft snapshot")
		return ""
	}
	return util.ContentHash(raw)
}
