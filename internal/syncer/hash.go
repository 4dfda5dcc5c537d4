package syncer

import (
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/construo/construo-server/internal/models"
)

// changeHash computes the change-detection hash for an aggregate payload.
// Only site configuration, events and speakers participate: edits to the
// timeline, sponsor or organizer collections alone do not trigger a
// re-render and are picked up by the next forced refresh.
func changeHash(a *models.Aggregate) string {
	h := fnv.New64a()
	enc := json.NewEncoder(h)
	_ = enc.Encode(a.SiteConfig)
	_ = enc.Encode(a.Events)
	_ = enc.Encode(a.Speakers)
	return fmt.Sprintf("%016x", h.Sum64())
}
