package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"landadmin/internal/landtransfer/models"
	"landadmin/internal/policy"
	id "landadmin/pkg/domain"
)

const (
	namespace      = "land_transfer:"
	ListPrefix     = namespace + "list:"
	UserPrefix     = namespace + "user:"
	HistoryPrefix  = namespace + "history:"
	DistrictPrefix = namespace + "district:"
	StatsPrefix    = namespace + "stats:"
)

func TransferKey(transferID id.TransferID) string { return namespace + transferID.String() }
func UserKey(userID id.UserID) string             { return UserPrefix + userID.String() }
func HistoryKey(landID id.LandID) string          { return HistoryPrefix + landID.String() }
func DistrictKey(district string) string          { return DistrictPrefix + district }
func StatsKey(scope policy.Scope) string          { return StatsPrefix + scope.Key() }

// ListKey hashes the actor scope and filter so every distinct page has its
// own entry.
func ListKey(scope policy.Scope, filter models.ListFilter) string {
	raw := fmt.Sprintf("%s|%s|%s|%d|%d", scope.Key(), filter.Status, filter.District, filter.Page, filter.Limit)
	sum := sha256.Sum256([]byte(raw))
	return ListPrefix + hex.EncodeToString(sum[:8])
}

// Family returns the key family used as a metrics label.
func Family(key string) string {
	for _, p := range []struct{ prefix, family string }{
		{ListPrefix, "list"},
		{UserPrefix, "user"},
		{HistoryPrefix, "history"},
		{DistrictPrefix, "district"},
		{StatsPrefix, "stats"},
	} {
		if strings.HasPrefix(key, p.prefix) {
			return p.family
		}
	}
	return "transfer"
}

// Set is the group of entries a transfer change makes stale. Keys are
// deleted directly; Prefixes are removed by scanning.
type Set struct {
	Keys     []string
	Prefixes []string
}

// InvalidationSet computes the stale entries for a change to t: the transfer
// itself, both parties' user lists, the parcel history, the district list
// and every list and statistics page.
func InvalidationSet(t *models.Transfer) Set {
	keys := []string{
		TransferKey(t.ID),
		UserKey(t.CurrentOwnerID),
		UserKey(t.NewOwnerID),
		HistoryKey(t.LandID),
	}
	if t.District != "" {
		keys = append(keys, DistrictKey(t.District))
	}
	return Set{
		Keys:     slices.Compact(keys),
		Prefixes: []string{ListPrefix, StatsPrefix},
	}
}
