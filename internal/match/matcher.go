// Package match scores live inventory items against abstract asset
// requirements and picks the best available consumable, or none.
package match

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/msageha/deckplan/internal/logging"
	"github.com/msageha/deckplan/internal/model"
)

// Inventory is the external collaborator providing the live inventory
// snapshot. One call may suspend; everything else here is synchronous.
type Inventory interface {
	Fetch(ctx context.Context) ([]model.InventoryItem, error)
}

// Match is a scored inventory binding.
type Match struct {
	AccessionID string
	Name        string
	Score       float64
}

// Matcher implements compatibility-scored consumable selection.
// Inventory fetches are deduplicated through singleflight and scored
// results are cached briefly; concurrent callers therefore share one
// inventory read instead of racing several.
type Matcher struct {
	inventory Inventory
	cache     *resultCache
	group     singleflight.Group
	logger    *log.Logger
	logLevel  logging.Level
}

func NewMatcher(inventory Inventory, cfg model.MatcherConfig, logger *log.Logger, level logging.Level) *Matcher {
	return &Matcher{
		inventory: inventory,
		cache:     newResultCache(cfg.CacheSize, time.Duration(cfg.CacheTTLSec)*time.Second),
		logger:    logger,
		logLevel:  level,
	}
}

// FindCompatibleConsumable returns the best-scoring available inventory
// item for the requirement, or found=false when nothing qualifies and
// the caller must fall back to manual operator assignment.
// Inventory fetch failures are deliberately swallowed and reported as
// "no match"; they are never propagated.
func (m *Matcher) FindCompatibleConsumable(ctx context.Context, req model.AssetRequirement) (Match, bool) {
	key := requirementFingerprint(req)
	if cached, ok := m.cache.Get(key); ok {
		return cached.match, cached.found
	}

	result, _, _ := m.group.Do(key, func() (interface{}, error) {
		match, found := m.findUncached(ctx, req)
		return cachedMatch{match: match, found: found}, nil
	})

	cm := result.(cachedMatch)
	m.cache.Set(key, cm)
	return cm.match, cm.found
}

func (m *Matcher) findUncached(ctx context.Context, req model.AssetRequirement) (Match, bool) {
	items, err := m.fetchInventory(ctx)
	if err != nil {
		m.log(logging.LevelWarn, "inventory_fetch_failed req=%q err=%v", req.Name, err)
		return Match{}, false
	}

	rt := req.InferredType()
	best := Match{}
	found := false
	for _, item := range items {
		if !item.Status.Assignable() {
			continue
		}
		if !typeMatches(req, rt, item) {
			continue
		}
		score := scoreCandidate(req, item)
		if score > 0 && (!found || score > best.Score) {
			best = Match{AccessionID: item.AccessionID, Name: item.Name, Score: score}
			found = true
		}
	}

	if found {
		m.log(logging.LevelDebug, "match_found req=%q item=%s score=%.2f", req.Name, best.AccessionID, best.Score)
	} else {
		m.log(logging.LevelDebug, "no_match req=%q type=%s", req.Name, rt)
	}
	return best, found
}

// fetchInventory deduplicates concurrent inventory reads: all callers
// in flight share one Fetch result.
func (m *Matcher) fetchInventory(ctx context.Context) ([]model.InventoryItem, error) {
	result, err, _ := m.group.Do("inventory_fetch", func() (interface{}, error) {
		return m.inventory.Fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]model.InventoryItem), nil
}

// typeMatches filters candidates by loose type compatibility: the
// candidate FQN's keyword-derived type must equal the requirement's
// inferred type, with bidirectional substring containment between hint
// and FQN as a last resort.
func typeMatches(req model.AssetRequirement, rt model.ResourceType, item model.InventoryItem) bool {
	if itemType, ok := model.ParseResourceType(item.FQN); ok {
		return itemType == rt
	}
	return model.LooseTypeMatch(req.TypeHint, item.FQN) || model.LooseTypeMatch(req.FQN, item.FQN)
}

// scoreCandidate averages independent factors, each in [0,1]. Capacity
// is soft: an insufficient candidate scores 0 on that factor but the
// average may still be positive, so the matcher can return a
// capacity-short item when nothing better exists. Best-available
// behavior, kept deliberately; do not turn this into a hard gate.
func scoreCandidate(req model.AssetRequirement, item model.InventoryItem) float64 {
	capacity := 0.5
	if item.CapacityUL != nil {
		if *item.CapacityUL >= req.Constraints.MinVolumeUL {
			capacity = 1.0
		} else {
			capacity = 0.0
		}
	}

	specificity := 0.5
	switch {
	case req.FQN != "" && req.FQN == item.FQN:
		specificity = 1.0
	case model.LooseTypeMatch(req.FQN, item.FQN) || model.LooseTypeMatch(req.TypeHint, item.FQN):
		specificity = 0.8
	}

	// Candidates already passed the status filter.
	availability := 1.0

	return (capacity + specificity + availability) / 3.0
}

// ClearCache drops all cached results, forcing fresh scoring on the
// next lookup. Called when the caller knows the inventory changed.
func (m *Matcher) ClearCache() {
	m.cache.Clear()
}

func requirementFingerprint(req model.AssetRequirement) string {
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (m *Matcher) log(level logging.Level, format string, args ...any) {
	if level < m.logLevel {
		return
	}
	m.logger.Printf("[%s] match: %s", level, fmt.Sprintf(format, args...))
}
