package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joss/xpost/internal/domain"
	"github.com/joss/xpost/internal/store"
)

// DraftKey is the settings-store key holding the saved draft.
const DraftKey = "popupState"

// DraftTTL is how long a saved draft is restored for.
const DraftTTL = 5 * time.Minute

// Draft is the popup state carried between runs.
type Draft struct {
	ID             string      `json:"id"`
	Mode           domain.Mode `json:"currentMode"`
	Input          string      `json:"inputContent"`
	Generated      string      `json:"generatedContent"`
	LastStatus     string      `json:"lastStatus"`
	LastStatusType StatusKind  `json:"lastStatusType"`
	Timestamp      int64       `json:"timestamp"` // unix millis
}

// SavedAt returns when the draft was last written.
func (d *Draft) SavedAt() time.Time {
	return time.UnixMilli(d.Timestamp)
}

// DraftStore persists the single draft in a KV store.
type DraftStore struct {
	kv  store.KV
	ttl time.Duration
	now func() time.Time
}

// NewDraftStore creates a draft store over kv.
func NewDraftStore(kv store.KV) *DraftStore {
	return &DraftStore{kv: kv, ttl: DraftTTL, now: time.Now}
}

// Load returns the saved draft if one exists and is younger than DraftTTL.
func (s *DraftStore) Load(ctx context.Context) (*Draft, bool, error) {
	raw, err := store.GetOne(ctx, s.kv, DraftKey)
	if store.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var d Draft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		// A corrupt draft is discarded rather than blocking the popup.
		return nil, false, nil
	}
	if s.now().Sub(d.SavedAt()) >= s.ttl {
		return nil, false, nil
	}
	return &d, true, nil
}

// Save stamps d with the current time and stores it. An ID is assigned on
// first save.
func (s *DraftStore) Save(ctx context.Context, d Draft) (Draft, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Timestamp = s.now().UnixMilli()
	data, err := json.Marshal(d)
	if err != nil {
		return d, fmt.Errorf("marshal draft: %w", err)
	}
	if err := s.kv.Set(ctx, map[string]string{DraftKey: string(data)}); err != nil {
		return d, fmt.Errorf("save draft: %w", err)
	}
	return d, nil
}

// Update loads the live draft (or starts a new one), applies fn and saves.
func (s *DraftStore) Update(ctx context.Context, fn func(*Draft)) (Draft, error) {
	d, ok, err := s.Load(ctx)
	if err != nil {
		return Draft{}, err
	}
	if !ok {
		d = &Draft{Mode: domain.ModeNewPost}
	}
	fn(d)
	return s.Save(ctx, *d)
}

// Clear removes the saved draft.
func (s *DraftStore) Clear(ctx context.Context) error {
	return s.kv.Remove(ctx, DraftKey)
}
