// Package models provides data model definitions for the sync core.
package models

import (
	"encoding/json"
	"fmt"
)

// ChangePayload is the typed form of a pending change's data, keyed by
// entity type. The store keeps payloads as raw JSON; callers that need
// strong typing decode through DecodePayload.
type ChangePayload interface {
	PayloadType() EntityType
}

// CampaignPayload carries the mutable fields of an ad campaign.
type CampaignPayload struct {
	Name      string   `json:"name,omitempty"`
	Status    string   `json:"status,omitempty"` // draft, live, paused, archived
	Budget    float64  `json:"budget,omitempty"`
	Platforms []string `json:"platforms,omitempty"` // meta, google, x
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
	SegmentID string   `json:"segment_id,omitempty"`
}

// PayloadType implements ChangePayload.
func (CampaignPayload) PayloadType() EntityType {
	return EntityCampaign
}

// FilterPayload carries the mutable fields of an audience filter.
type FilterPayload struct {
	Name     string                 `json:"name,omitempty"`
	Field    string                 `json:"field,omitempty"`
	Operator string                 `json:"operator,omitempty"`
	Value    string                 `json:"value,omitempty"`
	Criteria map[string]interface{} `json:"criteria,omitempty"`
}

// PayloadType implements ChangePayload.
func (FilterPayload) PayloadType() EntityType {
	return EntityFilter
}

// DecodePayload decodes raw change data into the typed variant for the
// given entity type.
func DecodePayload(entityType EntityType, raw json.RawMessage) (ChangePayload, error) {
	switch entityType {
	case EntityCampaign:
		var p CampaignPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode campaign payload: %w", err)
		}
		return p, nil
	case EntityFilter:
		var p FilterPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode filter payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
}

// EncodePayload marshals a typed payload back to raw JSON.
func EncodePayload(p ChangePayload) (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.PayloadType(), err)
	}
	return data, nil
}
