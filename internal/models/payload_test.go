package models

import (
	"encoding/json"
	"testing"
)

func TestDecodePayloadCampaign(t *testing.T) {
	raw := json.RawMessage(`{"name":"spring push","status":"live","budget":500,"platforms":["meta","google"]}`)

	payload, err := DecodePayload(EntityCampaign, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	campaign, ok := payload.(CampaignPayload)
	if !ok {
		t.Fatalf("expected CampaignPayload, got %T", payload)
	}
	if campaign.Status != "live" || campaign.Budget != 500 {
		t.Errorf("unexpected payload %+v", campaign)
	}
	if len(campaign.Platforms) != 2 {
		t.Errorf("expected 2 platforms, got %v", campaign.Platforms)
	}
}

func TestDecodePayloadFilter(t *testing.T) {
	raw := json.RawMessage(`{"name":"engineers","field":"title","operator":"contains","value":"engineer"}`)

	payload, err := DecodePayload(EntityFilter, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	filter, ok := payload.(FilterPayload)
	if !ok {
		t.Fatalf("expected FilterPayload, got %T", payload)
	}
	if filter.Operator != "contains" {
		t.Errorf("unexpected payload %+v", filter)
	}
}

func TestDecodePayloadUnknownType(t *testing.T) {
	if _, err := DecodePayload("segment", json.RawMessage(`{}`)); err == nil {
		t.Error("expected error for unknown entity type")
	}
}

func TestEncodePayloadRoundTrip(t *testing.T) {
	raw, err := EncodePayload(CampaignPayload{Name: "spring push", Budget: 250})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodePayload(EntityCampaign, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.(CampaignPayload).Budget != 250 {
		t.Errorf("unexpected round trip %+v", decoded)
	}
}
