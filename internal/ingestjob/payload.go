// Package ingestjob defines the webhook job payload KotaDB accepts to queue
// a repository ingestion, and the settings-merge rule that lets a per-job
// request override only the settings it names while leaving the rest of a
// repository's configured defaults untouched.
package ingestjob

import "encoding/json"

// Payload is a single ingestion request, as delivered by a webhook (GitHub,
// GitLab, or a direct API call). Every field but GitURL is optional —
// Provider/Branch/Ref default at the ingester, and Settings/Commits/Changes
// are passed through opaquely since their shape is caller-defined.
type Payload struct {
	GitURL          string          `json:"git_url"`
	Provider        string          `json:"provider,omitempty"`
	Branch          string          `json:"branch,omitempty"`
	Ref             string          `json:"ref,omitempty"`
	Settings        json.RawMessage `json:"settings,omitempty"`
	RequestedAt     string          `json:"requested_at,omitempty"`
	DeliveryID      string          `json:"delivery_id,omitempty"`
	Commits         json.RawMessage `json:"commits,omitempty"`
	WebhookDelivery int64           `json:"webhook_delivery_id,omitempty"`
	Changes         json.RawMessage `json:"changes,omitempty"`
}

// Parse decodes raw into a Payload. A malformed body yields a zero-value
// Payload rather than an error — queuing a job with an empty GitURL is the
// caller's signal to reject it, matching the permissive webhook-ingest
// behavior the original parser used.
func Parse(raw []byte) Payload {
	var p Payload
	_ = json.Unmarshal(raw, &p)
	return p
}

// MergeSettings layers overrides onto base: every top-level key in overrides
// replaces base's key of the same name, except "options", which deep-merges
// key-by-key instead of replacing wholesale. If base and overrides aren't
// both JSON objects, overrides wins outright — there's nothing sensible to
// merge key-by-key.
func MergeSettings(base, overrides any) any {
	if overrides == nil {
		return base
	}
	baseMap, baseIsObj := base.(map[string]any)
	overrideMap, overridesIsObj := overrides.(map[string]any)
	if !baseIsObj || !overridesIsObj {
		return overrides
	}

	merged := make(map[string]any, len(baseMap)+len(overrideMap))
	for k, v := range baseMap {
		merged[k] = v
	}
	for key, value := range overrideMap {
		if key == "options" {
			merged["options"] = mergeOptions(asMap(merged["options"]), value)
			continue
		}
		merged[key] = value
	}
	return merged
}

func mergeOptions(base map[string]any, overrides any) any {
	overrideMap := asMap(overrides)
	if overrideMap == nil {
		return overrides
	}
	if base == nil {
		return overrideMap
	}
	merged := make(map[string]any, len(base)+len(overrideMap))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrideMap {
		merged[k] = v
	}
	return merged
}

func asMap(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m
}
