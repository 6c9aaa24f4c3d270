package registry

import "strings"

// Resolution is the derived classification of one person.
type Resolution struct {
	// SystemPurpose is the label of the highest-priority matching registry, "" if none.
	SystemPurpose string `json:"system_purpose,omitempty"`
	// FinalStatus is the manual verification when present, else SystemPurpose.
	FinalStatus string `json:"final_status,omitempty"`
	// Matched lists every registry containing the passport, in priority order.
	Matched []Kind `json:"matched,omitempty"`
	// Details holds display strings for matched registries that define one.
	Details map[Kind]string `json:"details,omitempty"`
}

// Resolve classifies a passport against the registries. A non-blank
// verification always overrides the derived purpose.
func Resolve(passport, verification string, set Set) Resolution {
	var res Resolution
	for _, rule := range Rules {
		rec, ok := set[rule.Kind].Lookup(passport)
		if !ok {
			continue
		}
		if res.SystemPurpose == "" {
			res.SystemPurpose = rule.Label
		}
		res.Matched = append(res.Matched, rule.Kind)
		if rule.Detail != nil {
			if res.Details == nil {
				res.Details = make(map[Kind]string)
			}
			res.Details[rule.Kind] = rule.Detail(rec)
		}
	}

	res.FinalStatus = res.SystemPurpose
	if v := strings.TrimSpace(verification); v != "" {
		res.FinalStatus = v
	}
	return res
}
