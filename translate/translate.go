// Package translate maps generic form data onto the launch payload shape
// each backend expects. Both translators are pure and idempotent: feeding a
// translated payload back in returns it unchanged, so retries can re-send a
// persisted payload without double wrapping.
package translate

// ToAWX wraps form data into the AWX launch envelope. Callers that already
// built the exact shape (resourceId plus a launch sub-object) pass through
// untouched; otherwise every top-level key becomes an extra var.
func ToAWX(form map[string]any, resourceType, resourceID string) map[string]any {
	if isAWXEnvelope(form) {
		return form
	}
	extraVars := make(map[string]any, len(form))
	for k, v := range form {
		extraVars[k] = v
	}
	return map[string]any{
		"resourceId":   resourceID,
		"resourceType": resourceType,
		"launch": map[string]any{
			"extra_vars": extraVars,
		},
	}
}

// ToOO wraps form data into the OO flow-execution envelope, passing through
// payloads that already carry flowUuid and inputs.
func ToOO(form map[string]any, flowID string) map[string]any {
	if isOOEnvelope(form) {
		return form
	}
	inputs := make(map[string]any, len(form))
	for k, v := range form {
		inputs[k] = v
	}
	return map[string]any{
		"flowUuid": flowID,
		"inputs":   inputs,
	}
}

func isAWXEnvelope(form map[string]any) bool {
	if form == nil {
		return false
	}
	if _, ok := form["resourceId"]; !ok {
		return false
	}
	_, ok := form["launch"].(map[string]any)
	return ok
}

func isOOEnvelope(form map[string]any) bool {
	if form == nil {
		return false
	}
	if _, ok := form["flowUuid"]; !ok {
		return false
	}
	_, ok := form["inputs"]
	return ok
}
