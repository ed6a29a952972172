package sheets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/assignment-sync/internal/models"
	appErrors "github.com/noah-isme/assignment-sync/pkg/errors"
)

var acceptedStatuses = map[string]struct{}{"success": {}, "ok": {}}

// catalogKeys are the object fields that may carry the tab list, in priority order.
var catalogKeys = []string{"tabs", "sheets", "classes", "data"}

// payload is a decoded sheet response body. Object is nil when the body was
// valid JSON of another shape.
type payload struct {
	Raw    []byte
	Value  interface{}
	Object map[string]json.RawMessage
}

// decodePayload parses a response body. Bodies that are not JSON at all are
// represented as {"status": "unknown", "raw_response": body}.
func decodePayload(body []byte) payload {
	trimmed := bytes.TrimSpace(body)

	var value interface{}
	if err := json.Unmarshal(trimmed, &value); err != nil {
		value = map[string]interface{}{"status": "unknown", "raw_response": string(body)}
		encoded, _ := json.Marshal(value)
		trimmed = encoded
	}

	p := payload{Raw: trimmed, Value: value}
	if _, ok := value.(map[string]interface{}); ok {
		var object map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &object); err == nil {
			p.Object = object
		}
	}
	return p
}

func (p payload) has(key string) bool {
	_, ok := p.Object[key]
	return ok
}

func (p payload) str(key string) string {
	raw, ok := p.Object[key]
	if !ok {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return value
}

func (p payload) status() string {
	return strings.TrimSpace(p.str("status"))
}

// classify maps a payload onto the normalised status used in reports and metrics.
func (p payload) classify() models.SyncStatus {
	if p.Object == nil || !p.has("status") {
		return models.SyncStatusUnknown
	}
	if _, ok := acceptedStatuses[p.status()]; ok {
		return models.SyncStatusSuccess
	}
	return models.SyncStatusFailure
}

// requireAccepted fails with ErrRemoteRejected unless the status is success or ok.
func (p payload) requireAccepted(action string) error {
	if p.classify() == models.SyncStatusSuccess {
		return nil
	}
	message := p.str("message")
	if message == "" {
		message = fmt.Sprintf("Sheet API action '%s' failed.", action)
	}
	return appErrors.Clone(appErrors.ErrRemoteRejected, message)
}

func (p payload) intField(key string) (int, error) {
	raw, ok := p.Object[key]
	if !ok || string(raw) == "null" {
		return 0, nil
	}
	return parseCount(raw)
}

func parseCount(raw json.RawMessage) (int, error) {
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		if number < 0 {
			return 0, fmt.Errorf("negative count %v", number)
		}
		return int(number), nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		n, err := strconv.Atoi(strings.TrimSpace(text))
		if err == nil && n >= 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("invalid count %s", string(raw))
}

func (p payload) boolField(key string) bool {
	raw, ok := p.Object[key]
	if !ok {
		return false
	}
	var flag bool
	if err := json.Unmarshal(raw, &flag); err == nil {
		return flag
	}
	return strings.EqualFold(strings.Trim(string(raw), `"`), "true")
}

func (p payload) stringsField(key string) []string {
	raw, ok := p.Object[key]
	if !ok {
		return nil
	}
	return stringItems(raw)
}

// stringItems keeps only the string elements of a JSON array.
func stringItems(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	values := make([]string, 0, len(items))
	for _, item := range items {
		var value string
		if err := json.Unmarshal(item, &value); err == nil {
			values = append(values, value)
		}
	}
	return values
}

// ExtractTabNames reads the tab catalog from either a bare JSON list or an
// object carrying the list under one of the catalog keys.
func ExtractTabNames(body []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return nil, appErrors.Clone(appErrors.ErrMalformedResponse, "Sheet API returned a tab catalog that is not valid JSON.")
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return stringItems(trimmed), nil
	}

	p := decodePayload(trimmed)
	if p.Object == nil {
		return nil, nil
	}
	if p.has("status") {
		if err := p.requireAccepted(actionTabs); err != nil {
			return nil, err
		}
	}
	for _, key := range catalogKeys {
		raw, ok := p.Object[key]
		if !ok {
			continue
		}
		trimmedValue := bytes.TrimSpace(raw)
		if len(trimmedValue) > 0 && trimmedValue[0] == '[' {
			return stringItems(trimmedValue), nil
		}
	}
	return nil, nil
}

// parseSyncReport validates a sync_assignments response. Shape is checked
// before status so that stale deployments surface as malformed responses.
func parseSyncReport(p payload, sent []string, replaceExisting bool) (*models.SyncReport, error) {
	if p.Object == nil || !p.has("rowsWritten") {
		return nil, appErrors.Clone(appErrors.ErrMalformedResponse,
			"Sheet API did not return sync details (expected key 'rowsWritten'). "+
				"The deployed Apps Script likely does not include the sync_assignments handler yet.")
	}
	if replaceExisting && !p.has("replaceExisting") {
		return nil, appErrors.Clone(appErrors.ErrMalformedResponse,
			"Sheet API response is missing 'replaceExisting'. "+
				"The deployed Apps Script is older than the full-refresh version.")
	}
	if err := p.requireAccepted(actionSync); err != nil {
		return nil, err
	}

	rows, err := p.intField("rowsWritten")
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrMalformedResponse, err, "Sheet API returned an invalid rowsWritten value.")
	}

	stats, err := parseClassStats(p.Object["classStats"], sent)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrMalformedResponse, err, "Sheet API returned invalid classStats.")
	}

	return &models.SyncReport{
		Status:          models.SyncStatusSuccess,
		RowsWritten:     rows,
		DryRun:          p.boolField("dryRun"),
		ReplaceExisting: p.boolField("replaceExisting"),
		DebugMessages:   p.stringsField("debugMessages"),
		ClassStats:      stats,
		Message:         p.str("message"),
	}, nil
}

type classStatsWire struct {
	IncomingCount      json.RawMessage `json:"incomingCount"`
	ExistingNamedCount json.RawMessage `json:"existingNamedCount"`
	MatchedCount       json.RawMessage `json:"matchedCount"`
	AddedCount         json.RawMessage `json:"addedCount"`
	UpdatedCount       json.RawMessage `json:"updatedCount"`
}

// parseClassStats orders the reported classes by the order they were sent,
// followed by any extra classes alphabetically.
func parseClassStats(raw json.RawMessage, sent []string) ([]models.ClassStats, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []models.ClassStats{}, nil
	}

	var byClass map[string]classStatsWire
	if err := json.Unmarshal(raw, &byClass); err != nil {
		return nil, err
	}

	order := make([]string, 0, len(byClass))
	seen := make(map[string]struct{}, len(byClass))
	for _, name := range sent {
		if _, ok := byClass[name]; !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		order = append(order, name)
	}
	extras := make([]string, 0)
	for name := range byClass {
		if _, ok := seen[name]; !ok {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	order = append(order, extras...)

	stats := make([]models.ClassStats, 0, len(order))
	for _, name := range order {
		wire := byClass[name]
		entry := models.ClassStats{ClassName: name}
		fields := []struct {
			raw  json.RawMessage
			dest *int
		}{
			{wire.IncomingCount, &entry.IncomingCount},
			{wire.ExistingNamedCount, &entry.ExistingNamedCount},
			{wire.MatchedCount, &entry.MatchedCount},
			{wire.AddedCount, &entry.AddedCount},
			{wire.UpdatedCount, &entry.UpdatedCount},
		}
		for _, field := range fields {
			if len(field.raw) == 0 || string(field.raw) == "null" {
				continue
			}
			n, err := parseCount(field.raw)
			if err != nil {
				return nil, fmt.Errorf("class %q: %w", name, err)
			}
			*field.dest = n
		}
		stats = append(stats, entry)
	}
	return stats, nil
}

// parseClearReport validates a clear_* response.
func parseClearReport(p payload, action, className string) (*models.ClearReport, error) {
	if p.Object == nil {
		return nil, appErrors.Clone(appErrors.ErrMalformedResponse, "Sheet API returned an invalid response format.")
	}
	if err := p.requireAccepted(action); err != nil {
		return nil, err
	}

	cleared, err := p.intField("clearedRows")
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrMalformedResponse, err, "Sheet API returned an invalid clearedRows value.")
	}

	report := &models.ClearReport{
		Status:      models.SyncStatusSuccess,
		ClassName:   className,
		ClearedRows: cleared,
		Message:     p.str("message"),
	}

	if raw, ok := p.Object["clearedTabs"]; ok && string(raw) != "null" {
		var tabs []struct {
			SheetName   string          `json:"sheetName"`
			ClearedRows json.RawMessage `json:"clearedRows"`
		}
		if err := json.Unmarshal(raw, &tabs); err != nil {
			return nil, appErrors.WrapAs(appErrors.ErrMalformedResponse, err, "Sheet API returned invalid clearedTabs.")
		}
		for _, tab := range tabs {
			rows := 0
			if len(tab.ClearedRows) > 0 && string(tab.ClearedRows) != "null" {
				if rows, err = parseCount(tab.ClearedRows); err != nil {
					return nil, appErrors.WrapAs(appErrors.ErrMalformedResponse, err, "Sheet API returned invalid clearedTabs.")
				}
			}
			report.ClearedTabs = append(report.ClearedTabs, models.ClearedTab{SheetName: tab.SheetName, ClearedRows: rows})
		}
	}
	return report, nil
}
