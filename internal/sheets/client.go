// Package sheets speaks the form-encoded action protocol of the Apps Script
// endpoint that fronts the tracking sheet.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/assignment-sync/internal/matcher"
	"github.com/noah-isme/assignment-sync/internal/models"
	appErrors "github.com/noah-isme/assignment-sync/pkg/errors"
)

const (
	actionField = "action"

	actionTabs     = "tabs"
	actionSync     = "sync_assignments"
	actionClearAll = "clear_all_class_tabs"
	actionClearOne = "clear_class_tab"
	actionDump     = "dump_tabs"

	// Report files written next to the per-class outputs.
	TabsDebugFile     = "sheet_classes_debug.txt"
	SyncResponseFile  = "sheet_sync_response.json"
	ClearResponseFile = "sheet_clear_response.json"
	DumpResponseFile  = "sheet_tabs_dump.json"

	// DefaultDumpRows matches the row ceiling used by the dump diagnostic.
	DefaultDumpRows = 300
)

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type reportStore interface {
	Save(filename string, data []byte) (string, error)
}

// RequestObserver receives timing for every sheet round trip.
type RequestObserver interface {
	ObserveSheetRequest(action string, status models.SyncStatus, duration time.Duration)
}

// Config configures a Client.
type Config struct {
	Endpoint     string
	ExcludedTabs []string
	Timeout      time.Duration
	TabsTimeout  time.Duration
}

// SyncFlags are the two booleans sent with a sync_assignments call.
type SyncFlags struct {
	DryRun          bool
	ReplaceExisting bool
}

// Client posts actions to the sheet endpoint and validates the responses.
type Client struct {
	endpoint    string
	excluded    map[string]struct{}
	timeout     time.Duration
	tabsTimeout time.Duration

	doer     Doer
	store    reportStore
	observer RequestObserver
	logger   *zap.Logger
}

// NewClient constructs a sheet client. store and observer may be nil.
func NewClient(cfg Config, doer Doer, store reportStore, observer RequestObserver, logger *zap.Logger) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	excluded := make(map[string]struct{}, len(cfg.ExcludedTabs))
	for _, name := range cfg.ExcludedTabs {
		excluded[matcher.CompactName(name)] = struct{}{}
	}
	return &Client{
		endpoint:    cfg.Endpoint,
		excluded:    excluded,
		timeout:     cfg.Timeout,
		tabsTimeout: cfg.TabsTimeout,
		doer:        doer,
		store:       store,
		observer:    observer,
		logger:      logger,
	}
}

// ListTabs returns the class tabs of the sheet with the administrative tabs removed.
func (c *Client) ListTabs(ctx context.Context) (*models.TabCatalog, error) {
	start := time.Now()
	body, err := c.post(ctx, actionTabs, url.Values{}, c.tabsTimeout)
	if err != nil {
		return nil, err
	}

	parsed, err := ExtractTabNames(body)
	c.observe(actionTabs, statusOf(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	catalog := &models.TabCatalog{Parsed: parsed, Tabs: make([]string, 0, len(parsed)), LoadedAt: time.Now().UTC()}
	for _, name := range parsed {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if c.isExcluded(name) {
			catalog.Excluded = append(catalog.Excluded, name)
			continue
		}
		catalog.Tabs = append(catalog.Tabs, name)
	}

	c.persist(TabsDebugFile, tabsDebug(body, catalog))

	if len(catalog.Tabs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyCatalog,
			"No class tabs were returned from the sheet API. Expected a JSON list of tab names (or an object with tabs/sheets/classes/data).")
	}

	c.logger.Info("loaded sheet class tabs", zap.Int("tabs", len(catalog.Tabs)), zap.Int("excluded", len(catalog.Excluded)))
	return catalog, nil
}

func (c *Client) isExcluded(name string) bool {
	_, ok := c.excluded[matcher.CompactName(name)]
	return ok
}

// FlattenRecords turns grouped records into the flat wire rows, keeping group
// order and record order. The group's class name wins over the record's own.
func FlattenRecords(classes models.AssignmentsByClass) []models.SyncRecord {
	flat := make([]models.SyncRecord, 0, classes.Total())
	for _, group := range classes {
		for _, record := range group.Records {
			flat = append(flat, models.SyncRecord{
				AssignmentName: record.Name,
				DueDate:        record.DueDate.String(),
				ClassName:      group.ClassName,
			})
		}
	}
	return flat
}

// Sync sends every record to the sheet and returns its reconciliation report.
func (c *Client) Sync(ctx context.Context, classes models.AssignmentsByClass, flags SyncFlags) (*models.SyncReport, error) {
	flat := FlattenRecords(classes)
	encoded, err := json.Marshal(flat)
	if err != nil {
		return nil, fmt.Errorf("encode sync records: %w", err)
	}

	form := url.Values{}
	form.Set("records", string(encoded))
	form.Set("dryRun", strconv.FormatBool(flags.DryRun))
	form.Set("replaceExisting", strconv.FormatBool(flags.ReplaceExisting))

	c.logger.Info("syncing assignment rows to sheet",
		zap.Int("rows", len(flat)),
		zap.Bool("dry_run", flags.DryRun),
		zap.Bool("replace_existing", flags.ReplaceExisting),
	)

	start := time.Now()
	body, err := c.post(ctx, actionSync, form, c.timeout)
	if err != nil {
		return nil, err
	}

	p := decodePayload(body)
	c.persist(SyncResponseFile, p.Raw)

	report, err := parseSyncReport(p, classes.ClassNames(), flags.ReplaceExisting)
	c.observe(actionSync, p.classify(), time.Since(start))
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Clear empties one class tab, or every class tab when className is nil.
func (c *Client) Clear(ctx context.Context, className *string) (*models.ClearReport, error) {
	action := actionClearAll
	form := url.Values{}
	name := ""
	if className != nil {
		name = strings.TrimSpace(*className)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class name is required to clear a single tab")
		}
		action = actionClearOne
		form.Set("className", name)
	}

	start := time.Now()
	body, err := c.post(ctx, action, form, c.timeout)
	if err != nil {
		return nil, err
	}

	p := decodePayload(body)
	c.persist(ClearResponseFile, p.Raw)

	report, err := parseClearReport(p, action, name)
	c.observe(action, p.classify(), time.Since(start))
	if err != nil {
		return nil, err
	}
	return report, nil
}

// DumpTabs asks the sheet for a raw dump of up to maxRows rows per tab.
func (c *Client) DumpTabs(ctx context.Context, maxRows int) (map[string]interface{}, error) {
	if maxRows <= 0 {
		maxRows = DefaultDumpRows
	}
	form := url.Values{}
	form.Set("maxRows", strconv.Itoa(maxRows))

	start := time.Now()
	body, err := c.post(ctx, actionDump, form, c.timeout)
	if err != nil {
		return nil, err
	}

	p := decodePayload(body)
	c.observe(actionDump, p.classify(), time.Since(start))
	dump, ok := p.Value.(map[string]interface{})
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrMalformedResponse, "Sheet API returned an invalid dump format.")
	}
	c.persist(DumpResponseFile, p.Raw)
	return dump, nil
}

func (c *Client) post(ctx context.Context, action string, form url.Values, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	form.Set(actionField, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create sheet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.doer.Do(req)
	if err != nil {
		c.observe(action, models.SyncStatusFailure, 0)
		return nil, appErrors.WrapAs(appErrors.ErrSheetUnavailable, err, fmt.Sprintf("sheet api action '%s' failed", action))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read sheet response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.observe(action, models.SyncStatusFailure, 0)
		return nil, appErrors.Clone(appErrors.ErrRemoteRejected,
			fmt.Sprintf("Sheet API action '%s' failed: %s", action, resp.Status))
	}
	return body, nil
}

func (c *Client) observe(action string, status models.SyncStatus, duration time.Duration) {
	if c.observer != nil {
		c.observer.ObserveSheetRequest(action, status, duration)
	}
}

// persist writes a diagnostic copy of a response. Failures are logged only.
func (c *Client) persist(filename string, data []byte) {
	if c.store == nil || len(data) == 0 {
		return
	}
	content := data
	if json.Valid(data) {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err == nil {
			content = buf.Bytes()
		}
	}
	if _, err := c.store.Save(filename, content); err != nil {
		c.logger.Warn("failed to persist sheet response", zap.String("file", filename), zap.Error(err))
	}
}

func statusOf(err error) models.SyncStatus {
	if err != nil {
		return models.SyncStatusFailure
	}
	return models.SyncStatusSuccess
}

func tabsDebug(raw []byte, catalog *models.TabCatalog) []byte {
	var b strings.Builder
	b.WriteString("Sheet class debug output\n")
	b.WriteString("========================\n\n")
	b.WriteString("Raw API response:\n")
	b.Write(raw)
	b.WriteString("\n\n")

	writeList := func(title string, items []string) {
		b.WriteString(title + ":\n")
		if len(items) == 0 {
			b.WriteString("(none)\n")
		}
		for _, item := range items {
			b.WriteString("- " + item + "\n")
		}
	}

	writeList("Tabs parsed from response", catalog.Parsed)
	b.WriteString("\n")
	writeList("Tabs after excluding administrative tabs", catalog.Tabs)
	b.WriteString("\n")

	normalized := make(map[string]struct{}, len(catalog.Tabs))
	for _, name := range catalog.Tabs {
		normalized[matcher.NormalizeSpacing(name)] = struct{}{}
	}
	names := make([]string, 0, len(normalized))
	for name := range normalized {
		names = append(names, name)
	}
	sort.Strings(names)
	writeList("Normalized names used for matching", names)

	return []byte(b.String())
}
