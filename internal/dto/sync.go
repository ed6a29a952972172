package dto

import "github.com/noah-isme/assignment-sync/internal/models"

// SyncRequest starts a sync session. Mode selects a preset; the explicit
// booleans override it when present.
type SyncRequest struct {
	Mode            string   `json:"mode" validate:"omitempty,oneof=all future dry-run refresh"`
	IncludePast     *bool    `json:"include_past,omitempty"`
	DryRun          *bool    `json:"dry_run,omitempty"`
	ReplaceExisting *bool    `json:"replace_existing,omitempty"`
	Tabs            []string `json:"tabs,omitempty" validate:"omitempty,dive,required"`
}

// Options resolves the request into sync options. ok is false for an unknown mode.
func (r SyncRequest) Options() (models.SyncOptions, bool) {
	opts, ok := models.OptionsForMode(models.SyncMode(r.Mode))
	if !ok {
		return models.SyncOptions{}, false
	}
	if r.IncludePast != nil {
		opts.IncludePast = *r.IncludePast
	}
	if r.DryRun != nil {
		opts.DryRun = *r.DryRun
	}
	if r.ReplaceExisting != nil {
		opts.ReplaceExisting = *r.ReplaceExisting
	}
	if len(r.Tabs) > 0 {
		opts.Tabs = append([]string(nil), r.Tabs...)
	}
	return opts, true
}

// ClearRequest clears one class tab, or every class tab when All is set.
type ClearRequest struct {
	ClassName string `json:"class_name" validate:"required_without=All,excluded_with=All"`
	All       bool   `json:"all"`
}

// MatchRequest asks how course names would be matched to the current tabs.
type MatchRequest struct {
	Courses []string `json:"courses" validate:"required,min=1,max=200,dive,required"`
}

// DumpRequest asks the sheet for a raw dump of its tabs.
type DumpRequest struct {
	MaxRows int `json:"max_rows" validate:"omitempty,min=1,max=5000"`
}

// SyncRunResponse is a queued or finished run plus a signed report link.
type SyncRunResponse struct {
	Run             models.SyncRun `json:"run"`
	ReportURL       string         `json:"report_url,omitempty"`
	ReportExpiresAt string         `json:"report_expires_at,omitempty"`
}

// CanvasStatus reports whether the Canvas session is signed in.
type CanvasStatus struct {
	Authenticated bool   `json:"authenticated"`
	BaseURL       string `json:"base_url"`
}
