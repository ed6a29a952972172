package models

// TabPattern is the precomputed fingerprint of one sheet tab name.
type TabPattern struct {
	TabName       string   `json:"tab_name"`
	CodeFragment  string   `json:"code_fragment"`
	TitleFragment string   `json:"title_fragment"`
	TitleTokens   []string `json:"title_tokens"`
	CourseNumber  string   `json:"course_number,omitempty"`
}

// PatternScore is the per-pattern breakdown produced when explaining a match.
type PatternScore struct {
	TabName      string `json:"tab_name"`
	CodeHit      bool   `json:"code_hit"`
	TitleHit     bool   `json:"title_hit"`
	NumberHit    bool   `json:"number_hit"`
	TokenOverlap int    `json:"token_overlap"`
	Score        int    `json:"score"`
}

// MatchExplanation describes how a course name was scored against every tab.
type MatchExplanation struct {
	CourseName string         `json:"course_name"`
	Scores     []PatternScore `json:"scores"`
	BestTab    string         `json:"best_tab,omitempty"`
	BestScore  int            `json:"best_score"`
	Matched    bool           `json:"matched"`
	Threshold  int            `json:"threshold"`
}
