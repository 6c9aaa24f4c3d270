package registry

import "strings"

// Status labels surfaced to users.
const (
	LabelWatchlist = "Đối tượng chú ý"
	LabelLabor     = "Lao động"
	LabelMarriage  = "Kết hôn"
	LabelStudent   = "Học tập"
)

// Rule binds a registry to the status it implies. Rules are evaluated in slice
// order and the first matching registry decides the system purpose.
type Rule struct {
	Kind  Kind
	Label string
	// Columns maps normalised import headers onto record field names.
	Columns map[string]string
	// Detail renders the display string for a match; nil means no detail.
	Detail func(Record) string
}

// Rules is the fixed precedence: watchlist, labor, marriage, student.
var Rules = []Rule{
	{
		Kind:  Watchlist,
		Label: LabelWatchlist,
		Columns: map[string]string{
			"dien": "category", "category": "category",
			"so_cong_van": "dispatch_no", "socongvan": "dispatch_no", "dispatch_no": "dispatch_no",
			"ngay_nhap": "listed_on", "listed_on": "listed_on",
		},
		Detail: func(r Record) string {
			return "Diện: " + r.Field("category") + " - CV: " + r.Field("dispatch_no")
		},
	},
	{
		Kind:  Labor,
		Label: LabelLabor,
		Columns: map[string]string{
			"vi_tri": "position", "vitri": "position", "position": "position",
			"noi_lam_viec": "workplace", "noilamviec": "workplace", "workplace": "workplace",
			"ngay_cap": "issued_on", "issued_on": "issued_on",
		},
		Detail: func(r Record) string {
			return r.Field("position") + " tại " + r.Field("workplace")
		},
	},
	{
		Kind:  Marriage,
		Label: LabelMarriage,
		Columns: map[string]string{
			"ho_ten_vn": "spouse_name", "hotenvn": "spouse_name", "spouse_name": "spouse_name",
			"dia_chi": "spouse_address", "spouse_address": "spouse_address",
			"dien": "category", "category": "category",
		},
		Detail: func(r Record) string {
			return "Vợ/Chồng: " + r.Field("spouse_name") + " - " + r.Field("spouse_address")
		},
	},
	{
		Kind:  Student,
		Label: LabelStudent,
		Columns: map[string]string{
			"truong": "school", "school": "school",
			"nganh": "major", "major": "major",
		},
	},
}

func ruleFor(k Kind) (Rule, bool) {
	for _, r := range Rules {
		if r.Kind == k {
			return r, true
		}
	}
	return Rule{}, false
}

// Priority ranks a final status for batch ordering: registry labels by rule
// order, anything else after them.
func Priority(status string) int {
	s := strings.TrimSpace(status)
	for i, r := range Rules {
		if s == r.Label {
			return i
		}
	}
	return len(Rules)
}
